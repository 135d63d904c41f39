// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pagecraft/pbcms-go/internal/model"
	"github.com/pagecraft/pbcms-go/internal/store"
)

// DraftManager owns the draft lifecycle: get-or-create, bulk module
// reconciliation, quick-create, scratch cleanup and draft status.
type DraftManager struct {
	db      *sql.DB
	queries *store.Queries
	sync    *CrossLanguageSynchronizer
}

// NewDraftManager creates a DraftManager.
func NewDraftManager(db *sql.DB, sync *CrossLanguageSynchronizer) *DraftManager {
	return &DraftManager{
		db:      db,
		queries: store.New(db),
		sync:    sync,
	}
}

// ModuleItem is one client-submitted module descriptor. Identity is
// exactly one of DraftID, OriginalModuleID or TempKey; the parent
// reference uses the same three namespaces. Status is advisory only;
// the server determines what actually changed.
type ModuleItem struct {
	DraftID                *int64         `json:"draft_id,omitempty"`
	OriginalModuleID       *int64         `json:"original_module_id,omitempty"`
	TempKey                string         `json:"temp_key,omitempty"`
	ParentDraftID          *int64         `json:"parent_draft_id,omitempty"`
	ParentTempKey          string         `json:"parent_temp_key,omitempty"`
	ParentOriginalModuleID *int64         `json:"parent_original_module_id,omitempty"`
	Type                   string         `json:"type"`
	Settings               model.Settings `json:"settings"`
	TranslationSettings    model.Settings `json:"translation_settings,omitempty"`
	Sort                   int64          `json:"sort"`
	Status                 string         `json:"status,omitempty"`
}

// Ref returns the identity reference of the descriptor.
func (it ModuleItem) Ref() ModuleRef {
	switch {
	case it.DraftID != nil:
		return DraftRef(*it.DraftID)
	case it.OriginalModuleID != nil:
		return MasterRef(*it.OriginalModuleID)
	case it.TempKey != "":
		return TempRef(it.TempKey)
	}
	return ModuleRef{}
}

// ParentRef returns the parent reference of the descriptor, or a zero
// reference for root modules.
func (it ModuleItem) ParentRef() ModuleRef {
	switch {
	case it.ParentDraftID != nil:
		return DraftRef(*it.ParentDraftID)
	case it.ParentTempKey != "":
		return TempRef(it.ParentTempKey)
	case it.ParentOriginalModuleID != nil:
		return MasterRef(*it.ParentOriginalModuleID)
	}
	return ModuleRef{}
}

// SavedModule is one reconciled module draft row as returned to the client.
type SavedModule struct {
	DraftID             int64          `json:"draft_id"`
	OriginalModuleID    *int64         `json:"original_module_id,omitempty"`
	ParentDraftID       *int64         `json:"parent_draft_id,omitempty"`
	Type                string         `json:"type"`
	Settings            model.Settings `json:"settings"`
	TranslationSettings model.Settings `json:"translation_settings,omitempty"`
	TranslationStatus   string         `json:"translation_status,omitempty"`
	Sort                int64          `json:"sort"`
}

// SaveModulesResult is the outcome of one SaveModules call.
type SaveModulesResult struct {
	Modules []SavedModule `json:"modules"`
	// TempKeyMapping maps client temp keys to the draft row ids
	// assigned during this call.
	TempKeyMapping map[string]int64 `json:"temp_key_mapping"`
	// OriginalIDMapping maps submitted originalModuleId values that
	// turned out to name scratch draft rows to the structural row ids
	// they were converted into.
	OriginalIDMapping map[int64]int64 `json:"original_id_mapping"`
}

// DraftStatus describes a user's draft relative to the live translation.
type DraftStatus struct {
	HasDraft      bool             `json:"has_draft"`
	HasConflict   bool             `json:"has_conflict"`
	BaseVersion   int64            `json:"base_version,omitempty"`
	MasterVersion int64            `json:"master_version"`
	Draft         *model.PageDraft `json:"draft,omitempty"`
}

// GetOrCreateDraft returns the user's draft for a translation, creating
// it if absent. Abandoned scratch rows are purged on every call. When a
// fresh draft is created and the same user already holds a draft for a
// sibling non-custom translation of the page, that draft's module tree
// is cloned in so structural work started in another language carries
// over.
func (m *DraftManager) GetOrCreateDraft(ctx context.Context, userID, translationID int64) (model.PageDraft, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PageDraft{}, err
	}
	defer func() { _ = tx.Rollback() }()
	q := m.queries.WithTx(tx)

	translation, err := q.GetPageTranslationByID(ctx, translationID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PageDraft{}, NotFoundError("translation", translationID)
	}
	if err != nil {
		return model.PageDraft{}, err
	}

	draft, err := q.GetPageDraftByUserAndTranslation(ctx, store.GetPageDraftByUserAndTranslationParams{
		UserID:            userID,
		PageTranslationID: translationID,
	})
	if err == nil {
		if err := q.DeleteScratchModuleDrafts(ctx, draft.ID); err != nil {
			return model.PageDraft{}, err
		}
		if err := tx.Commit(); err != nil {
			return model.PageDraft{}, err
		}
		return draft, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.PageDraft{}, err
	}

	now := time.Now()
	draft, err = q.CreatePageDraft(ctx, store.CreatePageDraftParams{
		UserID:            userID,
		PageTranslationID: translationID,
		Language:          translation.Language,
		BaseVersion:       translation.Version,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return model.PageDraft{}, err
	}

	if source, ok, err := m.findCloneSource(ctx, q, userID, translation); err != nil {
		return model.PageDraft{}, err
	} else if ok {
		rows, err := q.ListSavedModuleDraftsByPageDraft(ctx, source.ID)
		if err != nil {
			return model.PageDraft{}, err
		}
		if err := m.sync.CloneDraftTree(ctx, q, rows, draft.ID, now); err != nil {
			return model.PageDraft{}, err
		}
		slog.Info("cloned sibling draft into new draft",
			"category", model.EventCategoryDraft,
			"source_draft_id", source.ID, "draft_id", draft.ID, "modules", len(rows))
	}

	if err := tx.Commit(); err != nil {
		return model.PageDraft{}, err
	}
	return draft, nil
}

// findCloneSource looks for an existing draft of the same user on a
// sibling translation of the page. Only drafts of non-custom (shared
// layout) translations qualify as a clone source.
func (m *DraftManager) findCloneSource(ctx context.Context, q *store.Queries, userID int64, target model.PageTranslation) (model.PageDraft, bool, error) {
	if target.Custom {
		return model.PageDraft{}, false, nil
	}
	drafts, err := q.ListPageDraftsByUserAndPage(ctx, store.ListPageDraftsByUserAndPageParams{
		UserID: userID,
		PageID: target.PageID,
	})
	if err != nil {
		return model.PageDraft{}, false, err
	}
	for _, d := range drafts {
		if d.PageTranslationID == target.ID {
			continue
		}
		source, err := q.GetPageTranslationByID(ctx, d.PageTranslationID)
		if err != nil {
			return model.PageDraft{}, false, err
		}
		if !source.Custom {
			return d, true, nil
		}
	}
	return model.PageDraft{}, false, nil
}

// SaveModules reconciles a client-submitted module list against the
// persisted draft rows in two passes: identity resolution first, parent
// linking after every row in the batch exists. Structural rows missing
// from the submitted list are removed from the draft. The whole call is
// one transaction; an unresolvable parent reference aborts it with
// nothing persisted.
func (m *DraftManager) SaveModules(ctx context.Context, userID, draftID int64, language string, items []ModuleItem) (SaveModulesResult, error) {
	var result SaveModulesResult
	if language == "" {
		return result, ValidationError(CodeInvalidModuleRef, "language is required")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer func() { _ = tx.Rollback() }()
	q := m.queries.WithTx(tx)

	draft, err := q.GetPageDraftByID(ctx, draftID)
	if errors.Is(err, sql.ErrNoRows) {
		return result, NotFoundError("draft", draftID)
	}
	if err != nil {
		return result, err
	}
	if draft.UserID != userID {
		return result, AccessDeniedError("draft belongs to another user")
	}
	translation, err := q.GetPageTranslationByID(ctx, draft.PageTranslationID)
	if err != nil {
		return result, err
	}

	existing, err := q.ListModuleDraftsByPageDraft(ctx, draftID)
	if err != nil {
		return result, err
	}
	byID := make(map[int64]model.ModuleDraft, len(existing))
	refs := newRefTable()
	for _, row := range existing {
		byID[row.ID] = row
		refs.bind(DraftRef(row.ID), row.ID)
		if row.OriginalModuleID != nil {
			refs.bind(MasterRef(*row.OriginalModuleID), row.ID)
		}
	}

	now := time.Now()
	result.TempKeyMapping = make(map[string]int64)
	result.OriginalIDMapping = make(map[int64]int64)
	touched := make(map[int64]bool, len(items))
	resolved := make([]int64, len(items))
	var created []model.ModuleDraft

	// Pass 1: locate or create the backing row for every descriptor.
	for i, item := range items {
		ref := item.Ref()
		if ref.IsZero() {
			return result, ValidationError(CodeInvalidModuleRef,
				"module descriptor needs a draftId, originalModuleId or tempKey")
		}

		if rowID, ok := refs.resolve(ref); ok {
			if ref.kind == refDraft {
				if _, exists := byID[rowID]; !exists {
					return result, NotFoundError("module draft", rowID)
				}
			}
			row := byID[rowID]
			scratch := row.IsScratch()
			if err := q.UpdateModuleDraft(ctx, store.UpdateModuleDraftParams{
				ID:            rowID,
				ParentDraftID: row.ParentDraftID, // linked in pass 2
				Type:          item.Type,
				Settings:      item.Settings,
				Sort:          item.Sort,
				UpdatedAt:     now,
			}); err != nil {
				return result, err
			}
			if scratch && ref.kind == refMaster {
				// The client thought it referenced a master module but
				// actually named its own quick-created scratch row.
				result.OriginalIDMapping[ref.id] = rowID
			}
			resolved[i] = rowID
			touched[rowID] = true
			refs.bind(ref, rowID)
			continue
		}

		switch ref.kind {
		case refDraft:
			return result, NotFoundError("module draft", ref.id)
		case refMaster:
			// The scratch-conversion case: the submitted master id is
			// really the id of an unsaved scratch row of this draft.
			if row, ok := byID[ref.id]; ok && row.IsScratch() {
				if err := q.UpdateModuleDraft(ctx, store.UpdateModuleDraftParams{
					ID:            row.ID,
					ParentDraftID: row.ParentDraftID,
					Type:          item.Type,
					Settings:      item.Settings,
					Sort:          item.Sort,
					UpdatedAt:     now,
				}); err != nil {
					return result, err
				}
				result.OriginalIDMapping[ref.id] = row.ID
				resolved[i] = row.ID
				touched[row.ID] = true
				refs.bind(ref, row.ID)
				continue
			}
			origID := ref.id
			row, err := q.CreateModuleDraft(ctx, store.CreateModuleDraftParams{
				PageDraftID:      draftID,
				OriginalModuleID: &origID,
				Type:             item.Type,
				Settings:         item.Settings,
				Sort:             item.Sort,
				Lineage:          uuid.NewString(),
				CreatedAt:        now,
				UpdatedAt:        now,
			})
			if err != nil {
				return result, err
			}
			byID[row.ID] = row
			resolved[i] = row.ID
			touched[row.ID] = true
			refs.bind(ref, row.ID)
			refs.bind(DraftRef(row.ID), row.ID)
		case refTemp:
			row, err := q.CreateModuleDraft(ctx, store.CreateModuleDraftParams{
				PageDraftID: draftID,
				Type:        item.Type,
				Settings:    item.Settings,
				Sort:        item.Sort,
				Lineage:     uuid.NewString(),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err != nil {
				return result, err
			}
			byID[row.ID] = row
			created = append(created, row)
			result.TempKeyMapping[ref.temp] = row.ID
			resolved[i] = row.ID
			touched[row.ID] = true
			refs.bind(ref, row.ID)
			refs.bind(DraftRef(row.ID), row.ID)
		}
	}

	// Pass 2: link parents now that every row in the batch exists. All
	// references are resolved and the batch is structure-checked before
	// the first link is written.
	parentOf := make(map[int64]*int64, len(items))
	for i, item := range items {
		ref := item.ParentRef()
		if ref.IsZero() {
			parentOf[resolved[i]] = nil
			continue
		}
		parentID, ok := refs.resolve(ref)
		if !ok || parentID == resolved[i] {
			return result, ValidationError(CodeUnresolvedParent,
				"unresolvable parent reference "+ref.String())
		}
		pid := parentID
		parentOf[resolved[i]] = &pid
	}
	if err := checkBatchStructure(items, resolved, parentOf); err != nil {
		return result, err
	}
	for i := range items {
		if err := q.SetModuleDraftParent(ctx, resolved[i], parentOf[resolved[i]]); err != nil {
			return result, err
		}
	}

	// Structural rows left out of the submitted list are removed; the
	// publish diff turns their absence into master deletions. Scratch
	// rows are left for the usual cleanup path.
	for _, row := range existing {
		if !row.IsScratch() && !touched[row.ID] {
			if err := q.DeleteModuleDraft(ctx, row.ID); err != nil {
				return result, err
			}
		}
	}

	// Translation content: identical settings keep PENDING, anything
	// else (including the first write) becomes TRANSLATED.
	for i, item := range items {
		if item.TranslationSettings == nil {
			continue
		}
		if err := m.writeTranslationDraft(ctx, q, resolved[i], language, item.TranslationSettings, now); err != nil {
			return result, err
		}
	}

	if len(created) > 0 && !translation.Custom {
		ev := ModulesCreatedEvent{
			UserID:              userID,
			PageID:              translation.PageID,
			SourceTranslationID: translation.ID,
			SourceDraftID:       draftID,
			Created:             created,
			ParentLineage:       parentLineages(created, parentOf, byID),
			OccurredAt:          now,
		}
		if err := m.sync.PropagateCreated(ctx, q, ev); err != nil {
			return result, err
		}
	}

	if err := q.TouchPageDraft(ctx, draftID, now); err != nil {
		return result, err
	}

	result.Modules, err = m.collectSavedModules(ctx, q, draftID, language)
	if err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, err
	}
	slog.Info("saved draft modules",
		"category", model.EventCategoryDraft,
		"draft_id", draftID, "submitted", len(items), "created", len(created))
	return result, nil
}

// checkBatchStructure rejects batches whose parent links do not form a
// forest: a parent chain looping back on itself, or two siblings under
// the same parent claiming the same sort.
func checkBatchStructure(items []ModuleItem, resolved []int64, parentOf map[int64]*int64) error {
	for id := range parentOf {
		seen := map[int64]bool{id: true}
		for p := parentOf[id]; p != nil; p = parentOf[*p] {
			if seen[*p] {
				return ValidationError(CodeUnresolvedParent,
					fmt.Sprintf("cyclic parent reference through module draft %d", *p))
			}
			seen[*p] = true
		}
	}

	type slot struct {
		parent int64 // 0 for root, row ids start at 1
		sort   int64
	}
	taken := make(map[slot]bool, len(items))
	for i, item := range items {
		key := slot{sort: item.Sort}
		if p := parentOf[resolved[i]]; p != nil {
			key.parent = *p
		}
		if taken[key] {
			return ValidationError(CodeInvalidInput,
				fmt.Sprintf("duplicate sort %d among sibling modules", item.Sort))
		}
		taken[key] = true
	}
	return nil
}

// writeTranslationDraft applies the translation-status write rule for
// one module draft row.
func (m *DraftManager) writeTranslationDraft(ctx context.Context, q *store.Queries, moduleDraftID int64, language string, incoming model.Settings, now time.Time) error {
	status := model.TranslationStatusTranslated
	current, err := q.GetModuleTranslationDraft(ctx, store.GetModuleTranslationDraftParams{
		ModuleDraftID: moduleDraftID,
		Language:      language,
	})
	switch {
	case err == nil:
		if current.Settings.Equal(incoming) {
			// An unchanged payload must not silently complete a
			// translation nobody touched.
			status = current.Status
		}
	case errors.Is(err, sql.ErrNoRows):
		// first write
	default:
		return err
	}
	return q.UpsertModuleTranslationDraft(ctx, store.UpsertModuleTranslationDraftParams{
		ModuleDraftID: moduleDraftID,
		Language:      language,
		Settings:      incoming,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// parentLineages resolves each created row's parent to that parent's
// lineage key, which is how the synchronizer re-links the clone in a
// sibling draft.
func parentLineages(created []model.ModuleDraft, parentOf map[int64]*int64, byID map[int64]model.ModuleDraft) map[int64]string {
	out := make(map[int64]string, len(created))
	for _, row := range created {
		parent := parentOf[row.ID]
		if parent == nil {
			continue
		}
		if p, ok := byID[*parent]; ok {
			out[row.ID] = p.Lineage
		}
	}
	return out
}

func (m *DraftManager) collectSavedModules(ctx context.Context, q *store.Queries, draftID int64, language string) ([]SavedModule, error) {
	rows, err := q.ListSavedModuleDraftsByPageDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	translations, err := q.ListModuleTranslationDraftsForDraft(ctx, store.ListModuleTranslationDraftsForDraftParams{
		PageDraftID: draftID,
		Language:    language,
	})
	if err != nil {
		return nil, err
	}
	byModuleDraft := make(map[int64]model.ModuleTranslationDraft, len(translations))
	for _, td := range translations {
		byModuleDraft[td.ModuleDraftID] = td
	}

	out := make([]SavedModule, 0, len(rows))
	for _, row := range rows {
		saved := SavedModule{
			DraftID:          row.ID,
			OriginalModuleID: row.OriginalModuleID,
			ParentDraftID:    row.ParentDraftID,
			Type:             row.Type,
			Settings:         row.Settings,
			Sort:             row.Sort,
		}
		if td, ok := byModuleDraft[row.ID]; ok {
			saved.TranslationSettings = td.Settings
			saved.TranslationStatus = td.Status
		}
		out = append(out, saved)
	}
	return out, nil
}

// QuickCreate adds a single scratch module outside the structural save
// flow. The row carries the scratch sort sentinel and is purged on the
// next draft fetch or status query unless a structural save adopts it.
func (m *DraftManager) QuickCreate(ctx context.Context, userID, draftID int64, moduleType string, settings model.Settings) (model.ModuleDraft, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ModuleDraft{}, err
	}
	defer func() { _ = tx.Rollback() }()
	q := m.queries.WithTx(tx)

	draft, err := q.GetPageDraftByID(ctx, draftID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ModuleDraft{}, NotFoundError("draft", draftID)
	}
	if err != nil {
		return model.ModuleDraft{}, err
	}
	if draft.UserID != userID {
		return model.ModuleDraft{}, AccessDeniedError("draft belongs to another user")
	}

	now := time.Now()
	row, err := q.CreateModuleDraft(ctx, store.CreateModuleDraftParams{
		PageDraftID: draftID,
		Type:        moduleType,
		Settings:    settings,
		Sort:        model.ScratchSort,
		Lineage:     uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.ModuleDraft{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.ModuleDraft{}, err
	}
	return row, nil
}

// Status reports whether the user holds a draft for the translation and
// whether it conflicts with the live version. Like GetOrCreateDraft it
// purges abandoned scratch rows as a side effect.
func (m *DraftManager) Status(ctx context.Context, userID, translationID int64) (DraftStatus, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return DraftStatus{}, err
	}
	defer func() { _ = tx.Rollback() }()
	q := m.queries.WithTx(tx)

	translation, err := q.GetPageTranslationByID(ctx, translationID)
	if errors.Is(err, sql.ErrNoRows) {
		return DraftStatus{}, NotFoundError("translation", translationID)
	}
	if err != nil {
		return DraftStatus{}, err
	}

	status := DraftStatus{MasterVersion: translation.Version}
	draft, err := q.GetPageDraftByUserAndTranslation(ctx, store.GetPageDraftByUserAndTranslationParams{
		UserID:            userID,
		PageTranslationID: translationID,
	})
	switch {
	case err == nil:
		if err := q.DeleteScratchModuleDrafts(ctx, draft.ID); err != nil {
			return DraftStatus{}, err
		}
		status.HasDraft = true
		status.BaseVersion = draft.BaseVersion
		status.HasConflict = draft.BaseVersion != translation.Version
		status.Draft = &draft
	case errors.Is(err, sql.ErrNoRows):
		// no draft
	default:
		return DraftStatus{}, err
	}

	if err := tx.Commit(); err != nil {
		return DraftStatus{}, err
	}
	return status, nil
}
