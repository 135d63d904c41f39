// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/pagecraft/pbcms-go/internal/model"
	"github.com/pagecraft/pbcms-go/internal/store"
)

// PublishCoordinator applies a draft's module tree to the master tree
// under optimistic concurrency control. Conflict check, tree diff,
// translation writes, version bump, identity backfill, cross-language
// seeding and draft teardown all run inside one transaction: master
// never observes a partially applied tree.
type PublishCoordinator struct {
	db      *sql.DB
	queries *store.Queries
	sync    *CrossLanguageSynchronizer
}

// NewPublishCoordinator creates a PublishCoordinator.
func NewPublishCoordinator(db *sql.DB, sync *CrossLanguageSynchronizer) *PublishCoordinator {
	return &PublishCoordinator{
		db:      db,
		queries: store.New(db),
		sync:    sync,
	}
}

// PublishResult reports the outcome of a successful publish.
type PublishResult struct {
	TranslationID int64 `json:"translation_id"`
	NewVersion    int64 `json:"new_version"`
	ModuleCount   int   `json:"module_count"`
	CreatedCount  int   `json:"created_count"`
	UpdatedCount  int   `json:"updated_count"`
	DeletedCount  int   `json:"deleted_count"`
}

// Publish applies the draft to master. Without force it fails with
// VERSION_CONFLICT when the translation moved past the draft's base
// version, mutating nothing. On success the draft is torn down and the
// translation version bumped.
func (p *PublishCoordinator) Publish(ctx context.Context, userID, draftID int64, force bool) (PublishResult, error) {
	var result PublishResult

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer func() { _ = tx.Rollback() }()
	q := p.queries.WithTx(tx)

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
	if !force && draft.BaseVersion != translation.Version {
		return result, VersionConflictError(draft.BaseVersion, translation.Version)
	}

	rows, err := q.ListSavedModuleDraftsByPageDraft(ctx, draftID)
	if err != nil {
		return result, err
	}
	masters, err := p.masterModules(ctx, q, translation)
	if err != nil {
		return result, err
	}
	masterByID := make(map[int64]model.Module, len(masters))
	for _, m := range masters {
		masterByID[m.ID] = m
	}

	now := time.Now()
	draftToMaster := make(map[int64]int64, len(rows))
	newByLineage := make(map[string]int64)

	// Pass A: ensure a master row exists for every draft row. Parents
	// are linked in pass B once every id is known.
	for _, row := range rows {
		if row.OriginalModuleID != nil {
			if _, ok := masterByID[*row.OriginalModuleID]; ok {
				draftToMaster[row.ID] = *row.OriginalModuleID
				result.UpdatedCount++
				continue
			}
			// The master module vanished under a forced publish; the
			// draft row still describes content the user wants live.
		}
		params := store.CreateModuleParams{
			Type:      row.Type,
			Settings:  row.Settings,
			Sort:      row.Sort,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if translation.Custom {
			id := translation.ID
			params.PageTranslationID = &id
		} else {
			id := translation.PageID
			params.PageID = &id
		}
		created, err := q.CreateModule(ctx, params)
		if err != nil {
			return result, err
		}
		draftToMaster[row.ID] = created.ID
		if row.OriginalModuleID == nil {
			newByLineage[row.Lineage] = created.ID
		}
		result.CreatedCount++
	}

	// Pass B: rewrite type/settings/sort and parent links, with
	// draft-to-draft parent references substituted by master ids.
	for _, row := range rows {
		var parentID *int64
		if row.ParentDraftID != nil {
			if master, ok := draftToMaster[*row.ParentDraftID]; ok {
				parentID = &master
			}
		}
		if err := q.UpdateModule(ctx, store.UpdateModuleParams{
			ID:        draftToMaster[row.ID],
			ParentID:  parentID,
			Type:      row.Type,
			Settings:  row.Settings,
			Sort:      row.Sort,
			UpdatedAt: now,
		}); err != nil {
			return result, err
		}
	}

	// Pass C: master modules without a draft row are removed, their
	// translations with them.
	kept := make(map[int64]bool, len(draftToMaster))
	for _, id := range draftToMaster {
		kept[id] = true
	}
	for _, m := range masters {
		if !kept[m.ID] {
			if err := q.DeleteModule(ctx, m.ID); err != nil {
				return result, err
			}
			result.DeletedCount++
		}
	}

	// Translation write for the published language. The draft row's
	// status is carried over: a HIDDEN or still-PENDING translation
	// stays that way, publishing does not fabricate completeness.
	translationDrafts, err := q.ListModuleTranslationDraftsForDraft(ctx, store.ListModuleTranslationDraftsForDraftParams{
		PageDraftID: draftID,
		Language:    draft.Language,
	})
	if err != nil {
		return result, err
	}
	for _, td := range translationDrafts {
		masterID, ok := draftToMaster[td.ModuleDraftID]
		if !ok {
			continue
		}
		status := td.Status
		if status == "" {
			status = model.TranslationStatusTranslated
		}
		if err := q.UpsertModuleTranslation(ctx, store.UpsertModuleTranslationParams{
			ModuleID:  masterID,
			Language:  draft.Language,
			Settings:  td.Settings,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return result, err
		}
	}

	// Version bump as a compare-and-swap inside the same transaction:
	// this closes the TOCTOU window between the conflict check and the
	// tree application.
	affected, err := q.IncrementTranslationVersion(ctx, store.IncrementTranslationVersionParams{
		ID:              translation.ID,
		ExpectedVersion: translation.Version,
		UpdatedAt:       now,
	})
	if err != nil {
		return result, err
	}
	if affected == 0 {
		return result, VersionConflictError(draft.BaseVersion, translation.Version)
	}

	published, err := p.masterModules(ctx, q, translation)
	if err != nil {
		return result, err
	}
	ev := ModulesPublishedEvent{
		PageID:               translation.PageID,
		PublishedTranslation: translation,
		Modules:              published,
		NewMastersByLineage:  newByLineage,
		OccurredAt:           now,
	}
	if err := p.sync.BackfillIdentity(ctx, q, ev); err != nil {
		return result, err
	}
	if !translation.Custom {
		if err := p.sync.SeedPendingTranslations(ctx, q, ev); err != nil {
			return result, err
		}
	}

	if err := q.DeletePageDraft(ctx, draftID); err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, err
	}

	result.TranslationID = translation.ID
	result.NewVersion = translation.Version + 1
	result.ModuleCount = len(published)
	slog.Info("published draft",
		"category", model.EventCategoryPublish,
		"draft_id", draftID, "translation_id", translation.ID,
		"version", result.NewVersion, "modules", result.ModuleCount,
		"created", result.CreatedCount, "updated", result.UpdatedCount,
		"deleted", result.DeletedCount, "force", force)
	return result, nil
}

func (p *PublishCoordinator) masterModules(ctx context.Context, q *store.Queries, translation model.PageTranslation) ([]model.Module, error) {
	if translation.Custom {
		return q.ListModulesByTranslation(ctx, translation.ID)
	}
	return q.ListModulesByPage(ctx, translation.PageID)
}

// Rebase re-synchronizes the draft's base version with the current
// master version without touching module content. Used after a
// conflict before a merged or forced retry.
func (p *PublishCoordinator) Rebase(ctx context.Context, userID, draftID int64) (model.PageDraft, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PageDraft{}, err
	}
	defer func() { _ = tx.Rollback() }()
	q := p.queries.WithTx(tx)

	draft, err := q.GetPageDraftByID(ctx, draftID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PageDraft{}, NotFoundError("draft", draftID)
	}
	if err != nil {
		return model.PageDraft{}, err
	}
	if draft.UserID != userID {
		return model.PageDraft{}, AccessDeniedError("draft belongs to another user")
	}

	translation, err := q.GetPageTranslationByID(ctx, draft.PageTranslationID)
	if err != nil {
		return model.PageDraft{}, err
	}
	now := time.Now()
	if err := q.SetPageDraftBaseVersion(ctx, store.SetPageDraftBaseVersionParams{
		ID:          draftID,
		BaseVersion: translation.Version,
		UpdatedAt:   now,
	}); err != nil {
		return model.PageDraft{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.PageDraft{}, err
	}

	draft.BaseVersion = translation.Version
	draft.UpdatedAt = now
	return draft, nil
}

// Discard deletes the draft and its children without touching master.
func (p *PublishCoordinator) Discard(ctx context.Context, userID, draftID int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	q := p.queries.WithTx(tx)

	draft, err := q.GetPageDraftByID(ctx, draftID)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFoundError("draft", draftID)
	}
	if err != nil {
		return err
	}
	if draft.UserID != userID {
		return AccessDeniedError("draft belongs to another user")
	}
	if err := q.DeletePageDraft(ctx, draftID); err != nil {
		return err
	}
	return tx.Commit()
}
