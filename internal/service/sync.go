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

// CrossLanguageSynchronizer propagates structural changes in a shared
// layout to sibling-language drafts, seeds pending translations at
// publish time and backfills master identity into sibling drafts. Its
// methods run on the caller's transaction: propagation is part of the
// save/publish atomic unit, never best-effort follow-up work.
type CrossLanguageSynchronizer struct{}

// NewCrossLanguageSynchronizer creates a synchronizer.
func NewCrossLanguageSynchronizer() *CrossLanguageSynchronizer {
	return &CrossLanguageSynchronizer{}
}

// ModulesCreatedEvent describes new modules added to one language's
// draft of a shared-layout translation. ParentLineage maps a created
// row id to its parent row's lineage key, which identifies the parent
// across language clones.
type ModulesCreatedEvent struct {
	UserID              int64
	PageID              int64
	SourceTranslationID int64
	SourceDraftID       int64
	Created             []model.ModuleDraft
	ParentLineage       map[int64]string
	OccurredAt          time.Time
}

// PropagateCreated clones the event's new modules into every sibling
// non-custom translation's draft of the same user, creating those
// drafts when absent. Clones share the source rows' lineage so a later
// publish backfills all of them with the same master id.
func (s *CrossLanguageSynchronizer) PropagateCreated(ctx context.Context, q *store.Queries, ev ModulesCreatedEvent) error {
	siblings, err := q.ListPageTranslationsByPage(ctx, ev.PageID)
	if err != nil {
		return err
	}
	for _, sibling := range siblings {
		if sibling.ID == ev.SourceTranslationID || sibling.Custom {
			continue
		}
		if err := s.cloneIntoSibling(ctx, q, ev, sibling); err != nil {
			return err
		}
	}
	return nil
}

func (s *CrossLanguageSynchronizer) cloneIntoSibling(ctx context.Context, q *store.Queries, ev ModulesCreatedEvent, sibling model.PageTranslation) error {
	draft, created, err := s.siblingDraft(ctx, q, ev.UserID, sibling, ev.OccurredAt)
	if err != nil {
		return err
	}
	if created {
		// A fresh sibling draft receives the source draft's whole tree,
		// new modules included, exactly like the get-or-create clone.
		rows, err := q.ListSavedModuleDraftsByPageDraft(ctx, ev.SourceDraftID)
		if err != nil {
			return err
		}
		return s.CloneDraftTree(ctx, q, rows, draft.ID, ev.OccurredAt)
	}

	rows, err := q.ListModuleDraftsByPageDraft(ctx, draft.ID)
	if err != nil {
		return err
	}
	byLineage := make(map[string]model.ModuleDraft, len(rows))
	byOriginal := make(map[int64]model.ModuleDraft)
	for _, row := range rows {
		byLineage[row.Lineage] = row
		if row.OriginalModuleID != nil {
			byOriginal[*row.OriginalModuleID] = row
		}
	}

	for _, src := range ev.Created {
		if _, exists := byLineage[src.Lineage]; exists {
			continue
		}
		var parentID *int64
		if lineage, ok := ev.ParentLineage[src.ID]; ok {
			if parent, ok := byLineage[lineage]; ok {
				id := parent.ID
				parentID = &id
			}
		}
		clone, err := q.CreateModuleDraft(ctx, store.CreateModuleDraftParams{
			PageDraftID:   draft.ID,
			ParentDraftID: parentID,
			Type:          src.Type,
			Settings:      src.Settings.Clone(),
			Sort:          src.Sort,
			Lineage:       src.Lineage,
			CreatedAt:     ev.OccurredAt,
			UpdatedAt:     ev.OccurredAt,
		})
		if err != nil {
			return err
		}
		byLineage[clone.Lineage] = clone
	}
	return q.TouchPageDraft(ctx, draft.ID, ev.OccurredAt)
}

// siblingDraft fetches or creates the user's draft for a sibling
// translation. The bool result reports whether the draft was created.
func (s *CrossLanguageSynchronizer) siblingDraft(ctx context.Context, q *store.Queries, userID int64, sibling model.PageTranslation, now time.Time) (model.PageDraft, bool, error) {
	draft, err := q.GetPageDraftByUserAndTranslation(ctx, store.GetPageDraftByUserAndTranslationParams{
		UserID:            userID,
		PageTranslationID: sibling.ID,
	})
	if err == nil {
		return draft, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.PageDraft{}, false, err
	}
	draft, err = q.CreatePageDraft(ctx, store.CreatePageDraftParams{
		UserID:            userID,
		PageTranslationID: sibling.ID,
		Language:          sibling.Language,
		BaseVersion:       sibling.Version,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return model.PageDraft{}, false, err
	}
	return draft, true, nil
}

// CloneDraftTree copies module draft rows into the target draft,
// preserving lineage, master links, tree shape and ordering. Rows are
// created first, parents linked second, so ordering inside the source
// slice does not matter.
func (s *CrossLanguageSynchronizer) CloneDraftTree(ctx context.Context, q *store.Queries, rows []model.ModuleDraft, targetDraftID int64, now time.Time) error {
	oldToNew := make(map[int64]int64, len(rows))
	for _, row := range rows {
		clone, err := q.CreateModuleDraft(ctx, store.CreateModuleDraftParams{
			PageDraftID:      targetDraftID,
			OriginalModuleID: row.OriginalModuleID,
			Type:             row.Type,
			Settings:         row.Settings.Clone(),
			Sort:             row.Sort,
			Lineage:          row.Lineage,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return err
		}
		oldToNew[row.ID] = clone.ID
	}
	for _, row := range rows {
		if row.ParentDraftID == nil {
			continue
		}
		newParent, ok := oldToNew[*row.ParentDraftID]
		if !ok {
			continue
		}
		if err := q.SetModuleDraftParent(ctx, oldToNew[row.ID], &newParent); err != nil {
			return err
		}
	}
	return nil
}

// ModulesPublishedEvent describes the outcome of a publish on a shared
// layout: the master tree now live and the language it was published in.
type ModulesPublishedEvent struct {
	PageID               int64
	PublishedTranslation model.PageTranslation
	Modules              []model.Module
	NewMastersByLineage  map[string]int64
	OccurredAt           time.Time
}

// BackfillIdentity sets the freshly assigned master ids on every
// sibling draft row sharing a published lineage, so those drafts update
// rather than duplicate on their own publish. Already-linked rows are
// never rewritten.
func (s *CrossLanguageSynchronizer) BackfillIdentity(ctx context.Context, q *store.Queries, ev ModulesPublishedEvent) error {
	for lineage, masterID := range ev.NewMastersByLineage {
		if err := q.BackfillLineageOriginal(ctx, store.BackfillLineageOriginalParams{
			Lineage:          lineage,
			OriginalModuleID: masterID,
			UpdatedAt:        ev.OccurredAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

// SeedPendingTranslations creates a PENDING translation row, seeded
// with the just-published language's content as fallback, for every
// (module, sibling language) pair still lacking one. The page renders
// with something in every language until a human translates it.
func (s *CrossLanguageSynchronizer) SeedPendingTranslations(ctx context.Context, q *store.Queries, ev ModulesPublishedEvent) error {
	siblings, err := q.ListPageTranslationsByPage(ctx, ev.PageID)
	if err != nil {
		return err
	}
	seeded := 0
	for _, module := range ev.Modules {
		existing, err := q.ListModuleTranslationsByModule(ctx, module.ID)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		fallback := module.Settings
		for _, mt := range existing {
			have[mt.Language] = true
			if mt.Language == ev.PublishedTranslation.Language {
				fallback = mt.Settings
			}
		}
		for _, sibling := range siblings {
			if sibling.ID == ev.PublishedTranslation.ID || sibling.Custom || have[sibling.Language] {
				continue
			}
			if err := q.UpsertModuleTranslation(ctx, store.UpsertModuleTranslationParams{
				ModuleID:  module.ID,
				Language:  sibling.Language,
				Settings:  fallback.Clone(),
				Status:    model.TranslationStatusPending,
				CreatedAt: ev.OccurredAt,
				UpdatedAt: ev.OccurredAt,
			}); err != nil {
				return err
			}
			seeded++
		}
	}
	if seeded > 0 {
		slog.Info("seeded pending translations",
			"category", model.EventCategoryPublish,
			"page_id", ev.PageID, "language", ev.PublishedTranslation.Language, "seeded", seeded)
	}
	return nil
}
