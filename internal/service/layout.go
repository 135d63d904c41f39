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

	"github.com/pagecraft/pbcms-go/internal/model"
	"github.com/pagecraft/pbcms-go/internal/store"
)

// LayoutModeSwitcher converts a translation between the shared
// (inherited) layout and a translation-owned (custom) layout.
// Switching is version-checked like publish: the caller must present
// the translation version it last saw.
type LayoutModeSwitcher struct {
	db      *sql.DB
	queries *store.Queries
}

// NewLayoutModeSwitcher creates a LayoutModeSwitcher.
func NewLayoutModeSwitcher(db *sql.DB) *LayoutModeSwitcher {
	return &LayoutModeSwitcher{
		db:      db,
		queries: store.New(db),
	}
}

// SwitchModeResult reports the state after a mode switch.
type SwitchModeResult struct {
	TranslationID int64  `json:"translation_id"`
	Mode          string `json:"mode"`
	ModuleCount   int64  `json:"module_count"`
	NewVersion    int64  `json:"new_version"`
}

// LayoutInfo describes a translation's current layout mode and the
// module counts on both sides of a potential switch.
type LayoutInfo struct {
	TranslationID        int64  `json:"translation_id"`
	Mode                 string `json:"mode"`
	InheritedModuleCount int64  `json:"inherited_module_count"`
	CustomModuleCount    int64  `json:"custom_module_count"`
}

// SwitchMode changes the translation's layout mode. Going custom to
// inherited deletes all translation-owned modules. Going inherited to
// custom clones the page's module tree into translation-owned rows
// when copyModules is set, otherwise the custom tree starts empty. The
// translation version is bumped with a compare-and-swap against the
// caller-supplied version, so a concurrent publish or edit fails the
// switch instead of being silently overwritten.
func (l *LayoutModeSwitcher) SwitchMode(ctx context.Context, translationID int64, mode string, copyModules bool, version int64) (SwitchModeResult, error) {
	var result SwitchModeResult

	if mode != model.LayoutInherited && mode != model.LayoutCustom {
		return result, ValidationError(CodeInvalidMode,
			fmt.Sprintf("unknown layout mode %q", mode))
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer func() { _ = tx.Rollback() }()
	q := l.queries.WithTx(tx)

	translation, err := q.GetPageTranslationByID(ctx, translationID)
	if errors.Is(err, sql.ErrNoRows) {
		return result, NotFoundError("translation", translationID)
	}
	if err != nil {
		return result, err
	}
	if translation.Version != version {
		return result, VersionConflictError(version, translation.Version)
	}
	if translation.LayoutMode() == mode {
		return result, ValidationError(CodeInvalidMode,
			fmt.Sprintf("translation %d already uses the %s layout", translationID, mode))
	}

	now := time.Now().UTC()

	switch mode {
	case model.LayoutInherited:
		if err := q.DeleteModulesByTranslation(ctx, translationID); err != nil {
			return result, err
		}
	case model.LayoutCustom:
		if copyModules {
			if err := l.clonePageTree(ctx, q, translation, now); err != nil {
				return result, err
			}
		}
	}

	if err := q.SetTranslationCustom(ctx, store.SetTranslationCustomParams{
		ID:        translationID,
		Custom:    mode == model.LayoutCustom,
		UpdatedAt: now,
	}); err != nil {
		return result, err
	}

	affected, err := q.IncrementTranslationVersion(ctx, store.IncrementTranslationVersionParams{
		ID:              translationID,
		ExpectedVersion: translation.Version,
		UpdatedAt:       now,
	})
	if err != nil {
		return result, err
	}
	if affected == 0 {
		current, err := q.GetPageTranslationByID(ctx, translationID)
		if err != nil {
			return result, err
		}
		return result, VersionConflictError(version, current.Version)
	}

	var count int64
	if mode == model.LayoutCustom {
		count, err = q.CountModulesByTranslation(ctx, translationID)
	} else {
		count, err = q.CountModulesByPage(ctx, translation.PageID)
	}
	if err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, err
	}

	slog.Info("layout mode switched",
		"translation_id", translationID,
		"mode", mode,
		"module_count", count)

	return SwitchModeResult{
		TranslationID: translationID,
		Mode:          mode,
		ModuleCount:   count,
		NewVersion:    translation.Version + 1,
	}, nil
}

// Info reports the translation's layout mode together with the module
// counts of the shared tree and the translation-owned tree.
func (l *LayoutModeSwitcher) Info(ctx context.Context, translationID int64) (LayoutInfo, error) {
	translation, err := l.queries.GetPageTranslationByID(ctx, translationID)
	if errors.Is(err, sql.ErrNoRows) {
		return LayoutInfo{}, NotFoundError("translation", translationID)
	}
	if err != nil {
		return LayoutInfo{}, err
	}
	inherited, err := l.queries.CountModulesByPage(ctx, translation.PageID)
	if err != nil {
		return LayoutInfo{}, err
	}
	custom, err := l.queries.CountModulesByTranslation(ctx, translationID)
	if err != nil {
		return LayoutInfo{}, err
	}
	return LayoutInfo{
		TranslationID:        translationID,
		Mode:                 translation.LayoutMode(),
		InheritedModuleCount: inherited,
		CustomModuleCount:    custom,
	}, nil
}

// clonePageTree copies the page's inherited module tree, including its
// per-language translation rows, into translation-owned modules. Two
// passes keep parent references valid regardless of sort order.
func (l *LayoutModeSwitcher) clonePageTree(ctx context.Context, q *store.Queries, translation model.PageTranslation, now time.Time) error {
	source, err := q.ListModulesByPage(ctx, translation.PageID)
	if err != nil {
		return err
	}

	cloned := make(map[int64]int64, len(source))
	for _, m := range source {
		created, err := q.CreateModule(ctx, store.CreateModuleParams{
			PageTranslationID: &translation.ID,
			Type:              m.Type,
			Settings:          m.Settings.Clone(),
			Sort:              m.Sort,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if err != nil {
			return err
		}
		cloned[m.ID] = created.ID

		translations, err := q.ListModuleTranslationsByModule(ctx, m.ID)
		if err != nil {
			return err
		}
		for _, mt := range translations {
			if err := q.UpsertModuleTranslation(ctx, store.UpsertModuleTranslationParams{
				ModuleID:  created.ID,
				Language:  mt.Language,
				Settings:  mt.Settings.Clone(),
				Status:    mt.Status,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}
	}

	for _, m := range source {
		if m.ParentID == nil {
			continue
		}
		parentID, ok := cloned[*m.ParentID]
		if !ok {
			continue
		}
		if err := q.SetModuleParent(ctx, cloned[m.ID], &parentID); err != nil {
			return err
		}
	}
	return nil
}
