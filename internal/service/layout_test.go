// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pbcms-go/internal/model"
	"github.com/pagecraft/pbcms-go/internal/store"
	"github.com/pagecraft/pbcms-go/internal/testutil"
)

func TestSwitchModeInvalidMode(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	_, translations := newPageFixture(t, db, "en")
	ls := NewLayoutModeSwitcher(db)

	_, err := ls.SwitchMode(context.Background(), translations["en"].ID, "hybrid", false, 1)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, CodeInvalidMode, svcErr.Code)

	// Switching to the mode already in effect is rejected the same way.
	_, err = ls.SwitchMode(context.Background(), translations["en"].ID, model.LayoutInherited, false, 1)
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, CodeInvalidMode, svcErr.Code)
}

func TestSwitchModeVersionConflict(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	_, translations := newPageFixture(t, db, "en")
	ls := NewLayoutModeSwitcher(db)

	_, err := ls.SwitchMode(context.Background(), translations["en"].ID, model.LayoutCustom, false, 99)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, CodeVersionConflict, svcErr.Code)
	assert.Equal(t, "99", svcErr.Details["draftBaseVersion"])
	assert.Equal(t, "1", svcErr.Details["currentMasterVersion"])
}

func TestSwitchModeToCustomWithCopy(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()
	queries := store.New(db)

	_, translations := newPageFixture(t, db, "en", "de")
	tr := translations["en"]
	masters := publishTree(t, db, tr.ID, []ModuleItem{
		{TempKey: "wrap", Type: "link", Sort: 0},
		{TempKey: "body", ParentTempKey: "wrap", Type: "text",
			Settings: model.Settings{"body": "x"}, TranslationSettings: model.Settings{"body": "x"}, Sort: 0},
	})
	require.Len(t, masters, 2)

	current, err := queries.GetPageTranslationByID(ctx, tr.ID)
	require.NoError(t, err)

	ls := NewLayoutModeSwitcher(db)
	result, err := ls.SwitchMode(ctx, tr.ID, model.LayoutCustom, true, current.Version)
	require.NoError(t, err)
	assert.Equal(t, model.LayoutCustom, result.Mode)
	assert.Equal(t, int64(2), result.ModuleCount)
	assert.Equal(t, current.Version+1, result.NewVersion)

	// The clone is translation-owned, keeps the tree shape and carries
	// the translation rows.
	owned, err := queries.ListModulesByTranslation(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	var wrap, body model.Module
	for _, m := range owned {
		if m.Type == "link" {
			wrap = m
		} else {
			body = m
		}
	}
	assert.NotEqual(t, masters["link"].ID, wrap.ID)
	require.NotNil(t, body.ParentID)
	assert.Equal(t, wrap.ID, *body.ParentID)

	mts, err := queries.ListModuleTranslationsByModule(ctx, body.ID)
	require.NoError(t, err)
	require.NotEmpty(t, mts)

	// The shared tree is untouched and still serves the sibling.
	shared, err := queries.ListModulesByPage(ctx, tr.PageID)
	require.NoError(t, err)
	assert.Len(t, shared, 2)

	info, err := ls.Info(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LayoutCustom, info.Mode)
	assert.Equal(t, int64(2), info.InheritedModuleCount)
	assert.Equal(t, int64(2), info.CustomModuleCount)
}

func TestSwitchModeToCustomEmpty(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	tr := translations["en"]
	publishTree(t, db, tr.ID, []ModuleItem{
		{TempKey: "a", Type: "text", Sort: 0},
	})
	current, err := store.New(db).GetPageTranslationByID(ctx, tr.ID)
	require.NoError(t, err)

	ls := NewLayoutModeSwitcher(db)
	result, err := ls.SwitchMode(ctx, tr.ID, model.LayoutCustom, false, current.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.ModuleCount)
}

func TestSwitchModeBackToInherited(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()
	queries := store.New(db)

	_, translations := newPageFixture(t, db, "en")
	tr := translations["en"]
	publishTree(t, db, tr.ID, []ModuleItem{
		{TempKey: "a", Type: "text", Sort: 0},
	})
	current, err := queries.GetPageTranslationByID(ctx, tr.ID)
	require.NoError(t, err)

	ls := NewLayoutModeSwitcher(db)
	_, err = ls.SwitchMode(ctx, tr.ID, model.LayoutCustom, true, current.Version)
	require.NoError(t, err)

	owned, err := queries.ListModulesByTranslation(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	result, err := ls.SwitchMode(ctx, tr.ID, model.LayoutInherited, false, current.Version+1)
	require.NoError(t, err)
	assert.Equal(t, model.LayoutInherited, result.Mode)
	assert.Equal(t, int64(1), result.ModuleCount)

	// Translation-owned modules are gone; the shared tree takes over.
	owned, err = queries.ListModulesByTranslation(ctx, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)
	shared, err := queries.ListModulesByPage(ctx, tr.PageID)
	require.NoError(t, err)
	assert.Len(t, shared, 1)
}
