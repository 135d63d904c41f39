// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/pagecraft/pbcms-go/internal/model"
	"github.com/pagecraft/pbcms-go/internal/store"
	"github.com/pagecraft/pbcms-go/internal/testutil"
)

const testUserID = int64(7)

// newPageFixture creates a page with one translation per language and
// returns the translations keyed by language code.
func newPageFixture(t *testing.T, db *sql.DB, languages ...string) (model.Page, map[string]model.PageTranslation) {
	t.Helper()
	ctx := context.Background()
	pages := NewPageService(db)

	page, err := pages.CreatePage(ctx, CreatePageParams{Name: "Test Page"})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	translations := make(map[string]model.PageTranslation, len(languages))
	for _, lang := range languages {
		tr, err := pages.CreateTranslation(ctx, CreateTranslationParams{
			PageID:   page.ID,
			Language: lang,
			Slug:     "test-page",
			Title:    "Test Page",
		})
		if err != nil {
			t.Fatalf("CreateTranslation(%s): %v", lang, err)
		}
		translations[lang] = tr
	}
	return page, translations
}

func newDraftManager(db *sql.DB) *DraftManager {
	return NewDraftManager(db, NewCrossLanguageSynchronizer())
}

func moduleDraftCount(t *testing.T, db *sql.DB, draftID int64) int64 {
	t.Helper()
	n, err := store.New(db).CountModuleDraftsByPageDraft(context.Background(), draftID)
	if err != nil {
		t.Fatalf("CountModuleDraftsByPageDraft: %v", err)
	}
	return n
}

func TestGetOrCreateDraftIdempotent(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)

	first, err := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)
	if err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}
	second, err := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)
	if err != nil {
		t.Fatalf("GetOrCreateDraft (second): %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("draft id = %d on second call, want %d", second.ID, first.ID)
	}
	if first.BaseVersion != translations["en"].Version {
		t.Errorf("base version = %d, want %d", first.BaseVersion, translations["en"].Version)
	}
}

func TestGetOrCreateDraftUnknownTranslation(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	dm := newDraftManager(db)
	_, err := dm.GetOrCreateDraft(context.Background(), testUserID, 9999)
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != CodeNotFound {
		t.Fatalf("err = %v, want %s", err, CodeNotFound)
	}
}

func TestSaveModulesCreatesTree(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, err := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)
	if err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}

	result, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "link-1", Type: "link", Settings: model.Settings{"url": "/about"}, Sort: 0},
		{TempKey: "text-1", ParentTempKey: "link-1", Type: "text",
			Settings:            model.Settings{"body": "hello"},
			TranslationSettings: model.Settings{"body": "hello"}, Sort: 0},
	})
	if err != nil {
		t.Fatalf("SaveModules: %v", err)
	}
	if len(result.Modules) != 2 {
		t.Fatalf("saved modules = %d, want 2", len(result.Modules))
	}
	if len(result.TempKeyMapping) != 2 {
		t.Fatalf("temp key mappings = %d, want 2", len(result.TempKeyMapping))
	}

	parentID := result.TempKeyMapping["link-1"]
	childID := result.TempKeyMapping["text-1"]
	child, err := store.New(db).GetModuleDraftByID(ctx, childID)
	if err != nil {
		t.Fatalf("GetModuleDraftByID: %v", err)
	}
	if child.ParentDraftID == nil || *child.ParentDraftID != parentID {
		t.Errorf("child parent = %v, want %d", child.ParentDraftID, parentID)
	}
	if child.Lineage == "" {
		t.Error("created row has empty lineage")
	}
}

func TestSaveModulesNoDuplication(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	first, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "m1", Type: "text", Settings: model.Settings{"body": "a"}, Sort: 0},
	})
	if err != nil {
		t.Fatalf("SaveModules: %v", err)
	}
	rowID := first.TempKeyMapping["m1"]

	// Resubmitting by draft id must update the same row.
	for i := 0; i < 3; i++ {
		_, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
			{DraftID: &rowID, Type: "text", Settings: model.Settings{"body": "b"}, Sort: 0},
		})
		if err != nil {
			t.Fatalf("SaveModules (resubmit %d): %v", i, err)
		}
	}
	if n := moduleDraftCount(t, db, draft.ID); n != 1 {
		t.Errorf("module draft count = %d after resubmits, want 1", n)
	}
}

func TestSaveModulesScratchConversion(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	scratch, err := dm.QuickCreate(ctx, testUserID, draft.ID, "gallery", model.Settings{"columns": float64(3)})
	if err != nil {
		t.Fatalf("QuickCreate: %v", err)
	}
	if !scratch.IsScratch() {
		t.Fatalf("quick-created row sort = %d, want scratch sentinel", scratch.Sort)
	}

	// The client believes the scratch row id is a master module id.
	result, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{OriginalModuleID: &scratch.ID, Type: "gallery", Settings: model.Settings{"columns": float64(4)}, Sort: 0},
	})
	if err != nil {
		t.Fatalf("SaveModules: %v", err)
	}
	mapped, ok := result.OriginalIDMapping[scratch.ID]
	if !ok || mapped != scratch.ID {
		t.Errorf("original id mapping = %v, want %d -> %d", result.OriginalIDMapping, scratch.ID, scratch.ID)
	}
	if n := moduleDraftCount(t, db, draft.ID); n != 1 {
		t.Errorf("module draft count = %d, want 1 (converted in place)", n)
	}

	row, err := store.New(db).GetModuleDraftByID(ctx, scratch.ID)
	if err != nil {
		t.Fatalf("GetModuleDraftByID: %v", err)
	}
	if row.IsScratch() {
		t.Error("converted row is still scratch")
	}
	if row.OriginalModuleID != nil {
		t.Errorf("converted row original id = %v, want nil (never was on master)", *row.OriginalModuleID)
	}
}

func TestSaveModulesUnresolvedParentRollsBack(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	_, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "a", Type: "text", Sort: 0},
		{TempKey: "b", ParentTempKey: "missing", Type: "text", Sort: 1},
	})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != CodeUnresolvedParent {
		t.Fatalf("err = %v, want %s", err, CodeUnresolvedParent)
	}
	// The whole batch is rejected, including the resolvable row.
	if n := moduleDraftCount(t, db, draft.ID); n != 0 {
		t.Errorf("module draft count = %d after rejected save, want 0", n)
	}
}

func TestSaveModulesCyclicParentRollsBack(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	first, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "a", Type: "text", Sort: 0},
		{TempKey: "b", Type: "text", Sort: 1},
	})
	if err != nil {
		t.Fatalf("SaveModules: %v", err)
	}
	aID := first.TempKeyMapping["a"]
	bID := first.TempKeyMapping["b"]

	// Each row names the other as its parent.
	_, err = dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{DraftID: &aID, ParentDraftID: &bID, Type: "text", Sort: 0},
		{DraftID: &bID, ParentDraftID: &aID, Type: "text", Sort: 0},
	})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != CodeUnresolvedParent {
		t.Fatalf("err = %v, want %s", err, CodeUnresolvedParent)
	}
	// The rejected batch left the previous forest untouched.
	for _, id := range []int64{aID, bID} {
		row, err := store.New(db).GetModuleDraftByID(ctx, id)
		if err != nil {
			t.Fatalf("GetModuleDraftByID(%d): %v", id, err)
		}
		if row.ParentDraftID != nil {
			t.Errorf("row %d parent = %v after rejected save, want nil", id, *row.ParentDraftID)
		}
	}

	// A chain involving a fresh row is rejected the same way.
	_, err = dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "c", ParentDraftID: &aID, Type: "text", Sort: 0},
		{DraftID: &aID, ParentTempKey: "c", Type: "text", Sort: 0},
		{DraftID: &bID, Type: "text", Sort: 1},
	})
	if !errors.As(err, &svcErr) || svcErr.Code != CodeUnresolvedParent {
		t.Fatalf("err = %v, want %s", err, CodeUnresolvedParent)
	}
	if n := moduleDraftCount(t, db, draft.ID); n != 2 {
		t.Errorf("module draft count = %d after rejected save, want 2", n)
	}
}

func TestSaveModulesDuplicateSiblingSort(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	_, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "a", Type: "text", Sort: 0},
		{TempKey: "b", Type: "text", Sort: 0},
	})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != CodeInvalidInput {
		t.Fatalf("err = %v, want %s", err, CodeInvalidInput)
	}
	if n := moduleDraftCount(t, db, draft.ID); n != 0 {
		t.Errorf("module draft count = %d after rejected save, want 0", n)
	}

	// The same sort under different parents is two distinct slots.
	if _, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "left", Type: "tabs", Sort: 0},
		{TempKey: "right", Type: "tabs", Sort: 1},
		{TempKey: "x", ParentTempKey: "left", Type: "text", Sort: 0},
		{TempKey: "y", ParentTempKey: "right", Type: "text", Sort: 0},
	}); err != nil {
		t.Fatalf("SaveModules: %v", err)
	}
}

func TestSaveModulesRemovesOmittedRows(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	first, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "keep", Type: "text", Sort: 0},
		{TempKey: "drop", Type: "text", Sort: 1},
	})
	if err != nil {
		t.Fatalf("SaveModules: %v", err)
	}
	keepID := first.TempKeyMapping["keep"]

	second, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{DraftID: &keepID, Type: "text", Sort: 0},
	})
	if err != nil {
		t.Fatalf("SaveModules (second): %v", err)
	}
	if len(second.Modules) != 1 {
		t.Errorf("saved modules = %d, want 1", len(second.Modules))
	}
	if n := moduleDraftCount(t, db, draft.ID); n != 1 {
		t.Errorf("module draft count = %d, want 1", n)
	}
}

func TestScratchCleanupOnDraftFetchAndStatus(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	if _, err := dm.QuickCreate(ctx, testUserID, draft.ID, "text", nil); err != nil {
		t.Fatalf("QuickCreate: %v", err)
	}
	if n := moduleDraftCount(t, db, draft.ID); n != 1 {
		t.Fatalf("module draft count = %d, want 1", n)
	}

	if _, err := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID); err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}
	if n := moduleDraftCount(t, db, draft.ID); n != 0 {
		t.Errorf("module draft count = %d after refetch, want 0", n)
	}

	if _, err := dm.QuickCreate(ctx, testUserID, draft.ID, "text", nil); err != nil {
		t.Fatalf("QuickCreate: %v", err)
	}
	if _, err := dm.Status(ctx, testUserID, translations["en"].ID); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if n := moduleDraftCount(t, db, draft.ID); n != 0 {
		t.Errorf("module draft count = %d after status, want 0", n)
	}
}

func TestTranslationStatusLaw(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()
	queries := store.New(db)

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	content := model.Settings{"body": "original"}
	result, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "m", Type: "text", Settings: content, TranslationSettings: content, Sort: 0},
	})
	if err != nil {
		t.Fatalf("SaveModules: %v", err)
	}
	rowID := result.TempKeyMapping["m"]

	// Force the row to PENDING as if it were seeded by a sibling publish.
	now := time.Now()
	if err := queries.UpsertModuleTranslationDraft(ctx, store.UpsertModuleTranslationDraftParams{
		ModuleDraftID: rowID,
		Language:      "en",
		Settings:      content,
		Status:        model.TranslationStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		t.Fatalf("UpsertModuleTranslationDraft: %v", err)
	}

	// Saving identical content must not complete the translation.
	if _, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{DraftID: &rowID, Type: "text", Settings: content, TranslationSettings: content, Sort: 0},
	}); err != nil {
		t.Fatalf("SaveModules (identical): %v", err)
	}
	td, err := queries.GetModuleTranslationDraft(ctx, store.GetModuleTranslationDraftParams{
		ModuleDraftID: rowID, Language: "en",
	})
	if err != nil {
		t.Fatalf("GetModuleTranslationDraft: %v", err)
	}
	if td.Status != model.TranslationStatusPending {
		t.Errorf("status = %q after identical save, want %q", td.Status, model.TranslationStatusPending)
	}

	// Different content marks it translated.
	if _, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{DraftID: &rowID, Type: "text", Settings: content,
			TranslationSettings: model.Settings{"body": "edited"}, Sort: 0},
	}); err != nil {
		t.Fatalf("SaveModules (edited): %v", err)
	}
	td, err = queries.GetModuleTranslationDraft(ctx, store.GetModuleTranslationDraftParams{
		ModuleDraftID: rowID, Language: "en",
	})
	if err != nil {
		t.Fatalf("GetModuleTranslationDraft: %v", err)
	}
	if td.Status != model.TranslationStatusTranslated {
		t.Errorf("status = %q after edit, want %q", td.Status, model.TranslationStatusTranslated)
	}
}

func TestSaveModulesPropagatesToSiblingDraft(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()
	queries := store.New(db)

	_, translations := newPageFixture(t, db, "en", "de")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	result, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{TempKey: "parent", Type: "link", Sort: 0},
		{TempKey: "child", ParentTempKey: "parent", Type: "text", Sort: 0},
	})
	if err != nil {
		t.Fatalf("SaveModules: %v", err)
	}

	// The save created the sibling draft and cloned the new rows in.
	sibling, err := queries.GetPageDraftByUserAndTranslation(ctx, store.GetPageDraftByUserAndTranslationParams{
		UserID:            testUserID,
		PageTranslationID: translations["de"].ID,
	})
	if err != nil {
		t.Fatalf("sibling draft not created: %v", err)
	}
	rows, err := queries.ListModuleDraftsByPageDraft(ctx, sibling.ID)
	if err != nil {
		t.Fatalf("ListModuleDraftsByPageDraft: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("sibling rows = %d, want 2", len(rows))
	}

	source, err := queries.GetModuleDraftByID(ctx, result.TempKeyMapping["parent"])
	if err != nil {
		t.Fatalf("GetModuleDraftByID: %v", err)
	}
	lineages := map[string]bool{}
	for _, row := range rows {
		lineages[row.Lineage] = true
	}
	if !lineages[source.Lineage] {
		t.Error("sibling clone does not share the source lineage")
	}

	// A repeated save of the same rows must not clone again.
	keepParent := result.TempKeyMapping["parent"]
	keepChild := result.TempKeyMapping["child"]
	if _, err := dm.SaveModules(ctx, testUserID, draft.ID, "en", []ModuleItem{
		{DraftID: &keepParent, Type: "link", Sort: 0},
		{DraftID: &keepChild, ParentDraftID: &keepParent, Type: "text", Sort: 0},
	}); err != nil {
		t.Fatalf("SaveModules (repeat): %v", err)
	}
	if n := moduleDraftCount(t, db, sibling.ID); n != 2 {
		t.Errorf("sibling rows = %d after repeat save, want 2", n)
	}
}

func TestSaveModulesOwnership(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, translations := newPageFixture(t, db, "en")
	dm := newDraftManager(db)
	draft, _ := dm.GetOrCreateDraft(ctx, testUserID, translations["en"].ID)

	_, err := dm.SaveModules(ctx, testUserID+1, draft.ID, "en", []ModuleItem{
		{TempKey: "m", Type: "text", Sort: 0},
	})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != CodeAccessDenied {
		t.Fatalf("err = %v, want %s", err, CodeAccessDenied)
	}
}
