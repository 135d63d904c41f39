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
	"github.com/pagecraft/pbcms-go/internal/util"
)

// PageService manages the page and translation entities the draft and
// publish machinery operates on.
type PageService struct {
	db      *sql.DB
	queries *store.Queries
}

// NewPageService creates a PageService.
func NewPageService(db *sql.DB) *PageService {
	return &PageService{
		db:      db,
		queries: store.New(db),
	}
}

// CreatePageParams describes a new page.
type CreatePageParams struct {
	Name     string
	ParentID *int64
	Is404    bool
}

// CreatePage creates a page. The first root page becomes the homepage.
// Only one page may carry the 404 flag.
func (s *PageService) CreatePage(ctx context.Context, arg CreatePageParams) (model.Page, error) {
	if arg.Name == "" {
		return model.Page{}, ValidationError(CodeInvalidInput, "page name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Page{}, err
	}
	defer func() { _ = tx.Rollback() }()
	q := s.queries.WithTx(tx)

	if arg.ParentID != nil {
		if _, err := q.GetPageByID(ctx, *arg.ParentID); errors.Is(err, sql.ErrNoRows) {
			return model.Page{}, NotFoundError("page", *arg.ParentID)
		} else if err != nil {
			return model.Page{}, err
		}
	}
	if arg.Is404 {
		n, err := q.Count404Pages(ctx)
		if err != nil {
			return model.Page{}, err
		}
		if n > 0 {
			return model.Page{}, ConflictError(Code404AlreadyExists, "a 404 page already exists")
		}
	}

	homepage := false
	if arg.ParentID == nil && !arg.Is404 {
		roots, err := q.CountRootPages(ctx)
		if err != nil {
			return model.Page{}, err
		}
		homepage = roots == 0
	}

	now := time.Now().UTC()
	page, err := q.CreatePage(ctx, store.CreatePageParams{
		Name:       arg.Name,
		ParentID:   arg.ParentID,
		Is404:      arg.Is404,
		IsHomepage: homepage,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return model.Page{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Page{}, err
	}

	slog.Info("page created", "page_id", page.ID, "name", page.Name, "homepage", homepage)
	return page, nil
}

// GetPage fetches a page by id.
func (s *PageService) GetPage(ctx context.Context, id int64) (model.Page, error) {
	page, err := s.queries.GetPageByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, NotFoundError("page", id)
	}
	return page, err
}

// DeletePage removes a page together with its translations, modules
// and drafts. The homepage and pages with children are protected.
func (s *PageService) DeletePage(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	q := s.queries.WithTx(tx)

	page, err := q.GetPageByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFoundError("page", id)
	}
	if err != nil {
		return err
	}
	if page.IsHomepage {
		return ConflictError(CodeHomepageUndeletable, "the homepage cannot be deleted")
	}
	children, err := q.CountChildPages(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return ConflictError(CodePageHasChildren,
			fmt.Sprintf("page %d has %d child pages", id, children))
	}
	if err := q.DeletePage(ctx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("page deleted", "page_id", id, "name", page.Name)
	return nil
}

// CreateTranslationParams describes a new page translation. An empty
// Slug is derived from the Title.
type CreateTranslationParams struct {
	PageID      int64
	Language    string
	Slug        string
	Title       string
	Description string
	Keywords    string
}

// CreateTranslation adds a language version to a page. The slug must
// be unique within the language; the (page, language) pair is unique.
func (s *PageService) CreateTranslation(ctx context.Context, arg CreateTranslationParams) (model.PageTranslation, error) {
	slug := arg.Slug
	if slug == "" {
		slug = util.Slugify(arg.Title)
	}
	if !util.IsValidSlug(slug) {
		return model.PageTranslation{}, ValidationError(CodeInvalidSlug,
			fmt.Sprintf("slug %q is not a valid slug", slug))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PageTranslation{}, err
	}
	defer func() { _ = tx.Rollback() }()
	q := s.queries.WithTx(tx)

	if _, err := q.GetPageByID(ctx, arg.PageID); errors.Is(err, sql.ErrNoRows) {
		return model.PageTranslation{}, NotFoundError("page", arg.PageID)
	} else if err != nil {
		return model.PageTranslation{}, err
	}

	_, err = q.GetPageTranslationByPageAndLanguage(ctx, store.GetPageTranslationByPageAndLanguageParams{
		PageID:   arg.PageID,
		Language: arg.Language,
	})
	if err == nil {
		return model.PageTranslation{}, ConflictError(CodeTranslationExists,
			fmt.Sprintf("page %d already has a %q translation", arg.PageID, arg.Language))
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.PageTranslation{}, err
	}

	taken, err := q.CountTranslationsBySlug(ctx, store.CountTranslationsBySlugParams{
		Language: arg.Language,
		Slug:     slug,
	})
	if err != nil {
		return model.PageTranslation{}, err
	}
	if taken > 0 {
		return model.PageTranslation{}, ConflictError(CodeSlugExists,
			fmt.Sprintf("slug %q is already used in language %q", slug, arg.Language))
	}

	now := time.Now().UTC()
	translation, err := q.CreatePageTranslation(ctx, store.CreatePageTranslationParams{
		PageID:      arg.PageID,
		Language:    arg.Language,
		Slug:        slug,
		Title:       arg.Title,
		Description: arg.Description,
		Keywords:    arg.Keywords,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.PageTranslation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.PageTranslation{}, err
	}

	slog.Info("translation created",
		"translation_id", translation.ID,
		"page_id", arg.PageID,
		"language", arg.Language,
		"slug", slug)
	return translation, nil
}

// GetTranslation fetches a translation by id.
func (s *PageService) GetTranslation(ctx context.Context, id int64) (model.PageTranslation, error) {
	translation, err := s.queries.GetPageTranslationByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PageTranslation{}, NotFoundError("translation", id)
	}
	return translation, err
}

// ListTranslations returns all translations of a page.
func (s *PageService) ListTranslations(ctx context.Context, pageID int64) ([]model.PageTranslation, error) {
	if _, err := s.queries.GetPageByID(ctx, pageID); errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundError("page", pageID)
	} else if err != nil {
		return nil, err
	}
	return s.queries.ListPageTranslationsByPage(ctx, pageID)
}

// UpdateTranslationParams carries the editable translation fields plus
// the version the caller last saw.
type UpdateTranslationParams struct {
	ID          int64
	Slug        string
	Title       string
	Description string
	Keywords    string
	Version     int64
}

// UpdateTranslation edits a translation's metadata under the same
// compare-and-swap version rule as publish. The version is bumped on
// success, so open drafts against the old version will report a
// conflict until rebased.
func (s *PageService) UpdateTranslation(ctx context.Context, arg UpdateTranslationParams) (model.PageTranslation, error) {
	if !util.IsValidSlug(arg.Slug) {
		return model.PageTranslation{}, ValidationError(CodeInvalidSlug,
			fmt.Sprintf("slug %q is not a valid slug", arg.Slug))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PageTranslation{}, err
	}
	defer func() { _ = tx.Rollback() }()
	q := s.queries.WithTx(tx)

	translation, err := q.GetPageTranslationByID(ctx, arg.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PageTranslation{}, NotFoundError("translation", arg.ID)
	}
	if err != nil {
		return model.PageTranslation{}, err
	}
	if translation.Version != arg.Version {
		return model.PageTranslation{}, VersionConflictError(arg.Version, translation.Version)
	}

	if arg.Slug != translation.Slug {
		taken, err := q.CountTranslationsBySlug(ctx, store.CountTranslationsBySlugParams{
			Language: translation.Language,
			Slug:     arg.Slug,
		})
		if err != nil {
			return model.PageTranslation{}, err
		}
		if taken > 0 {
			return model.PageTranslation{}, ConflictError(CodeSlugExists,
				fmt.Sprintf("slug %q is already used in language %q", arg.Slug, translation.Language))
		}
	}

	now := time.Now().UTC()
	if err := q.UpdatePageTranslation(ctx, store.UpdatePageTranslationParams{
		ID:          arg.ID,
		Slug:        arg.Slug,
		Title:       arg.Title,
		Description: arg.Description,
		Keywords:    arg.Keywords,
		UpdatedAt:   now,
	}); err != nil {
		return model.PageTranslation{}, err
	}

	affected, err := q.IncrementTranslationVersion(ctx, store.IncrementTranslationVersionParams{
		ID:              arg.ID,
		ExpectedVersion: translation.Version,
		UpdatedAt:       now,
	})
	if err != nil {
		return model.PageTranslation{}, err
	}
	if affected == 0 {
		current, err := q.GetPageTranslationByID(ctx, arg.ID)
		if err != nil {
			return model.PageTranslation{}, err
		}
		return model.PageTranslation{}, VersionConflictError(arg.Version, current.Version)
	}

	updated, err := q.GetPageTranslationByID(ctx, arg.ID)
	if err != nil {
		return model.PageTranslation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.PageTranslation{}, err
	}
	return updated, nil
}
