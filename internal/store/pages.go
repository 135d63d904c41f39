// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pagecraft/pbcms-go/internal/model"
)

const pageColumns = "id, name, parent_id, is_404, is_homepage, created_at, updated_at"

func scanPage(row *sql.Row) (model.Page, error) {
	var p model.Page
	var parentID sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &parentID, &p.Is404, &p.IsHomepage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Page{}, err
	}
	p.ParentID = int64Ptr(parentID)
	return p, nil
}

// CreatePageParams holds the fields for CreatePage.
type CreatePageParams struct {
	Name       string
	ParentID   *int64
	Is404      bool
	IsHomepage bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreatePage inserts a new page and returns it.
func (q *Queries) CreatePage(ctx context.Context, arg CreatePageParams) (model.Page, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO pages (name, parent_id, is_404, is_homepage, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		arg.Name, nullInt64(arg.ParentID), arg.Is404, arg.IsHomepage, arg.CreatedAt, arg.UpdatedAt)
	if err != nil {
		return model.Page{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Page{}, err
	}
	return q.GetPageByID(ctx, id)
}

// GetPageByID fetches a page by id.
func (q *Queries) GetPageByID(ctx context.Context, id int64) (model.Page, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	return scanPage(row)
}

// CountRootPages returns the number of pages without a parent.
func (q *Queries) CountRootPages(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE parent_id IS NULL`).Scan(&n)
	return n, err
}

// Count404Pages returns the number of pages flagged as the site 404.
func (q *Queries) Count404Pages(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE is_404 = 1`).Scan(&n)
	return n, err
}

// CountChildPages returns the number of direct children of a page.
func (q *Queries) CountChildPages(ctx context.Context, parentID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE parent_id = ?`, parentID).Scan(&n)
	return n, err
}

// DeletePage removes a page. Translations, modules and drafts cascade.
func (q *Queries) DeletePage(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	return err
}

const translationColumns = "id, page_id, language, slug, title, description, keywords, custom, version, created_at, updated_at"

func scanTranslationRow(scan func(dest ...any) error) (model.PageTranslation, error) {
	var t model.PageTranslation
	err := scan(&t.ID, &t.PageID, &t.Language, &t.Slug, &t.Title, &t.Description,
		&t.Keywords, &t.Custom, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreatePageTranslationParams holds the fields for CreatePageTranslation.
type CreatePageTranslationParams struct {
	PageID      int64
	Language    string
	Slug        string
	Title       string
	Description string
	Keywords    string
	Custom      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreatePageTranslation inserts a new translation with version 1.
func (q *Queries) CreatePageTranslation(ctx context.Context, arg CreatePageTranslationParams) (model.PageTranslation, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO page_translations (page_id, language, slug, title, description, keywords, custom, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		arg.PageID, arg.Language, arg.Slug, arg.Title, arg.Description, arg.Keywords,
		arg.Custom, arg.CreatedAt, arg.UpdatedAt)
	if err != nil {
		return model.PageTranslation{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.PageTranslation{}, err
	}
	return q.GetPageTranslationByID(ctx, id)
}

// GetPageTranslationByID fetches a translation by id.
func (q *Queries) GetPageTranslationByID(ctx context.Context, id int64) (model.PageTranslation, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+translationColumns+` FROM page_translations WHERE id = ?`, id)
	return scanTranslationRow(row.Scan)
}

// GetPageTranslationByPageAndLanguageParams identifies one translation
// of a page.
type GetPageTranslationByPageAndLanguageParams struct {
	PageID   int64
	Language string
}

// GetPageTranslationByPageAndLanguage fetches a page's translation for
// one language.
func (q *Queries) GetPageTranslationByPageAndLanguage(ctx context.Context, arg GetPageTranslationByPageAndLanguageParams) (model.PageTranslation, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+translationColumns+` FROM page_translations WHERE page_id = ? AND language = ?`,
		arg.PageID, arg.Language)
	return scanTranslationRow(row.Scan)
}

// ListPageTranslationsByPage returns all translations of a page ordered
// by language.
func (q *Queries) ListPageTranslationsByPage(ctx context.Context, pageID int64) ([]model.PageTranslation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+translationColumns+` FROM page_translations WHERE page_id = ? ORDER BY language`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PageTranslation
	for rows.Next() {
		t, err := scanTranslationRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTranslationsBySlugParams identifies a slug within a language.
type CountTranslationsBySlugParams struct {
	Language string
	Slug     string
}

// CountTranslationsBySlug returns how many translations already use the
// slug in the given language.
func (q *Queries) CountTranslationsBySlug(ctx context.Context, arg CountTranslationsBySlugParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM page_translations WHERE language = ? AND slug = ?`,
		arg.Language, arg.Slug).Scan(&n)
	return n, err
}

// UpdatePageTranslationParams holds the updatable translation fields.
type UpdatePageTranslationParams struct {
	ID          int64
	Slug        string
	Title       string
	Description string
	Keywords    string
	UpdatedAt   time.Time
}

// UpdatePageTranslation updates a translation's content fields without
// touching the version. Callers bump the version separately through
// IncrementTranslationVersion so the compare-and-swap stays explicit.
func (q *Queries) UpdatePageTranslation(ctx context.Context, arg UpdatePageTranslationParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE page_translations SET slug = ?, title = ?, description = ?, keywords = ?, updated_at = ?
		 WHERE id = ?`,
		arg.Slug, arg.Title, arg.Description, arg.Keywords, arg.UpdatedAt, arg.ID)
	return err
}

// IncrementTranslationVersionParams carries the expected version for
// the compare-and-swap bump.
type IncrementTranslationVersionParams struct {
	ID              int64
	ExpectedVersion int64
	UpdatedAt       time.Time
}

// IncrementTranslationVersion bumps the optimistic-concurrency token if
// and only if it still has the expected value. Returns the number of
// rows updated: zero means the caller lost the race.
func (q *Queries) IncrementTranslationVersion(ctx context.Context, arg IncrementTranslationVersionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE page_translations SET version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		arg.UpdatedAt, arg.ID, arg.ExpectedVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetTranslationCustomParams flips the layout mode flag.
type SetTranslationCustomParams struct {
	ID        int64
	Custom    bool
	UpdatedAt time.Time
}

// SetTranslationCustom updates the custom-layout flag.
func (q *Queries) SetTranslationCustom(ctx context.Context, arg SetTranslationCustomParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE page_translations SET custom = ?, updated_at = ? WHERE id = ?`,
		arg.Custom, arg.UpdatedAt, arg.ID)
	return err
}
