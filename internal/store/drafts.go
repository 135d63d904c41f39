// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pagecraft/pbcms-go/internal/model"
)

const pageDraftColumns = "id, user_id, page_translation_id, language, base_version, created_at, updated_at"

func scanPageDraftRow(scan func(dest ...any) error) (model.PageDraft, error) {
	var d model.PageDraft
	err := scan(&d.ID, &d.UserID, &d.PageTranslationID, &d.Language, &d.BaseVersion,
		&d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// CreatePageDraftParams holds the fields for CreatePageDraft.
type CreatePageDraftParams struct {
	UserID            int64
	PageTranslationID int64
	Language          string
	BaseVersion       int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreatePageDraft inserts a new page draft and returns it.
func (q *Queries) CreatePageDraft(ctx context.Context, arg CreatePageDraftParams) (model.PageDraft, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO page_drafts (user_id, page_translation_id, language, base_version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		arg.UserID, arg.PageTranslationID, arg.Language, arg.BaseVersion, arg.CreatedAt, arg.UpdatedAt)
	if err != nil {
		return model.PageDraft{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.PageDraft{}, err
	}
	return q.GetPageDraftByID(ctx, id)
}

// GetPageDraftByID fetches a page draft by id.
func (q *Queries) GetPageDraftByID(ctx context.Context, id int64) (model.PageDraft, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+pageDraftColumns+` FROM page_drafts WHERE id = ?`, id)
	return scanPageDraftRow(row.Scan)
}

// GetPageDraftByUserAndTranslationParams identifies a user's draft of
// one translation.
type GetPageDraftByUserAndTranslationParams struct {
	UserID            int64
	PageTranslationID int64
}

// GetPageDraftByUserAndTranslation fetches the unique draft for the
// (user, translation) pair.
func (q *Queries) GetPageDraftByUserAndTranslation(ctx context.Context, arg GetPageDraftByUserAndTranslationParams) (model.PageDraft, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+pageDraftColumns+` FROM page_drafts WHERE user_id = ? AND page_translation_id = ?`,
		arg.UserID, arg.PageTranslationID)
	return scanPageDraftRow(row.Scan)
}

func (q *Queries) listPageDrafts(ctx context.Context, query string, args ...any) ([]model.PageDraft, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PageDraft
	for rows.Next() {
		d, err := scanPageDraftRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListPageDraftsByUserAndPageParams identifies every draft one user
// holds against any translation of a page.
type ListPageDraftsByUserAndPageParams struct {
	UserID int64
	PageID int64
}

// ListPageDraftsByUserAndPage returns the user's drafts across all
// translations of the page, ordered by translation id.
func (q *Queries) ListPageDraftsByUserAndPage(ctx context.Context, arg ListPageDraftsByUserAndPageParams) ([]model.PageDraft, error) {
	return q.listPageDrafts(ctx,
		`SELECT d.id, d.user_id, d.page_translation_id, d.language, d.base_version, d.created_at, d.updated_at
		 FROM page_drafts d JOIN page_translations t ON t.id = d.page_translation_id
		 WHERE d.user_id = ? AND t.page_id = ?
		 ORDER BY d.page_translation_id`, arg.UserID, arg.PageID)
}

// ListPageDraftsByPage returns every draft held against any translation
// of the page, across all users.
func (q *Queries) ListPageDraftsByPage(ctx context.Context, pageID int64) ([]model.PageDraft, error) {
	return q.listPageDrafts(ctx,
		`SELECT d.id, d.user_id, d.page_translation_id, d.language, d.base_version, d.created_at, d.updated_at
		 FROM page_drafts d JOIN page_translations t ON t.id = d.page_translation_id
		 WHERE t.page_id = ?
		 ORDER BY d.id`, pageID)
}

// ListStalePageDrafts returns drafts not touched since the cutoff.
func (q *Queries) ListStalePageDrafts(ctx context.Context, updatedBefore time.Time) ([]model.PageDraft, error) {
	return q.listPageDrafts(ctx,
		`SELECT `+pageDraftColumns+` FROM page_drafts WHERE updated_at < ? ORDER BY id`, updatedBefore)
}

// SetPageDraftBaseVersionParams carries the rebase target version.
type SetPageDraftBaseVersionParams struct {
	ID          int64
	BaseVersion int64
	UpdatedAt   time.Time
}

// SetPageDraftBaseVersion re-synchronizes the draft's version snapshot.
func (q *Queries) SetPageDraftBaseVersion(ctx context.Context, arg SetPageDraftBaseVersionParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE page_drafts SET base_version = ?, updated_at = ? WHERE id = ?`,
		arg.BaseVersion, arg.UpdatedAt, arg.ID)
	return err
}

// TouchPageDraft records draft activity for staleness tracking.
func (q *Queries) TouchPageDraft(ctx context.Context, id int64, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE page_drafts SET updated_at = ? WHERE id = ?`, updatedAt, id)
	return err
}

// DeletePageDraft removes a draft. Module drafts and their translation
// drafts cascade.
func (q *Queries) DeletePageDraft(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM page_drafts WHERE id = ?`, id)
	return err
}

const moduleDraftColumns = "id, page_draft_id, original_module_id, parent_draft_id, type, settings, sort, lineage, created_at, updated_at"

func scanModuleDraftRow(scan func(dest ...any) error) (model.ModuleDraft, error) {
	var d model.ModuleDraft
	var original, parent sql.NullInt64
	var settings string
	err := scan(&d.ID, &d.PageDraftID, &original, &parent, &d.Type, &settings, &d.Sort,
		&d.Lineage, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return model.ModuleDraft{}, err
	}
	d.OriginalModuleID = int64Ptr(original)
	d.ParentDraftID = int64Ptr(parent)
	d.Settings, err = model.DecodeSettings(settings)
	return d, err
}

// CreateModuleDraftParams holds the fields for CreateModuleDraft.
type CreateModuleDraftParams struct {
	PageDraftID      int64
	OriginalModuleID *int64
	ParentDraftID    *int64
	Type             string
	Settings         model.Settings
	Sort             int64
	Lineage          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateModuleDraft inserts a module draft row and returns it.
func (q *Queries) CreateModuleDraft(ctx context.Context, arg CreateModuleDraftParams) (model.ModuleDraft, error) {
	settings, err := arg.Settings.Encode()
	if err != nil {
		return model.ModuleDraft{}, err
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO module_drafts (page_draft_id, original_module_id, parent_draft_id, type, settings, sort, lineage, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.PageDraftID, nullInt64(arg.OriginalModuleID), nullInt64(arg.ParentDraftID),
		arg.Type, settings, arg.Sort, arg.Lineage, arg.CreatedAt, arg.UpdatedAt)
	if err != nil {
		return model.ModuleDraft{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.ModuleDraft{}, err
	}
	return q.GetModuleDraftByID(ctx, id)
}

// GetModuleDraftByID fetches a module draft by id.
func (q *Queries) GetModuleDraftByID(ctx context.Context, id int64) (model.ModuleDraft, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+moduleDraftColumns+` FROM module_drafts WHERE id = ?`, id)
	return scanModuleDraftRow(row.Scan)
}

// UpdateModuleDraftParams holds the updatable module-draft fields.
type UpdateModuleDraftParams struct {
	ID            int64
	ParentDraftID *int64
	Type          string
	Settings      model.Settings
	Sort          int64
	UpdatedAt     time.Time
}

// UpdateModuleDraft rewrites a module draft's structural fields.
func (q *Queries) UpdateModuleDraft(ctx context.Context, arg UpdateModuleDraftParams) error {
	settings, err := arg.Settings.Encode()
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`UPDATE module_drafts SET parent_draft_id = ?, type = ?, settings = ?, sort = ?, updated_at = ? WHERE id = ?`,
		nullInt64(arg.ParentDraftID), arg.Type, settings, arg.Sort, arg.UpdatedAt, arg.ID)
	return err
}

// SetModuleDraftParent updates only the parent reference, used by the
// second (linking) pass of the save reconciliation.
func (q *Queries) SetModuleDraftParent(ctx context.Context, id int64, parentDraftID *int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE module_drafts SET parent_draft_id = ? WHERE id = ?`, nullInt64(parentDraftID), id)
	return err
}

// ListModuleDraftsByPageDraft returns all module drafts of a draft,
// scratch rows included, ordered by sort then insertion order.
func (q *Queries) ListModuleDraftsByPageDraft(ctx context.Context, pageDraftID int64) ([]model.ModuleDraft, error) {
	return q.listModuleDrafts(ctx,
		`SELECT `+moduleDraftColumns+` FROM module_drafts WHERE page_draft_id = ? ORDER BY sort, id`, pageDraftID)
}

// ListSavedModuleDraftsByPageDraft returns the structurally saved rows
// of a draft (scratch rows excluded).
func (q *Queries) ListSavedModuleDraftsByPageDraft(ctx context.Context, pageDraftID int64) ([]model.ModuleDraft, error) {
	return q.listModuleDrafts(ctx,
		`SELECT `+moduleDraftColumns+` FROM module_drafts WHERE page_draft_id = ? AND sort >= 0 ORDER BY sort, id`, pageDraftID)
}

func (q *Queries) listModuleDrafts(ctx context.Context, query string, args ...any) ([]model.ModuleDraft, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ModuleDraft
	for rows.Next() {
		d, err := scanModuleDraftRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountModuleDraftsByPageDraft returns the number of module drafts in a
// draft, scratch rows included.
func (q *Queries) CountModuleDraftsByPageDraft(ctx context.Context, pageDraftID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM module_drafts WHERE page_draft_id = ?`, pageDraftID).Scan(&n)
	return n, err
}

// DeleteScratchModuleDrafts purges abandoned quick-create rows from a draft.
func (q *Queries) DeleteScratchModuleDrafts(ctx context.Context, pageDraftID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM module_drafts WHERE page_draft_id = ? AND sort = ?`, pageDraftID, model.ScratchSort)
	return err
}

// DeleteModuleDraft removes one module draft row.
func (q *Queries) DeleteModuleDraft(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM module_drafts WHERE id = ?`, id)
	return err
}

// BackfillLineageOriginalParams carries the published master id for the
// lineage backfill.
type BackfillLineageOriginalParams struct {
	Lineage          string
	OriginalModuleID int64
	UpdatedAt        time.Time
}

// BackfillLineageOriginal sets the master id on every sibling draft row
// of a lineage that has not been published yet. Rows already pointing
// at a master module are left untouched; the link is monotonic.
func (q *Queries) BackfillLineageOriginal(ctx context.Context, arg BackfillLineageOriginalParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE module_drafts SET original_module_id = ?, updated_at = ?
		 WHERE lineage = ? AND original_module_id IS NULL`,
		arg.OriginalModuleID, arg.UpdatedAt, arg.Lineage)
	return err
}

const translationDraftColumns = "id, module_draft_id, language, settings, status, created_at, updated_at"

func scanTranslationDraftRow(scan func(dest ...any) error) (model.ModuleTranslationDraft, error) {
	var d model.ModuleTranslationDraft
	var settings string
	err := scan(&d.ID, &d.ModuleDraftID, &d.Language, &settings, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return model.ModuleTranslationDraft{}, err
	}
	d.Settings, err = model.DecodeSettings(settings)
	return d, err
}

// GetModuleTranslationDraftParams identifies a (module draft, language) pair.
type GetModuleTranslationDraftParams struct {
	ModuleDraftID int64
	Language      string
}

// GetModuleTranslationDraft fetches the draft translation row for one
// module draft and language.
func (q *Queries) GetModuleTranslationDraft(ctx context.Context, arg GetModuleTranslationDraftParams) (model.ModuleTranslationDraft, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+translationDraftColumns+` FROM module_translation_drafts WHERE module_draft_id = ? AND language = ?`,
		arg.ModuleDraftID, arg.Language)
	return scanTranslationDraftRow(row.Scan)
}

// ListModuleTranslationDraftsForDraftParams selects all translation
// drafts of one page draft in one language.
type ListModuleTranslationDraftsForDraftParams struct {
	PageDraftID int64
	Language    string
}

// ListModuleTranslationDraftsForDraft returns the translation drafts of
// a page draft for one language, keyed by module draft on the caller side.
func (q *Queries) ListModuleTranslationDraftsForDraft(ctx context.Context, arg ListModuleTranslationDraftsForDraftParams) ([]model.ModuleTranslationDraft, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT td.id, td.module_draft_id, td.language, td.settings, td.status, td.created_at, td.updated_at
		 FROM module_translation_drafts td JOIN module_drafts md ON md.id = td.module_draft_id
		 WHERE md.page_draft_id = ? AND td.language = ?`,
		arg.PageDraftID, arg.Language)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ModuleTranslationDraft
	for rows.Next() {
		d, err := scanTranslationDraftRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertModuleTranslationDraftParams holds the fields for
// UpsertModuleTranslationDraft.
type UpsertModuleTranslationDraftParams struct {
	ModuleDraftID int64
	Language      string
	Settings      model.Settings
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UpsertModuleTranslationDraft creates or replaces the draft-side
// (module draft, language) row.
func (q *Queries) UpsertModuleTranslationDraft(ctx context.Context, arg UpsertModuleTranslationDraftParams) error {
	settings, err := arg.Settings.Encode()
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO module_translation_drafts (module_draft_id, language, settings, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (module_draft_id, language) DO UPDATE SET settings = excluded.settings,
		   status = excluded.status, updated_at = excluded.updated_at`,
		arg.ModuleDraftID, arg.Language, settings, arg.Status, arg.CreatedAt, arg.UpdatedAt)
	return err
}
