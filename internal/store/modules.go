// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pagecraft/pbcms-go/internal/model"
)

const moduleColumns = "id, page_id, page_translation_id, parent_id, type, settings, sort, created_at, updated_at"

func scanModuleRow(scan func(dest ...any) error) (model.Module, error) {
	var m model.Module
	var pageID, translationID, parentID sql.NullInt64
	var settings string
	err := scan(&m.ID, &pageID, &translationID, &parentID, &m.Type, &settings, &m.Sort,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.Module{}, err
	}
	m.PageID = int64Ptr(pageID)
	m.PageTranslationID = int64Ptr(translationID)
	m.ParentID = int64Ptr(parentID)
	m.Settings, err = model.DecodeSettings(settings)
	return m, err
}

// CreateModuleParams holds the fields for CreateModule. Exactly one of
// PageID and PageTranslationID must be set.
type CreateModuleParams struct {
	PageID            *int64
	PageTranslationID *int64
	ParentID          *int64
	Type              string
	Settings          model.Settings
	Sort              int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateModule inserts a master module and returns it.
func (q *Queries) CreateModule(ctx context.Context, arg CreateModuleParams) (model.Module, error) {
	settings, err := arg.Settings.Encode()
	if err != nil {
		return model.Module{}, err
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO modules (page_id, page_translation_id, parent_id, type, settings, sort, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(arg.PageID), nullInt64(arg.PageTranslationID), nullInt64(arg.ParentID),
		arg.Type, settings, arg.Sort, arg.CreatedAt, arg.UpdatedAt)
	if err != nil {
		return model.Module{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Module{}, err
	}
	return q.GetModuleByID(ctx, id)
}

// GetModuleByID fetches a master module by id.
func (q *Queries) GetModuleByID(ctx context.Context, id int64) (model.Module, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = ?`, id)
	return scanModuleRow(row.Scan)
}

// UpdateModuleParams holds the updatable master-module fields.
type UpdateModuleParams struct {
	ID        int64
	ParentID  *int64
	Type      string
	Settings  model.Settings
	Sort      int64
	UpdatedAt time.Time
}

// UpdateModule rewrites a master module's type, settings, parent and sort.
func (q *Queries) UpdateModule(ctx context.Context, arg UpdateModuleParams) error {
	settings, err := arg.Settings.Encode()
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`UPDATE modules SET parent_id = ?, type = ?, settings = ?, sort = ?, updated_at = ? WHERE id = ?`,
		nullInt64(arg.ParentID), arg.Type, settings, arg.Sort, arg.UpdatedAt, arg.ID)
	return err
}

// SetModuleParent updates only the parent reference. Used by the
// publish tree application after all new rows exist.
func (q *Queries) SetModuleParent(ctx context.Context, id int64, parentID *int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE modules SET parent_id = ? WHERE id = ?`, nullInt64(parentID), id)
	return err
}

func (q *Queries) listModules(ctx context.Context, query string, arg int64) ([]model.Module, error) {
	rows, err := q.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Module
	for rows.Next() {
		m, err := scanModuleRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListModulesByPage returns a page's inherited-layout modules ordered
// by sort, with insertion order breaking ties.
func (q *Queries) ListModulesByPage(ctx context.Context, pageID int64) ([]model.Module, error) {
	return q.listModules(ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE page_id = ? ORDER BY sort, id`, pageID)
}

// ListModulesByTranslation returns a translation's custom-layout
// modules ordered by sort, with insertion order breaking ties.
func (q *Queries) ListModulesByTranslation(ctx context.Context, translationID int64) ([]model.Module, error) {
	return q.listModules(ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE page_translation_id = ? ORDER BY sort, id`, translationID)
}

// CountModulesByPage returns the number of page-owned modules.
func (q *Queries) CountModulesByPage(ctx context.Context, pageID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM modules WHERE page_id = ?`, pageID).Scan(&n)
	return n, err
}

// CountModulesByTranslation returns the number of translation-owned modules.
func (q *Queries) CountModulesByTranslation(ctx context.Context, translationID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM modules WHERE page_translation_id = ?`, translationID).Scan(&n)
	return n, err
}

// DeleteModule removes a master module. Its translations and child
// modules cascade.
func (q *Queries) DeleteModule(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM modules WHERE id = ?`, id)
	return err
}

// DeleteModulesByTranslation removes all modules owned by a translation.
func (q *Queries) DeleteModulesByTranslation(ctx context.Context, translationID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM modules WHERE page_translation_id = ?`, translationID)
	return err
}

const moduleTranslationColumns = "id, module_id, language, settings, status, created_at, updated_at"

func scanModuleTranslationRow(scan func(dest ...any) error) (model.ModuleTranslation, error) {
	var mt model.ModuleTranslation
	var settings string
	err := scan(&mt.ID, &mt.ModuleID, &mt.Language, &settings, &mt.Status, &mt.CreatedAt, &mt.UpdatedAt)
	if err != nil {
		return model.ModuleTranslation{}, err
	}
	mt.Settings, err = model.DecodeSettings(settings)
	return mt, err
}

// GetModuleTranslationParams identifies a (module, language) pair.
type GetModuleTranslationParams struct {
	ModuleID int64
	Language string
}

// GetModuleTranslation fetches the translation row for one module and
// language. sql.ErrNoRows means "use base settings, always visible".
func (q *Queries) GetModuleTranslation(ctx context.Context, arg GetModuleTranslationParams) (model.ModuleTranslation, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+moduleTranslationColumns+` FROM module_translations WHERE module_id = ? AND language = ?`,
		arg.ModuleID, arg.Language)
	return scanModuleTranslationRow(row.Scan)
}

// ListModuleTranslationsByModule returns every language row for a module.
func (q *Queries) ListModuleTranslationsByModule(ctx context.Context, moduleID int64) ([]model.ModuleTranslation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+moduleTranslationColumns+` FROM module_translations WHERE module_id = ?`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ModuleTranslation
	for rows.Next() {
		mt, err := scanModuleTranslationRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// ListModuleTranslationsForPageParams selects the translation rows of
// every page-owned module in one language.
type ListModuleTranslationsForPageParams struct {
	PageID   int64
	Language string
}

// ListModuleTranslationsForPage returns the per-language rows for a
// page's inherited-layout modules.
func (q *Queries) ListModuleTranslationsForPage(ctx context.Context, arg ListModuleTranslationsForPageParams) ([]model.ModuleTranslation, error) {
	return q.listModuleTranslations(ctx,
		`SELECT mt.`+joinedModuleTranslationColumns()+`
		 FROM module_translations mt JOIN modules m ON m.id = mt.module_id
		 WHERE m.page_id = ? AND mt.language = ?`, arg.PageID, arg.Language)
}

// ListModuleTranslationsForTranslationParams selects the translation
// rows of every translation-owned module in one language.
type ListModuleTranslationsForTranslationParams struct {
	PageTranslationID int64
	Language          string
}

// ListModuleTranslationsForTranslation returns the per-language rows
// for a translation's custom-layout modules.
func (q *Queries) ListModuleTranslationsForTranslation(ctx context.Context, arg ListModuleTranslationsForTranslationParams) ([]model.ModuleTranslation, error) {
	return q.listModuleTranslations(ctx,
		`SELECT mt.`+joinedModuleTranslationColumns()+`
		 FROM module_translations mt JOIN modules m ON m.id = mt.module_id
		 WHERE m.page_translation_id = ? AND mt.language = ?`, arg.PageTranslationID, arg.Language)
}

func joinedModuleTranslationColumns() string {
	return "id, mt.module_id, mt.language, mt.settings, mt.status, mt.created_at, mt.updated_at"
}

func (q *Queries) listModuleTranslations(ctx context.Context, query string, args ...any) ([]model.ModuleTranslation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ModuleTranslation
	for rows.Next() {
		mt, err := scanModuleTranslationRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// UpsertModuleTranslationParams holds the fields for UpsertModuleTranslation.
type UpsertModuleTranslationParams struct {
	ModuleID  int64
	Language  string
	Settings  model.Settings
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertModuleTranslation creates or replaces the (module, language) row.
func (q *Queries) UpsertModuleTranslation(ctx context.Context, arg UpsertModuleTranslationParams) error {
	settings, err := arg.Settings.Encode()
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO module_translations (module_id, language, settings, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (module_id, language) DO UPDATE SET settings = excluded.settings,
		   status = excluded.status, updated_at = excluded.updated_at`,
		arg.ModuleID, arg.Language, settings, arg.Status, arg.CreatedAt, arg.UpdatedAt)
	return err
}
