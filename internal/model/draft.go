// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// ScratchSort marks a module draft created by the quick-create path
// that was never incorporated into a structural save. Scratch rows are
// purged whenever the draft is fetched or its status is queried.
const ScratchSort = -1

// PageDraft is a user's isolated working copy of one translation's
// module tree. At most one draft exists per (user, translation).
// BaseVersion is the translation version snapshotted at creation or
// last rebase; publish compares it against the live version.
type PageDraft struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	PageTranslationID int64     `json:"page_translation_id"`
	Language          string    `json:"language"`
	BaseVersion       int64     `json:"base_version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ModuleDraft is one module row inside a page draft.
// OriginalModuleID links the row to the master module it supersedes;
// nil means the module does not exist on master yet. Once backfilled to
// a concrete master id it is never reset to nil. Lineage is shared by
// the sibling-language clones of the same logical module so a publish
// can backfill all of them together.
type ModuleDraft struct {
	ID               int64     `json:"id"`
	PageDraftID      int64     `json:"page_draft_id"`
	OriginalModuleID *int64    `json:"original_module_id,omitempty"`
	ParentDraftID    *int64    `json:"parent_draft_id,omitempty"`
	Type             string    `json:"type"`
	Settings         Settings  `json:"settings"`
	Sort             int64     `json:"sort"`
	Lineage          string    `json:"lineage"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsScratch reports whether the row is an unsaved quick-create module.
func (d *ModuleDraft) IsScratch() bool {
	return d.Sort == ScratchSort
}

// ModuleTranslationDraft mirrors ModuleTranslation inside a draft.
type ModuleTranslationDraft struct {
	ID            int64     `json:"id"`
	ModuleDraftID int64     `json:"module_draft_id"`
	Language      string    `json:"language"`
	Settings      Settings  `json:"settings"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
