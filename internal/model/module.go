// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Translation statuses for a module.
const (
	TranslationStatusTranslated = "translated"
	TranslationStatusPending    = "pending"
	TranslationStatusHidden     = "hidden"
)

// IsValidTranslationStatus reports whether s is a known module
// translation status.
func IsValidTranslationStatus(s string) bool {
	switch s {
	case TranslationStatusTranslated, TranslationStatusPending, TranslationStatusHidden:
		return true
	}
	return false
}

// Module is a published (master) page-builder module. Exactly one of
// PageID and PageTranslationID is set: page-owned modules are shared
// across all non-custom translations, translation-owned modules belong
// to a single custom-layout translation.
type Module struct {
	ID                int64     `json:"id"`
	PageID            *int64    `json:"page_id,omitempty"`
	PageTranslationID *int64    `json:"page_translation_id,omitempty"`
	ParentID          *int64    `json:"parent_id,omitempty"`
	Type              string    `json:"type"`
	Settings          Settings  `json:"settings"`
	Sort              int64     `json:"sort"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ModuleTranslation is the per-language override for a master module.
// Absence of a row means "use base module settings, always visible".
type ModuleTranslation struct {
	ID        int64     `json:"id"`
	ModuleID  int64     `json:"module_id"`
	Language  string    `json:"language"`
	Settings  Settings  `json:"settings"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
