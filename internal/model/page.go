// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain types shared by the store and
// service layers: pages, per-language translations, modules and the
// draft-side mirrors of both.
package model

import "time"

// Layout modes for a page translation.
const (
	LayoutInherited = "inherited"
	LayoutCustom    = "custom"
)

// Page is the root content entity. It owns translations and, for the
// shared (inherited) layout, the module tree itself.
type Page struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	ParentID   *int64    `json:"parent_id,omitempty"`
	Is404      bool      `json:"is_404"`
	IsHomepage bool      `json:"is_homepage"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PageTranslation is one language variant of a page. Version is the
// optimistic-concurrency token: it starts at 1 and is incremented on
// every content-affecting update (direct edit, publish, layout switch).
type PageTranslation struct {
	ID          int64     `json:"id"`
	PageID      int64     `json:"page_id"`
	Language    string    `json:"language"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Keywords    string    `json:"keywords,omitempty"`
	Custom      bool      `json:"custom"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LayoutMode returns the translation's layout mode constant.
func (t *PageTranslation) LayoutMode() string {
	if t.Custom {
		return LayoutCustom
	}
	return LayoutInherited
}
