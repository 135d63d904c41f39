// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yuin/goldmark"

	"github.com/pagecraft/pbcms-go/internal/cache"
	"github.com/pagecraft/pbcms-go/internal/model"
	"github.com/pagecraft/pbcms-go/internal/store"
)

// VisibilityFilter assembles the render-time module tree for one
// translation and audience. For the public audience, HIDDEN and PENDING
// modules are excluded together with their entire subtree; editors see
// everything. Public trees are cached per translation version.
type VisibilityFilter struct {
	db       *sql.DB
	queries  *store.Queries
	cache    cache.Cache
	markdown goldmark.Markdown
}

// NewVisibilityFilter creates a VisibilityFilter. The cache is optional;
// nil disables caching of public render trees.
func NewVisibilityFilter(db *sql.DB, c cache.Cache) *VisibilityFilter {
	return &VisibilityFilter{
		db:       db,
		queries:  store.New(db),
		cache:    c,
		markdown: goldmark.New(),
	}
}

// RenderedModule is one node of the render-time module tree. Settings
// are the base module settings overlaid with the language's translation
// settings. Text modules additionally carry their body rendered to HTML.
type RenderedModule struct {
	ID       int64             `json:"id"`
	Type     string            `json:"type"`
	Sort     int64             `json:"sort"`
	Settings model.Settings    `json:"settings"`
	Status   string            `json:"status,omitempty"`
	HTML     string            `json:"html,omitempty"`
	Children []*RenderedModule `json:"children,omitempty"`
}

// RenderModules returns the module tree for a translation. With
// forPublic set, modules whose translation status is HIDDEN or PENDING
// are excluded transitively; a module with no translation row is always
// included and renders with base settings.
func (v *VisibilityFilter) RenderModules(ctx context.Context, translationID int64, forPublic bool) ([]*RenderedModule, error) {
	q := v.queries

	translation, err := q.GetPageTranslationByID(ctx, translationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundError("translation", translationID)
	}
	if err != nil {
		return nil, err
	}

	// Public trees only change when the version moves, so the version
	// is part of the cache key and stale entries simply age out.
	cacheKey := fmt.Sprintf("render:%d:v%d", translationID, translation.Version)
	if forPublic && v.cache != nil {
		if data, err := v.cache.Get(ctx, cacheKey); err == nil {
			var tree []*RenderedModule
			if err := json.Unmarshal(data, &tree); err == nil {
				return tree, nil
			}
		}
	}

	var modules []model.Module
	var translations []model.ModuleTranslation
	if translation.Custom {
		modules, err = q.ListModulesByTranslation(ctx, translationID)
		if err != nil {
			return nil, err
		}
		translations, err = q.ListModuleTranslationsForTranslation(ctx, store.ListModuleTranslationsForTranslationParams{
			PageTranslationID: translationID,
			Language:          translation.Language,
		})
	} else {
		modules, err = q.ListModulesByPage(ctx, translation.PageID)
		if err != nil {
			return nil, err
		}
		translations, err = q.ListModuleTranslationsForPage(ctx, store.ListModuleTranslationsForPageParams{
			PageID:   translation.PageID,
			Language: translation.Language,
		})
	}
	if err != nil {
		return nil, err
	}

	statusByModule := make(map[int64]model.ModuleTranslation, len(translations))
	for _, mt := range translations {
		statusByModule[mt.ModuleID] = mt
	}

	tree := v.buildTree(modules, statusByModule, forPublic)

	if forPublic && v.cache != nil {
		if data, err := json.Marshal(tree); err == nil {
			if err := v.cache.Set(ctx, cacheKey, data, 0); err != nil {
				slog.Warn("caching render tree failed",
					"category", model.EventCategoryCache, "key", cacheKey, "error", err)
			}
		}
	}
	return tree, nil
}

// buildTree assembles the parent/child structure from the flat module
// list. The input is already ordered by (sort, id); siblings keep that
// order. Exclusion is transitive: descendants of an excluded module
// never appear, whatever their own status.
func (v *VisibilityFilter) buildTree(modules []model.Module, statusByModule map[int64]model.ModuleTranslation, forPublic bool) []*RenderedModule {
	parentOf := make(map[int64]*int64, len(modules))
	excluded := make(map[int64]bool)
	for _, m := range modules {
		parentOf[m.ID] = m.ParentID
		if !forPublic {
			continue
		}
		if mt, ok := statusByModule[m.ID]; ok {
			if mt.Status == model.TranslationStatusHidden || mt.Status == model.TranslationStatusPending {
				excluded[m.ID] = true
			}
		}
	}

	// Walk the ancestry chain so a child is dropped with its ancestor
	// regardless of where either sits in the sort order.
	isExcluded := func(id int64) bool {
		seen := make(map[int64]bool)
		for cur := &id; cur != nil && !seen[*cur]; cur = parentOf[*cur] {
			if excluded[*cur] {
				return true
			}
			seen[*cur] = true
		}
		return false
	}

	nodes := make(map[int64]*RenderedModule, len(modules))
	for _, m := range modules {
		if isExcluded(m.ID) {
			continue
		}
		settings := m.Settings
		status := ""
		if mt, ok := statusByModule[m.ID]; ok {
			settings = m.Settings.Merge(mt.Settings)
			status = mt.Status
		}
		nodes[m.ID] = &RenderedModule{
			ID:       m.ID,
			Type:     m.Type,
			Sort:     m.Sort,
			Settings: settings,
			Status:   status,
			HTML:     v.renderHTML(m.Type, settings),
		}
	}

	var roots []*RenderedModule
	for _, m := range modules {
		node, ok := nodes[m.ID]
		if !ok {
			continue
		}
		if m.ParentID != nil {
			if parent, ok := nodes[*m.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// renderHTML converts a text module's markdown body to HTML. Other
// module types render client-side from their settings.
func (v *VisibilityFilter) renderHTML(moduleType string, settings model.Settings) string {
	if moduleType != "text" {
		return ""
	}
	body, ok := settings["body"].(string)
	if !ok || body == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := v.markdown.Convert([]byte(body), &buf); err != nil {
		return ""
	}
	return buf.String()
}
