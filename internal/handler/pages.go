// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pagecraft/pbcms-go/internal/service"
)

// urlID parses a chi URL parameter as an int64 id.
func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// CreatePageRequest is the request body for creating a page.
type CreatePageRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
	Is404    bool   `json:"is_404,omitempty"`
}

// CreatePage handles POST /pages.
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req CreatePageRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	page, err := h.pages.CreatePage(r.Context(), service.CreatePageParams{
		Name:     req.Name,
		ParentID: req.ParentID,
		Is404:    req.Is404,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteCreated(w, page)
}

// GetPage handles GET /pages/{pageID}.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "pageID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid page id", nil)
		return
	}
	page, err := h.pages.GetPage(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, page)
}

// DeletePage handles DELETE /pages/{pageID}.
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "pageID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid page id", nil)
		return
	}
	if err := h.pages.DeletePage(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}

// CreateTranslationRequest is the request body for adding a language
// version to a page.
type CreateTranslationRequest struct {
	Language    string `json:"language"`
	Slug        string `json:"slug,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
}

// CreateTranslation handles POST /pages/{pageID}/translations.
func (h *Handler) CreateTranslation(w http.ResponseWriter, r *http.Request) {
	pageID, ok := urlID(r, "pageID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid page id", nil)
		return
	}
	var req CreateTranslationRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	translation, err := h.pages.CreateTranslation(r.Context(), service.CreateTranslationParams{
		PageID:      pageID,
		Language:    req.Language,
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Keywords:    req.Keywords,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteCreated(w, translation)
}

// ListTranslations handles GET /pages/{pageID}/translations.
func (h *Handler) ListTranslations(w http.ResponseWriter, r *http.Request) {
	pageID, ok := urlID(r, "pageID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid page id", nil)
		return
	}
	translations, err := h.pages.ListTranslations(r.Context(), pageID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, translations)
}

// GetTranslation handles GET /translations/{translationID}.
func (h *Handler) GetTranslation(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "translationID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid translation id", nil)
		return
	}
	translation, err := h.pages.GetTranslation(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, translation)
}

// UpdateTranslationRequest is the request body for editing translation
// metadata. Version is the optimistic-concurrency token the client
// last saw.
type UpdateTranslationRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	Version     int64  `json:"version"`
}

// UpdateTranslation handles PUT /translations/{translationID}.
func (h *Handler) UpdateTranslation(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "translationID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid translation id", nil)
		return
	}
	var req UpdateTranslationRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	translation, err := h.pages.UpdateTranslation(r.Context(), service.UpdateTranslationParams{
		ID:          id,
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Keywords:    req.Keywords,
		Version:     req.Version,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, translation)
}
