// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/pagecraft/pbcms-go/internal/model"
	"github.com/pagecraft/pbcms-go/internal/service"
)

// GetOrCreateDraft handles POST /translations/{translationID}/draft.
// Idempotent: repeated calls return the same draft.
func (h *Handler) GetOrCreateDraft(w http.ResponseWriter, r *http.Request) {
	translationID, ok := urlID(r, "translationID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid translation id", nil)
		return
	}
	draft, err := h.drafts.GetOrCreateDraft(r.Context(), h.currentUserID(r), translationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, draft)
}

// DraftStatus handles GET /translations/{translationID}/draft/status.
func (h *Handler) DraftStatus(w http.ResponseWriter, r *http.Request) {
	translationID, ok := urlID(r, "translationID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid translation id", nil)
		return
	}
	status, err := h.drafts.Status(r.Context(), h.currentUserID(r), translationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, status)
}

// SaveModulesRequest is the request body for a structural save. The
// module list is the full tree; rows missing from it are removed from
// the draft.
type SaveModulesRequest struct {
	Language string               `json:"language"`
	Modules  []service.ModuleItem `json:"modules"`
}

// SaveModules handles POST /drafts/{draftID}/modules.
func (h *Handler) SaveModules(w http.ResponseWriter, r *http.Request) {
	draftID, ok := urlID(r, "draftID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid draft id", nil)
		return
	}
	var req SaveModulesRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	result, err := h.drafts.SaveModules(r.Context(), h.currentUserID(r), draftID, req.Language, req.Modules)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, result)
}

// QuickCreateRequest is the request body for a scratch module.
type QuickCreateRequest struct {
	Type     string         `json:"type"`
	Settings model.Settings `json:"settings,omitempty"`
}

// QuickCreate handles POST /drafts/{draftID}/quick-create.
func (h *Handler) QuickCreate(w http.ResponseWriter, r *http.Request) {
	draftID, ok := urlID(r, "draftID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid draft id", nil)
		return
	}
	var req QuickCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	if req.Type == "" {
		WriteError(w, http.StatusBadRequest, "bad_request", "module type is required", nil)
		return
	}
	row, err := h.drafts.QuickCreate(r.Context(), h.currentUserID(r), draftID, req.Type, req.Settings)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteCreated(w, row)
}

// Publish handles POST /drafts/{draftID}/publish. The force query
// parameter skips the version conflict check.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	draftID, ok := urlID(r, "draftID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid draft id", nil)
		return
	}
	force := r.URL.Query().Get("force") == "true"
	result, err := h.publisher.Publish(r.Context(), h.currentUserID(r), draftID, force)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, result)
}

// Rebase handles POST /drafts/{draftID}/rebase.
func (h *Handler) Rebase(w http.ResponseWriter, r *http.Request) {
	draftID, ok := urlID(r, "draftID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid draft id", nil)
		return
	}
	draft, err := h.publisher.Rebase(r.Context(), h.currentUserID(r), draftID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, draft)
}

// Discard handles POST /drafts/{draftID}/discard.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	draftID, ok := urlID(r, "draftID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid draft id", nil)
		return
	}
	if err := h.publisher.Discard(r.Context(), h.currentUserID(r), draftID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}
