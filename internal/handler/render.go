// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
)

// RenderModules handles GET /translations/{translationID}/modules. The
// public query parameter selects the visibility-filtered tree the site
// would render; without it the full editor view is returned.
func (h *Handler) RenderModules(w http.ResponseWriter, r *http.Request) {
	translationID, ok := urlID(r, "translationID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid translation id", nil)
		return
	}
	forPublic := r.URL.Query().Get("public") == "true"
	modules, err := h.visibility.RenderModules(r.Context(), translationID, forPublic)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, modules)
}

// LayoutInfo handles GET /translations/{translationID}/layout.
func (h *Handler) LayoutInfo(w http.ResponseWriter, r *http.Request) {
	translationID, ok := urlID(r, "translationID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid translation id", nil)
		return
	}
	info, err := h.layout.Info(r.Context(), translationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, info)
}

// SwitchLayoutRequest is the request body for a layout mode switch.
type SwitchLayoutRequest struct {
	Mode        string `json:"mode"`
	CopyModules bool   `json:"copy_modules,omitempty"`
	Version     int64  `json:"version"`
}

// SwitchLayout handles POST /translations/{translationID}/layout.
func (h *Handler) SwitchLayout(w http.ResponseWriter, r *http.Request) {
	translationID, ok := urlID(r, "translationID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid translation id", nil)
		return
	}
	var req SwitchLayoutRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	result, err := h.layout.SwitchMode(r.Context(), translationID, req.Mode, req.CopyModules, req.Version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteSuccess(w, result)
}
