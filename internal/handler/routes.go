// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pagecraft/pbcms-go/internal/session"
)

// Routes builds the API router. Editor endpoints sit behind the
// session check; the public render path does not require one.
func (h *Handler) Routes(limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(h.sessions.LoadAndSave)
	r.Use(limiter.Middleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", h.StartSession)
		r.Delete("/session", h.EndSession)

		// Public rendering path.
		r.Get("/translations/{translationID}/modules", h.RenderModules)

		// Editor surface.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireUser)

			r.Post("/pages", h.CreatePage)
			r.Get("/pages/{pageID}", h.GetPage)
			r.Delete("/pages/{pageID}", h.DeletePage)
			r.Get("/pages/{pageID}/translations", h.ListTranslations)
			r.Post("/pages/{pageID}/translations", h.CreateTranslation)

			r.Get("/translations/{translationID}", h.GetTranslation)
			r.Put("/translations/{translationID}", h.UpdateTranslation)
			r.Get("/translations/{translationID}/layout", h.LayoutInfo)
			r.Post("/translations/{translationID}/layout", h.SwitchLayout)

			r.Post("/translations/{translationID}/draft", h.GetOrCreateDraft)
			r.Get("/translations/{translationID}/draft/status", h.DraftStatus)

			r.Post("/drafts/{draftID}/modules", h.SaveModules)
			r.Post("/drafts/{draftID}/quick-create", h.QuickCreate)
			r.Post("/drafts/{draftID}/publish", h.Publish)
			r.Post("/drafts/{draftID}/rebase", h.Rebase)
			r.Post("/drafts/{draftID}/discard", h.Discard)
		})
	})

	return r
}

// StartSessionRequest identifies the editing user. Authentication
// against an identity provider happens upstream; this service only
// needs a stable user id to scope drafts.
type StartSessionRequest struct {
	UserID int64 `json:"user_id"`
}

// StartSession handles POST /session.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
		WriteError(w, http.StatusBadRequest, "bad_request", "a positive user_id is required", nil)
		return
	}
	if err := h.sessions.RenewToken(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "session error", nil)
		return
	}
	h.sessions.Put(r.Context(), session.UserIDKey, req.UserID)
	WriteSuccess(w, map[string]int64{"user_id": req.UserID})
}

// EndSession handles DELETE /session.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "session error", nil)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}
