// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the REST API surface over the draft,
// publish and rendering services.
package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/pagecraft/pbcms-go/internal/cache"
	"github.com/pagecraft/pbcms-go/internal/service"
)

// Handler holds the shared dependencies of all API handlers.
type Handler struct {
	db         *sql.DB
	sessions   *scs.SessionManager
	drafts     *service.DraftManager
	publisher  *service.PublishCoordinator
	pages      *service.PageService
	layout     *service.LayoutModeSwitcher
	visibility *service.VisibilityFilter
}

// New creates the API handler and its service layer.
func New(db *sql.DB, sessions *scs.SessionManager, c cache.Cache) *Handler {
	sync := service.NewCrossLanguageSynchronizer()
	return &Handler{
		db:         db,
		sessions:   sessions,
		drafts:     service.NewDraftManager(db, sync),
		publisher:  service.NewPublishCoordinator(db, sync),
		pages:      service.NewPageService(db),
		layout:     service.NewLayoutModeSwitcher(db),
		visibility: service.NewVisibilityFilter(db, c),
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any `json:"data,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response with the standard wrapper.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{Data: data})
}

// WriteCreated writes a 201 response with the standard wrapper.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// writeServiceError maps a service error to its HTTP representation.
// Unknown errors become opaque 500s; the detail goes to the log, not
// the client.
func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		WriteError(w, svcErr.Status, svcErr.Code, svcErr.Message, svcErr.Details)
		return
	}
	slog.Error("request failed", "error", err)
	WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
}

// decodeJSON decodes a request body, rejecting unknown fields so typos
// in module descriptors fail loudly instead of silently dropping data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
