// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the draft/publish reconciliation engine:
// draft management, publishing with optimistic concurrency, cross
// language synchronization, render-time visibility filtering and
// layout mode switching.
package service

import (
	"fmt"
	"net/http"
)

// Error codes returned to callers. All of these are recoverable: the
// caller can rebase, force, or correct the input and retry.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeVersionConflict     = "VERSION_CONFLICT"
	Code404AlreadyExists    = "404_ALREADY_EXISTS"
	CodeTranslationExists   = "TRANSLATION_ALREADY_EXISTS"
	CodeSlugExists          = "SLUG_EXISTS"
	CodeAccessDenied        = "ACCESS_DENIED"
	CodeHomepageUndeletable = "HOMEPAGE_CANNOT_BE_DELETED"
	CodeInvalidSlug         = "INVALID_SLUG"
	CodeInvalidMode         = "INVALID_MODE"
	CodeUnresolvedParent    = "UNRESOLVED_PARENT"
	CodePageHasChildren     = "PAGE_HAS_CHILDREN"
	CodeInvalidModuleRef    = "INVALID_MODULE_REF"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeInvalidInput        = "INVALID_INPUT"
)

// Error is the service-level error type. Status is the HTTP status the
// handler layer maps it to; Details carries machine-readable context
// such as the stale and current versions on a conflict.
type Error struct {
	Code    string
	Status  int
	Message string
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFoundError reports an absent entity.
func NotFoundError(entity string, id int64) *Error {
	return &Error{
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s %d not found", entity, id),
	}
}

// AccessDeniedError reports a draft owned by another user.
func AccessDeniedError(message string) *Error {
	return &Error{Code: CodeAccessDenied, Status: http.StatusForbidden, Message: message}
}

// VersionConflictError reports an optimistic-concurrency failure. Both
// versions are included so the caller can show a meaningful diff prompt.
func VersionConflictError(baseVersion, currentVersion int64) *Error {
	return &Error{
		Code:    CodeVersionConflict,
		Status:  http.StatusConflict,
		Message: "translation was modified since the draft was created",
		Details: map[string]string{
			"draftBaseVersion":     fmt.Sprintf("%d", baseVersion),
			"currentMasterVersion": fmt.Sprintf("%d", currentVersion),
		},
	}
}

// ConflictError reports a state conflict other than a version mismatch.
func ConflictError(code, message string) *Error {
	return &Error{Code: code, Status: http.StatusConflict, Message: message}
}

// ValidationError reports invalid caller input.
func ValidationError(code, message string) *Error {
	return &Error{Code: code, Status: http.StatusBadRequest, Message: message}
}
