// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/pagecraft/pbcms-go/internal/session"
	"github.com/pagecraft/pbcms-go/internal/testutil"
)

// newTestServer starts the API over a fresh database and returns a
// client with a cookie jar so the scs session survives across calls.
func newTestServer(t *testing.T) (*httptest.Server, *http.Client, func()) {
	t.Helper()
	db, dbCleanup := testutil.TestDB(t)

	h := New(db, session.New(db, true), nil)
	srv := httptest.NewServer(h.Routes(NewRateLimiter(1000, 1000)))

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{Jar: jar}

	return srv, client, func() {
		srv.Close()
		dbCleanup()
	}
}

// doJSON performs a request and decodes the standard response wrapper
// into out (which may be nil).
func doJSON(t *testing.T, client *http.Client, method, url string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decoding %s %s response: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func startSession(t *testing.T, client *http.Client, baseURL string, userID int64) {
	t.Helper()
	status := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/session",
		StartSessionRequest{UserID: userID}, nil)
	if status != http.StatusOK {
		t.Fatalf("session start status = %d, want 200", status)
	}
}

func TestEditorEndpointsRequireSession(t *testing.T) {
	srv, client, cleanup := newTestServer(t)
	defer cleanup()

	var errResp ErrorResponse
	status := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/pages",
		CreatePageRequest{Name: "Home"}, &errResp)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d without session, want 401", status)
	}
	if errResp.Error.Code != "unauthorized" {
		t.Errorf("error code = %q, want unauthorized", errResp.Error.Code)
	}

	// A non-positive user id cannot open a session.
	status = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/session",
		StartSessionRequest{UserID: 0}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("session start status = %d for user 0, want 400", status)
	}
}

func TestEditingCycleOverHTTP(t *testing.T) {
	srv, client, cleanup := newTestServer(t)
	defer cleanup()
	startSession(t, client, srv.URL, 7)

	// Page and translation.
	var pageResp struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	status := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/pages",
		CreatePageRequest{Name: "Home"}, &pageResp)
	if status != http.StatusCreated {
		t.Fatalf("create page status = %d, want 201", status)
	}

	var trResp struct {
		Data struct {
			ID      int64  `json:"id"`
			Slug    string `json:"slug"`
			Version int64  `json:"version"`
		} `json:"data"`
	}
	status = doJSON(t, client, http.MethodPost,
		fmt.Sprintf("%s/api/v1/pages/%d/translations", srv.URL, pageResp.Data.ID),
		CreateTranslationRequest{Language: "en", Title: "Home Page"}, &trResp)
	if status != http.StatusCreated {
		t.Fatalf("create translation status = %d, want 201", status)
	}
	if trResp.Data.Slug != "home-page" {
		t.Errorf("slug = %q, want home-page", trResp.Data.Slug)
	}

	// Draft, save, publish.
	var draftResp struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	status = doJSON(t, client, http.MethodPost,
		fmt.Sprintf("%s/api/v1/translations/%d/draft", srv.URL, trResp.Data.ID), nil, &draftResp)
	if status != http.StatusOK {
		t.Fatalf("get draft status = %d, want 200", status)
	}

	var saveResp struct {
		Data struct {
			TempKeyMapping map[string]int64 `json:"temp_key_mapping"`
		} `json:"data"`
	}
	status = doJSON(t, client, http.MethodPost,
		fmt.Sprintf("%s/api/v1/drafts/%d/modules", srv.URL, draftResp.Data.ID),
		map[string]any{
			"language": "en",
			"modules": []map[string]any{
				{"temp_key": "t1", "type": "text", "settings": map[string]any{"body": "hello"}, "sort": 0},
			},
		}, &saveResp)
	if status != http.StatusOK {
		t.Fatalf("save modules status = %d, want 200", status)
	}
	if _, ok := saveResp.Data.TempKeyMapping["t1"]; !ok {
		t.Errorf("temp key mapping = %v, want entry for t1", saveResp.Data.TempKeyMapping)
	}

	var pubResp struct {
		Data struct {
			NewVersion  int64 `json:"new_version"`
			ModuleCount int   `json:"module_count"`
		} `json:"data"`
	}
	status = doJSON(t, client, http.MethodPost,
		fmt.Sprintf("%s/api/v1/drafts/%d/publish", srv.URL, draftResp.Data.ID), nil, &pubResp)
	if status != http.StatusOK {
		t.Fatalf("publish status = %d, want 200", status)
	}
	if pubResp.Data.NewVersion != 2 || pubResp.Data.ModuleCount != 1 {
		t.Errorf("publish result = v%d/%d modules, want v2/1",
			pubResp.Data.NewVersion, pubResp.Data.ModuleCount)
	}

	// The public render path needs no session.
	anon := &http.Client{}
	var renderResp struct {
		Data []struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	status = doJSON(t, anon, http.MethodGet,
		fmt.Sprintf("%s/api/v1/translations/%d/modules?public=true", srv.URL, trResp.Data.ID),
		nil, &renderResp)
	if status != http.StatusOK {
		t.Fatalf("render status = %d, want 200", status)
	}
	if len(renderResp.Data) != 1 || renderResp.Data[0].Type != "text" {
		t.Errorf("rendered modules = %v, want one text module", renderResp.Data)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	srv, client, cleanup := newTestServer(t)
	defer cleanup()
	startSession(t, client, srv.URL, 7)

	var errResp ErrorResponse
	status := doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/pages/9999", nil, &errResp)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if errResp.Error.Code != "NOT_FOUND" {
		t.Errorf("error code = %q, want NOT_FOUND", errResp.Error.Code)
	}

	// Unknown fields in a request body fail loudly.
	status = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/pages",
		map[string]any{"name": "x", "nmae": "typo"}, &errResp)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d for unknown field, want 400", status)
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := limiter.Middleware()(next)

	status := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := status("10.0.0.1:1234"); got != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", got)
	}
	if got := status("10.0.0.1:1234"); got != http.StatusOK {
		t.Fatalf("second request status = %d, want 200 (within burst)", got)
	}
	if got := status("10.0.0.1:1234"); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", got)
	}
	// Another client has its own budget.
	if got := status("10.0.0.2:1234"); got != http.StatusOK {
		t.Errorf("other client status = %d, want 200", got)
	}
}
