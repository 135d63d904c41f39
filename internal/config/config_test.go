// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "./data/pbcms.db" {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
	if got := cfg.ServerAddr(); got != "localhost:8080" {
		t.Errorf("ServerAddr = %q, want localhost:8080", got)
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment = false, want true by default")
	}
	if cfg.UseRedisCache() {
		t.Error("UseRedisCache = true with empty redis url")
	}
	if got := cfg.DefaultLanguage(); got != "en" {
		t.Errorf("DefaultLanguage = %q, want en", got)
	}
	if got := cfg.CacheTTLDuration(); got != time.Hour {
		t.Errorf("CacheTTLDuration = %v, want 1h", got)
	}
	if got := cfg.DraftMaxAge(); got != 30*24*time.Hour {
		t.Errorf("DraftMaxAge = %v, want 720h", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PBCMS_SERVER_HOST", "0.0.0.0")
	t.Setenv("PBCMS_SERVER_PORT", "9090")
	t.Setenv("PBCMS_ENV", "production")
	t.Setenv("PBCMS_LANGUAGES", "de, en ,fr")
	t.Setenv("PBCMS_REDIS_URL", "redis://localhost:6379/1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.ServerAddr(); got != "0.0.0.0:9090" {
		t.Errorf("ServerAddr = %q, want 0.0.0.0:9090", got)
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment = true in production")
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache = false with redis url set")
	}
	// Languages are trimmed; the first one is the default.
	if got := cfg.DefaultLanguage(); got != "de" {
		t.Errorf("DefaultLanguage = %q, want de", got)
	}
	if !cfg.HasLanguage("en") || !cfg.HasLanguage("fr") {
		t.Errorf("Languages = %v, want de, en and fr", cfg.Languages)
	}
	if cfg.HasLanguage("es") {
		t.Error("HasLanguage(es) = true, want false")
	}
}
