// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the application configuration from environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration loaded from environment
// variables.
type Config struct {
	DBPath     string `env:"PBCMS_DB_PATH" envDefault:"./data/pbcms.db"`
	ServerHost string `env:"PBCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"PBCMS_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"PBCMS_ENV" envDefault:"development"`
	LogLevel   string `env:"PBCMS_LOG_LEVEL" envDefault:"info"`

	// Languages is the comma-separated list of site languages. The
	// first entry is the default language.
	Languages []string `env:"PBCMS_LANGUAGES" envDefault:"en" envSeparator:","`

	// Cache configuration. An empty RedisURL selects the in-process
	// memory cache.
	RedisURL     string `env:"PBCMS_REDIS_URL"`
	CachePrefix  string `env:"PBCMS_CACHE_PREFIX" envDefault:"pbcms:"`
	CacheTTL     int    `env:"PBCMS_CACHE_TTL" envDefault:"3600"`
	CacheMaxSize int    `env:"PBCMS_CACHE_MAX_SIZE" envDefault:"10000"`

	// Draft housekeeping. Drafts untouched for longer than
	// DraftMaxAgeDays are purged by the scheduler.
	DraftMaxAgeDays int `env:"PBCMS_DRAFT_MAX_AGE_DAYS" envDefault:"30"`
	EventMaxAgeDays int `env:"PBCMS_EVENT_MAX_AGE_DAYS" envDefault:"90"`

	// Rate limiting for the API surface, requests per second per
	// client IP with a burst allowance.
	RateLimit      float64 `env:"PBCMS_RATE_LIMIT" envDefault:"20"`
	RateLimitBurst int     `env:"PBCMS_RATE_LIMIT_BURST" envDefault:"40"`
}

// IsDevelopment reports whether the application runs in development
// mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the listen address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache reports whether Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// DefaultLanguage returns the first configured language.
func (c Config) DefaultLanguage() string {
	if len(c.Languages) == 0 {
		return "en"
	}
	return c.Languages[0]
}

// HasLanguage reports whether lang is a configured site language.
func (c Config) HasLanguage(lang string) bool {
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// CacheTTLDuration returns the cache TTL as a time.Duration.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// DraftMaxAge returns the stale-draft cutoff as a time.Duration.
func (c Config) DraftMaxAge() time.Duration {
	return time.Duration(c.DraftMaxAgeDays) * 24 * time.Hour
}

// EventMaxAge returns the event-retention cutoff as a time.Duration.
func (c Config) EventMaxAge() time.Duration {
	return time.Duration(c.EventMaxAgeDays) * 24 * time.Hour
}

// Load parses environment variables and returns a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	for i, lang := range cfg.Languages {
		cfg.Languages[i] = strings.TrimSpace(lang)
	}
	if len(cfg.Languages) == 0 {
		return nil, fmt.Errorf("PBCMS_LANGUAGES must name at least one language")
	}
	return cfg, nil
}
