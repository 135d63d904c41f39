// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic housekeeping: purging stale drafts
// and trimming the event log.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pagecraft/pbcms-go/internal/store"
)

// Scheduler owns the cron runner for background housekeeping jobs.
type Scheduler struct {
	db          *sql.DB
	cron        *cron.Cron
	logger      *slog.Logger
	draftMaxAge time.Duration
	eventMaxAge time.Duration
}

// New creates a scheduler. Drafts untouched for draftMaxAge and events
// older than eventMaxAge are purged on each sweep.
func New(db *sql.DB, logger *slog.Logger, draftMaxAge, eventMaxAge time.Duration) *Scheduler {
	return &Scheduler{
		db:          db,
		cron:        cron.New(),
		logger:      logger,
		draftMaxAge: draftMaxAge,
		eventMaxAge: eventMaxAge,
	}
}

// Start registers the hourly housekeeping jobs and starts the runner.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("@hourly", func() {
		if err := s.purgeStaleDrafts(); err != nil {
			s.logger.Error("stale draft purge failed", "error", err)
		}
		if err := s.trimEvents(); err != nil {
			s.logger.Error("event log trim failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop stops the runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// purgeStaleDrafts deletes drafts not touched within draftMaxAge.
// Module drafts and their translation rows cascade.
func (s *Scheduler) purgeStaleDrafts() error {
	if s.draftMaxAge <= 0 {
		return nil
	}
	ctx := context.Background()
	queries := store.New(s.db)

	cutoff := time.Now().UTC().Add(-s.draftMaxAge)
	drafts, err := queries.ListStalePageDrafts(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		return nil
	}

	purged := 0
	for _, d := range drafts {
		if err := queries.DeletePageDraft(ctx, d.ID); err != nil {
			s.logger.Error("failed to purge stale draft",
				"draft_id", d.ID,
				"user_id", d.UserID,
				"error", err)
			continue
		}
		purged++
	}

	s.logger.Info("purged stale drafts",
		"count", purged,
		"cutoff", cutoff.Format(time.RFC3339))
	return nil
}

// trimEvents deletes event log rows older than eventMaxAge.
func (s *Scheduler) trimEvents() error {
	if s.eventMaxAge <= 0 {
		return nil
	}
	ctx := context.Background()
	queries := store.New(s.db)

	cutoff := time.Now().UTC().Add(-s.eventMaxAge)
	deleted, err := queries.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Info("trimmed event log", "deleted", deleted)
	}
	return nil
}
