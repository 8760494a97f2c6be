// Package cleanup sweeps intake drafts and reminder markers that no longer
// serve any booking.
package cleanup

import (
	"context"
	"log"
	"time"
)

type DraftSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ReminderLogSweeper interface {
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error)
}

// Service handles background cleanup tasks
type Service struct {
	drafts    DraftSweeper
	reminders ReminderLogSweeper
	now       func() time.Time
}

func NewService(drafts DraftSweeper, reminders ReminderLogSweeper) *Service {
	return &Service{
		drafts:    drafts,
		reminders: reminders,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Config holds configuration for cleanup tasks
type Config struct {
	ReminderLogRetentionDays int           // Keep reminder markers for N days (default: 30)
	Interval                 time.Duration // How often to run cleanup (default: 1h)
	Enabled                  bool
}

func DefaultConfig() Config {
	return Config{
		ReminderLogRetentionDays: 30,
		Interval:                 time.Hour,
		Enabled:                  true,
	}
}

// CleanupDrafts removes intake drafts past their expiry. Reads already treat
// them as gone; this only reclaims storage.
func (s *Service) CleanupDrafts(ctx context.Context) (int64, error) {
	if s.drafts == nil {
		return 0, nil
	}
	start := time.Now()
	deleted, err := s.drafts.DeleteExpired(ctx, s.now())
	if err != nil {
		log.Printf("cleanup_drafts_error err=%v", err)
		return 0, err
	}
	log.Printf("cleanup_drafts deleted=%d took=%v", deleted, time.Since(start))
	return deleted, nil
}

// CleanupReminderLogs removes reminder markers older than the retention.
// Markers must outlive the lookahead window or a reminder could fire twice.
func (s *Service) CleanupReminderLogs(ctx context.Context, retentionDays int) (int64, error) {
	if s.reminders == nil || retentionDays <= 0 {
		return 0, nil
	}
	start := time.Now()
	deleted, err := s.reminders.DeleteOlderThan(ctx, time.Duration(retentionDays*24)*time.Hour, s.now())
	if err != nil {
		log.Printf("cleanup_reminder_logs_error err=%v", err)
		return 0, err
	}
	log.Printf("cleanup_reminder_logs deleted=%d took=%v", deleted, time.Since(start))
	return deleted, nil
}

// RunScheduledCleanup runs all cleanup tasks. Failures are logged and do
// not stop the other tasks.
func (s *Service) RunScheduledCleanup(ctx context.Context, cfg Config) {
	start := time.Now()
	if _, err := s.CleanupDrafts(ctx); err != nil {
		log.Printf("Warning: draft cleanup failed: %v", err)
	}
	if _, err := s.CleanupReminderLogs(ctx, cfg.ReminderLogRetentionDays); err != nil {
		log.Printf("Warning: reminder log cleanup failed: %v", err)
	}
	log.Printf("cleanup_done took=%v", time.Since(start))
}
