package main

import (
	"context"
	"log"

	"convoydesk/internal/config"
	"convoydesk/internal/database"
	"convoydesk/internal/domain/cleanup"
	"convoydesk/internal/repository"
)

// One-shot sweep for deployments that run cleanup from cron instead of the
// in-process scheduler.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	svc := cleanup.NewService(repository.NewDraftRepository(db), repository.NewReminderRepository(db))
	ctx := context.Background()

	drafts, err := svc.CleanupDrafts(ctx)
	if err != nil {
		log.Fatalf("cleanup intake_drafts failed: %v", err)
	}
	logs, err := svc.CleanupReminderLogs(ctx, cfg.ReminderLogRetentionDays)
	if err != nil {
		log.Fatalf("cleanup reminder_logs failed: %v", err)
	}

	log.Printf("draft cleanup completed: intake_drafts=%d reminder_logs=%d", drafts, logs)
}
