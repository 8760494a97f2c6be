// Package reminder fires the pre-meetup reminders of accepted bookings.
package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"convoydesk/internal/domain"
)

// DefaultLookahead bounds how far ahead of a meetup a reminder may be due.
// Guild configuration rejects offsets beyond it.
const DefaultLookahead = domain.MaxReminderOffsetMinutes * time.Minute

type BookingSource interface {
	ListAcceptedMaterialized(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
}

// LogStore owns the (booking, offset) markers.
type LogStore interface {
	TryLog(ctx context.Context, e domain.ReminderLog) (bool, error)
	ReleaseLog(ctx context.Context, guildID string, bookingID int64, offset int) error
}

type ConfigProvider interface {
	Get(ctx context.Context, guildID string) (*domain.GuildConfig, error)
}

type Sender interface {
	SendReminder(ctx context.Context, b *domain.Booking, offsetMinutes int) error
}

type Runner struct {
	bookings BookingSource
	logs     LogStore
	configs  ConfigProvider
	sender   Sender

	tolerance time.Duration
	lookahead time.Duration
	now       func() time.Time
}

// NewRunner builds a runner whose due window spans two ticks, so one late
// or skipped run still finds the reminder due. The log marker keeps the
// second tick inside the window from sending it again.
func NewRunner(bookings BookingSource, logs LogStore, configs ConfigProvider, sender Sender, tick time.Duration) *Runner {
	return &Runner{
		bookings:  bookings,
		logs:      logs,
		configs:   configs,
		sender:    sender,
		tolerance: 2 * tick,
		lookahead: DefaultLookahead,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Due reports whether now lies in [remindAt, remindAt+tolerance). A reminder
// whose window passed entirely while the process was down is never due.
func Due(meetup time.Time, offsetMinutes int, now time.Time, tolerance time.Duration) bool {
	remindAt := meetup.Add(-time.Duration(offsetMinutes) * time.Minute)
	return !now.Before(remindAt) && now.Before(remindAt.Add(tolerance))
}

// Tick fires every reminder due now and returns how many were sent.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	now := r.now()
	bookings, err := r.bookings.ListAcceptedMaterialized(ctx, now.Add(-r.tolerance), now.Add(r.lookahead+r.tolerance))
	if err != nil {
		return 0, fmt.Errorf("list reminder candidates: %w", err)
	}

	configs := map[string]*domain.GuildConfig{}
	fired := 0
	for i := range bookings {
		b := &bookings[i]
		cfg, ok := configs[b.GuildID]
		if !ok {
			cfg, err = r.configs.Get(ctx, b.GuildID)
			if err != nil {
				log.Printf("reminder_config_error guild=%s err=%v", b.GuildID, err)
			}
			configs[b.GuildID] = cfg
		}
		if cfg == nil || !cfg.RemindersEnabled {
			continue
		}

		for _, offset := range cfg.ReminderOffsets {
			if !Due(b.MeetupAt, offset, now, r.tolerance) {
				continue
			}
			if r.fire(ctx, b, offset, now) {
				fired++
			}
		}
	}
	return fired, nil
}

// fire claims the marker before sending and gives it back when the send
// fails, so a crash between the two costs at most the one reminder.
func (r *Runner) fire(ctx context.Context, b *domain.Booking, offset int, now time.Time) bool {
	claimed, err := r.logs.TryLog(ctx, domain.ReminderLog{
		GuildID:       b.GuildID,
		BookingID:     b.ID,
		OffsetMinutes: offset,
		FiredAt:       now,
	})
	if err != nil {
		log.Printf("reminder_log_error guild=%s booking=%d offset=%d err=%v", b.GuildID, b.ID, offset, err)
		return false
	}
	if !claimed {
		return false
	}

	if err := r.sender.SendReminder(ctx, b, offset); err != nil {
		log.Printf("reminder_send_error guild=%s booking=%d offset=%d err=%v", b.GuildID, b.ID, offset, err)
		if rerr := r.logs.ReleaseLog(ctx, b.GuildID, b.ID, offset); rerr != nil {
			log.Printf("reminder_release_error guild=%s booking=%d offset=%d err=%v", b.GuildID, b.ID, offset, rerr)
		}
		return false
	}
	log.Printf("reminder_sent guild=%s booking=%d offset=%d", b.GuildID, b.ID, offset)
	return true
}
