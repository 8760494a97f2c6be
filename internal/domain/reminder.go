package domain

import "time"

// MaxReminderOffsetMinutes is the largest offset the reminder runner looks
// ahead for (14 days).
const MaxReminderOffsetMinutes = 14 * 24 * 60

// ReminderLog marks that the reminder for (booking, offset) was fired.
type ReminderLog struct {
	GuildID       string
	BookingID     int64
	OffsetMinutes int
	FiredAt       time.Time
}

// Draft is a partially completed two-step intake form.
type Draft struct {
	GuildID   string
	UserID    string
	Payload   []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (d *Draft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}
