package domain

import "time"

// Closure is a guild-declared window during which no booking may be scheduled.
type Closure struct {
	ID        int64     `json:"id"`
	GuildID   string    `json:"guild_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
