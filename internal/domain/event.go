package domain

import "time"

type EventType string

const (
	EventBookingCreated  EventType = "booking_created"
	EventBookingUpdated  EventType = "booking_updated"
	EventBookingStatus   EventType = "booking_status"
	EventBookingRemoved  EventType = "booking_removed"
	EventBookingResynced EventType = "booking_resynced"
)

// Event is pushed to staff dashboards watching a guild.
type Event struct {
	Type       EventType   `json:"type"`
	GuildID    string      `json:"guild_id"`
	BookingID  int64       `json:"booking_id"`
	Actor      string      `json:"actor,omitempty"`
	Transition *Transition `json:"transition,omitempty"`
	Booking    *Booking    `json:"booking,omitempty"`
	At         time.Time   `json:"at"`
}
