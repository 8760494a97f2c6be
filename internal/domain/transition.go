package domain

import "time"

// Transition describes one status edge. An empty From marks the initial
// status chosen at creation.
type Transition struct {
	GuildID   string        `json:"guild_id"`
	BookingID int64         `json:"booking_id"`
	From      BookingStatus `json:"from,omitempty"`
	To        BookingStatus `json:"to"`
	Actor     string        `json:"actor"`
	At        time.Time     `json:"at"`
}

// Entered reports whether the edge moves into status s from a different status.
func (t *Transition) Entered(s BookingStatus) bool {
	return t != nil && t.To == s && t.From != s
}
