package domain

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusRequested BookingStatus = "REQUESTED"
	StatusReview    BookingStatus = "REVIEW"
	StatusAccepted  BookingStatus = "ACCEPTED"
	StatusDeclined  BookingStatus = "DECLINED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusCompleted BookingStatus = "COMPLETED"
)

// AllStatuses is ordered the way staff see them on the dashboard.
var AllStatuses = []BookingStatus{
	StatusRequested,
	StatusReview,
	StatusAccepted,
	StatusDeclined,
	StatusCancelled,
	StatusCompleted,
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown booking status %q", s)
	}
	return st, nil
}

func (s BookingStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Pending reports whether the booking still waits for a staff decision.
func (s BookingStatus) Pending() bool {
	return s == StatusRequested || s == StatusReview
}

// Closed statuses revoke the requester's write access.
func (s BookingStatus) Closed() bool {
	return s == StatusDeclined || s == StatusCancelled || s == StatusCompleted
}

type ReasonSource string

const (
	ReasonSystem  ReasonSource = "SYSTEM"
	ReasonClosure ReasonSource = "CLOSURE"
	ReasonStaff   ReasonSource = "STAFF"
)

type NotificationKind string

const (
	NoticeAcceptance NotificationKind = "acceptance"
	NoticeTranscript NotificationKind = "transcript"
)

// StatusChange is one entry of the append-only status history.
type StatusChange struct {
	Status BookingStatus `json:"status"`
	At     time.Time     `json:"at"`
	By     string        `json:"by"`
}

type Booking struct {
	GuildID string `json:"guild_id"`
	ID      int64  `json:"id"`

	RequesterID  string `json:"requester_id"`
	RequesterTag string `json:"requester_tag"`

	Organization   string `json:"organization"`
	EventDate      string `json:"event_date"`
	MeetupTime     string `json:"meetup_time"`
	DepartureTime  string `json:"departure_time"`
	Timezone       string `json:"timezone"`
	Server         string `json:"server"`
	StartLocation  string `json:"start_location"`
	Destination    string `json:"destination"`
	RequiredAddons string `json:"required_addons"`
	EventLink      string `json:"event_link"`
	Notes          string `json:"notes,omitempty"`
	InternalNotes  string `json:"internal_notes,omitempty"`
	RealOps        bool   `json:"real_ops"`

	MeetupAt    time.Time `json:"meetup_at"`
	DepartureAt time.Time `json:"departure_at"`

	Status              BookingStatus  `json:"status"`
	History             []StatusChange `json:"history"`
	DeclineReason       string         `json:"decline_reason,omitempty"`
	DeclineReasonSource ReasonSource   `json:"decline_reason_source,omitempty"`

	AcceptanceSentAt *time.Time `json:"acceptance_sent_at,omitempty"`
	AcceptanceSentBy string     `json:"acceptance_sent_by,omitempty"`
	TranscriptSentAt *time.Time `json:"transcript_sent_at,omitempty"`

	ChannelID        string `json:"channel_id,omitempty"`
	CategoryID       string `json:"category_id,omitempty"`
	SummaryMessageID string `json:"summary_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Materialized reports whether the external channel exists.
func (b *Booking) Materialized() bool {
	return b.ChannelID != ""
}

func (b *Booking) AcceptanceSent() bool {
	return b.AcceptanceSentAt != nil
}

// Key identifies the booking across guilds.
func (b *Booking) Key() string {
	return BookingKey(b.GuildID, b.ID)
}

func BookingKey(guildID string, id int64) string {
	return fmt.Sprintf("%s/%d", guildID, id)
}
