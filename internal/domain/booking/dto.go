package booking

import (
	"strings"
	"time"

	"convoydesk/internal/domain"
)

// Fields is the requester-editable part of a booking.
type Fields struct {
	Organization   string `json:"organization" validate:"required,min=2,max=64"`
	EventDate      string `json:"event_date" validate:"required,ymd"`
	MeetupTime     string `json:"meetup_time" validate:"required,hm"`
	DepartureTime  string `json:"departure_time" validate:"required,hm"`
	Timezone       string `json:"timezone" validate:"omitempty,max=64,tz"`
	Server         string `json:"server" validate:"required,min=2,max=64"`
	StartLocation  string `json:"start_location" validate:"required,min=2,max=120"`
	Destination    string `json:"destination" validate:"required,min=2,max=120"`
	RequiredAddons string `json:"required_addons" validate:"required,min=2,max=200"`
	EventLink      string `json:"event_link" validate:"required,url"`
	Notes          string `json:"notes" validate:"max=500"`
}

func (f Fields) normalized() Fields {
	f.Organization = strings.TrimSpace(f.Organization)
	f.EventDate = strings.TrimSpace(f.EventDate)
	f.MeetupTime = strings.TrimSpace(f.MeetupTime)
	f.DepartureTime = strings.TrimSpace(f.DepartureTime)
	f.Timezone = strings.TrimSpace(f.Timezone)
	if f.Timezone == "" {
		f.Timezone = "UTC"
	}
	f.Server = strings.TrimSpace(f.Server)
	f.StartLocation = strings.TrimSpace(f.StartLocation)
	f.Destination = strings.TrimSpace(f.Destination)
	f.RequiredAddons = strings.TrimSpace(f.RequiredAddons)
	f.EventLink = strings.TrimSpace(f.EventLink)
	f.Notes = strings.TrimSpace(f.Notes)
	return f
}

func (f Fields) apply(b *domain.Booking, meetup, departure time.Time) {
	b.Organization = f.Organization
	b.EventDate = f.EventDate
	b.MeetupTime = f.MeetupTime
	b.DepartureTime = f.DepartureTime
	b.Timezone = f.Timezone
	b.Server = f.Server
	b.StartLocation = f.StartLocation
	b.Destination = f.Destination
	b.RequiredAddons = f.RequiredAddons
	b.EventLink = f.EventLink
	b.Notes = f.Notes
	b.MeetupAt = meetup
	b.DepartureAt = departure
}

// FieldsOf extracts the editable fields of an existing booking.
func FieldsOf(b *domain.Booking) Fields {
	return Fields{
		Organization:   b.Organization,
		EventDate:      b.EventDate,
		MeetupTime:     b.MeetupTime,
		DepartureTime:  b.DepartureTime,
		Timezone:       b.Timezone,
		Server:         b.Server,
		StartLocation:  b.StartLocation,
		Destination:    b.Destination,
		RequiredAddons: b.RequiredAddons,
		EventLink:      b.EventLink,
		Notes:          b.Notes,
	}
}

type CreateInput struct {
	GuildID      string `json:"-"`
	RequesterID  string `json:"requester_id" validate:"required"`
	RequesterTag string `json:"requester_tag"`
	RealOps      bool   `json:"real_ops"`
	Fields
}

type EditInput struct {
	GuildID   string `json:"-"`
	BookingID int64  `json:"-"`
	Actor     string `json:"-"`
	Fields
	InternalNotes *string `json:"internal_notes" validate:"omitempty,max=1000"`
	RealOps       *bool   `json:"real_ops"`
}

type TransitionInput struct {
	GuildID   string
	BookingID int64
	Status    domain.BookingStatus
	Actor     string
	Reason    string
}
