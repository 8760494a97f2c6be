package intake

import (
	"strings"

	"convoydesk/internal/domain/booking"
)

// Step1 covers the organization and timing part of the request.
type Step1 struct {
	Organization  string `json:"organization" validate:"required,min=2,max=64"`
	EventDate     string `json:"event_date" validate:"required,ymd"`
	MeetupTime    string `json:"meetup_time" validate:"required,hm"`
	DepartureTime string `json:"departure_time" validate:"required,hm"`
	Timezone      string `json:"timezone" validate:"omitempty,max=64,tz"`
	Server        string `json:"server" validate:"required,min=2,max=64"`
}

// Step2 covers route, requirements and links.
type Step2 struct {
	StartLocation  string `json:"start_location" validate:"required,min=2,max=120"`
	Destination    string `json:"destination" validate:"required,min=2,max=120"`
	RequiredAddons string `json:"required_addons" validate:"required,min=2,max=200"`
	EventLink      string `json:"event_link" validate:"required,url"`
	Notes          string `json:"notes" validate:"max=500"`
	RealOps        bool   `json:"real_ops"`
}

// draftPayload is what a draft stores between the two steps.
type draftPayload struct {
	Step1        Step1  `json:"step1"`
	RequesterTag string `json:"requester_tag,omitempty"`
}

func (s Step1) trimmed() Step1 {
	s.Organization = strings.TrimSpace(s.Organization)
	s.EventDate = strings.TrimSpace(s.EventDate)
	s.MeetupTime = strings.TrimSpace(s.MeetupTime)
	s.DepartureTime = strings.TrimSpace(s.DepartureTime)
	s.Timezone = strings.TrimSpace(s.Timezone)
	s.Server = strings.TrimSpace(s.Server)
	return s
}

func merge(p draftPayload, s Step2) booking.Fields {
	return booking.Fields{
		Organization:   p.Step1.Organization,
		EventDate:      p.Step1.EventDate,
		MeetupTime:     p.Step1.MeetupTime,
		DepartureTime:  p.Step1.DepartureTime,
		Timezone:       p.Step1.Timezone,
		Server:         p.Step1.Server,
		StartLocation:  s.StartLocation,
		Destination:    s.Destination,
		RequiredAddons: s.RequiredAddons,
		EventLink:      s.EventLink,
		Notes:          s.Notes,
	}
}
