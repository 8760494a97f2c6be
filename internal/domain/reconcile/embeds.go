package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"convoydesk/internal/domain"
)

const (
	maxFieldValue = 900
	bannerURL     = "https://i.postimg.cc/g2p5CNHt/Event-Supervised-By.png"
	footerPrefix  = "Booking ID: "
)

var participantRules = []string{
	"Event Staff are recognised by a staff tag in their name.",
	"Impersonating Event Staff is forbidden.",
	"Double, triple and heavy haul trailer configurations are prohibited (except Event Staff).",
	"Cars and buses are prohibited except for tagged Event Staff.",
	"Participants must haul a trailer (except Event Staff).",
	"Advertising is prohibited (except Event Staff).",
	"Overtaking is prohibited.",
	"Participants must follow Event Staff instructions.",
	"Park in your designated slot, or in public parking if you have none.",
	"Leave the start location one by one, only when instructed.",
	"All other server rules apply.",
}

var staffRules = []string{
	"No more than 2 Event Staff may overtake the convoy at a time.",
	"Event Staff may drive against traffic only where a central barrier separates the roads.",
	"Event Staff may block junctions and their approaches to direct the convoy.",
	"Event Staff may park out of bounds, on the ground only.",
	"All other server rules apply.",
}

// footer marks the summary embed of a booking. Notices carry a suffixed
// footer so they never match the summary lookup.
func footer(id int64) string {
	return footerPrefix + strconv.FormatInt(id, 10)
}

func noticeFooter(id int64) string {
	return footer(id) + " • Decision"
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

// SummaryEmbed renders the pinned booking summary.
func SummaryEmbed(b *domain.Booking) Embed {
	e := Embed{
		Title: fmt.Sprintf("%s %s • %s", Emoji(b.Status), b.Status, b.Organization),
		Color: Color(b.Status),
		Fields: []EmbedField{
			{Name: "Date", Value: b.EventDate, Inline: true},
			{Name: fmt.Sprintf("Meetup (%s)", b.Timezone), Value: b.MeetupTime, Inline: true},
			{Name: fmt.Sprintf("Departure (%s)", b.Timezone), Value: b.DepartureTime, Inline: true},
			{Name: "Server", Value: orNone(b.Server), Inline: true},
			{Name: "Start", Value: orNone(b.StartLocation), Inline: true},
			{Name: "Destination", Value: orNone(b.Destination), Inline: true},
			{Name: "Required addons", Value: orNone(b.RequiredAddons)},
			{Name: "Event Link", Value: orNone(b.EventLink)},
		},
		Footer:    footer(b.ID),
		Timestamp: b.UpdatedAt,
	}
	if b.Notes != "" {
		e.Fields = append(e.Fields, EmbedField{Name: "Notes", Value: clip(b.Notes, maxFieldValue)})
	}
	if b.RealOps {
		e.Fields = append(e.Fields, EmbedField{
			Name:  "⚠ Real Operations",
			Value: "Real Operations booked for this event. See notes for group details.",
		})
	}
	if b.Status == domain.StatusDeclined && b.DeclineReason != "" {
		e.Fields = append(e.Fields, EmbedField{Name: "❌ Declined Reason", Value: clip(b.DeclineReason, maxFieldValue)})
	}
	return e
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

// AcceptancePack is sent once, in order, when a booking is accepted.
func AcceptancePack(b *domain.Booking, staff string) []Message {
	accepted := Embed{
		Title: "✅ Booking Accepted",
		Color: Color(domain.StatusAccepted),
		Description: strings.Join([]string{
			"Your booking request has been **accepted**.",
			"",
			"**Organization:** " + b.Organization,
			"**Date:** " + b.EventDate,
			fmt.Sprintf("**Meetup:** %s (%s)", b.MeetupTime, b.Timezone),
			fmt.Sprintf("**Departure:** %s (%s)", b.DepartureTime, b.Timezone),
			"",
			"Accepted by: **" + staff + "**",
			"Please keep all communication in this channel.",
		}, "\n"),
		Footer: noticeFooter(b.ID),
	}
	rules := Embed{
		Title: "📌 Event Rules",
		Color: Color(domain.StatusAccepted),
		Description: "**Event rules for participants**\n```\n" + strings.Join(participantRules, "\n\n") + "\n```\n\n" +
			"**Event rules for Event Staff**\n```\n" + strings.Join(staffRules, "\n\n") + "\n```",
	}
	banner := Embed{
		Title:    "🖼️ Event Supervised By",
		Color:    0x111827,
		ImageURL: bannerURL,
	}
	return []Message{
		{Content: mention(b.RequesterID), Embeds: []Embed{accepted}, MentionUsers: []string{b.RequesterID}},
		{Embeds: []Embed{rules}},
		{Embeds: []Embed{banner}},
	}
}

func DeclineNotice(b *domain.Booking, staff string, at time.Time) Message {
	reason := strings.TrimSpace(b.DeclineReason)
	if reason == "" {
		reason = "No reason provided."
	}
	e := Embed{
		Title: "❌ Booking Declined",
		Color: Color(domain.StatusDeclined),
		Description: strings.Join([]string{
			"Your booking request has been **declined**.",
			"",
			"**Organization:** " + b.Organization,
			"**Date:** " + b.EventDate,
			"",
			"Declined by: **" + staff + "**",
			"",
			"**Reason:**",
			clip(reason, maxFieldValue),
		}, "\n"),
		Footer:    noticeFooter(b.ID),
		Timestamp: at,
	}
	return Message{Content: mention(b.RequesterID), Embeds: []Embed{e}, MentionUsers: []string{b.RequesterID}}
}

// FormatOffset renders reminder offsets as 1d, 2h, 30m or 1h 30m.
func FormatOffset(minutes int) string {
	switch {
	case minutes%1440 == 0:
		return fmt.Sprintf("%dd", minutes/1440)
	case minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	case minutes > 60:
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

func ReminderMessage(b *domain.Booking, offsetMinutes int) Message {
	return Message{
		Content: fmt.Sprintf("%s ⏰ Reminder: **%s** meets up in %s (<t:%d:F>).",
			mention(b.RequesterID), b.Organization, FormatOffset(offsetMinutes), b.MeetupAt.Unix()),
		MentionUsers: []string{b.RequesterID},
	}
}

func InfoRequestMessage(b *domain.Booking, staff, text string) Message {
	return Message{
		Content: fmt.Sprintf("%s ℹ️ **More information needed** (asked by %s)\n%s",
			mention(b.RequesterID), staff, clip(strings.TrimSpace(text), 1800)),
		MentionUsers: []string{b.RequesterID},
	}
}
