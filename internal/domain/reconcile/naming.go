package reconcile

import (
	"fmt"
	"regexp"
	"strings"

	"convoydesk/internal/domain"
	"convoydesk/internal/domain/schedule"

	"github.com/gosimple/slug"
)

const (
	categorySeparator = " • "
	maxOrgSlug        = 30
)

var monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

var statusEmoji = map[domain.BookingStatus]string{
	domain.StatusRequested: "📩",
	domain.StatusReview:    "🕵️",
	domain.StatusAccepted:  "✅",
	domain.StatusDeclined:  "❌",
	domain.StatusCancelled: "🛑",
	domain.StatusCompleted: "🏁",
}

var statusColor = map[domain.BookingStatus]int{
	domain.StatusRequested: 0x3498db,
	domain.StatusReview:    0xf1c40f,
	domain.StatusAccepted:  0x2ecc71,
	domain.StatusDeclined:  0xe74c3c,
	domain.StatusCancelled: 0x95a5a6,
	domain.StatusCompleted: 0x9b59b6,
}

func Emoji(s domain.BookingStatus) string {
	if e, ok := statusEmoji[s]; ok {
		return e
	}
	return "📌"
}

func Color(s domain.BookingStatus) int {
	if c, ok := statusColor[s]; ok {
		return c
	}
	return 0x95a5a6
}

// ChannelName is the canonical channel name for the booking's current status.
func ChannelName(b *domain.Booking) string {
	org := slug.Make(b.Organization)
	if len(org) > maxOrgSlug {
		org = org[:maxOrgSlug]
	}
	org = strings.TrimRight(org, "-")
	if org == "" {
		org = "booking"
	}
	return fmt.Sprintf("%s-%s-%s", Emoji(b.Status), b.EventDate, org)
}

// CategoryName is the month-keyed grouping category for a booking.
func CategoryName(prefix, eventDate string) string {
	return prefix + categorySeparator + schedule.MonthKey(eventDate)
}

// categoryKey extracts the month key when name is one of our categories.
func categoryKey(prefix, name string) (string, bool) {
	key, ok := strings.CutPrefix(name, prefix+categorySeparator)
	if !ok || !monthKeyPattern.MatchString(key) {
		return "", false
	}
	return key, true
}
