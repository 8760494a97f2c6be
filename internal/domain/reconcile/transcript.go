package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"convoydesk/internal/domain"
)

func oneLine(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ").Replace(s))
}

// BuildTranscript renders messages oldest first as plain text.
func BuildTranscript(ch Channel, msgs []Posted, generated time.Time) string {
	sorted := make([]Posted, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var sb strings.Builder
	fmt.Fprintf(&sb, "Transcript for #%s (%s)\n", ch.Name, ch.ID)
	fmt.Fprintf(&sb, "Generated: %s\n", generated.UTC().Format(time.RFC3339))
	sb.WriteString(strings.Repeat("=", 80))
	for _, m := range sorted {
		author := m.AuthorName
		if author == "" {
			author = "Unknown"
		}
		fmt.Fprintf(&sb, "\n[%s] %s (%s): %s", m.Timestamp.UTC().Format(time.RFC3339), author, m.AuthorID, oneLine(m.Content))
		for _, e := range m.Embeds {
			t, d := oneLine(e.Title), oneLine(e.Description)
			if t == "" && d == "" {
				continue
			}
			sep := ""
			if t != "" && d != "" {
				sep = " - "
			}
			fmt.Fprintf(&sb, "\n  [EMBED] %s%s%s", t, sep, d)
		}
	}
	return sb.String()
}

func transcriptMessage(b *domain.Booking, ch Channel, text string, at time.Time) Message {
	e := Embed{
		Title: "📄 Booking Transcript",
		Description: strings.Join([]string{
			fmt.Sprintf("**Booking ID:** %d", b.ID),
			"**Requester:** " + mention(b.RequesterID),
			"**Status:** " + string(b.Status),
			fmt.Sprintf("**Channel:** #%s (%s)", ch.Name, ch.ID),
		}, "\n"),
		Timestamp: at,
	}
	return Message{
		Embeds: []Embed{e},
		File: &Attachment{
			Name:        fmt.Sprintf("transcript-%d-%s.txt", b.ID, ch.ID),
			ContentType: "text/plain",
			Data:        []byte(text),
		},
	}
}
