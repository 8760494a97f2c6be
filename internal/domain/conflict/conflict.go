// Package conflict decides whether a proposed booking window collides with
// declared closures or with other bookings of the same guild.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"convoydesk/internal/domain"
	"convoydesk/internal/domain/schedule"
)

type Kind string

const (
	KindNone    Kind = "none"
	KindClosure Kind = "closure"
	KindBooking Kind = "booking"
)

// FallbackClosureReason is reported for closures declared without a reason.
const FallbackClosureReason = "Closure conflict"

var ErrCandidates = errors.New("conflict candidates unavailable")

type Result struct {
	Kind Kind `json:"kind"`
	// ClosureID and Reason are set for closure hits.
	ClosureID int64  `json:"closure_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	// BookingID is set for booking hits.
	BookingID int64 `json:"booking_id,omitempty"`
}

func (r Result) HasConflict() bool {
	return r.Kind == KindClosure || r.Kind == KindBooking
}

type Options struct {
	DurationMinutes int
	BufferMinutes   int
	// BlockOnPending lets REQUESTED and REVIEW bookings block new slots too.
	BlockOnPending bool
	// ExcludeBookingID skips the booking being re-checked after an edit.
	ExcludeBookingID int64
}

func (o Options) blocks(s domain.BookingStatus) bool {
	if s == domain.StatusAccepted {
		return true
	}
	return o.BlockOnPending && s.Pending()
}

type bookingHit struct {
	id  int64
	win schedule.Window
}

// FindConflicts reports the first closure overlapping the proposed window,
// or failing that the first blocking booking. Candidates are ordered by
// window start then id, so the result does not depend on input order.
func FindConflicts(proposed schedule.Window, bookings []domain.Booking, closures []domain.Closure, opts Options) Result {
	cs := make([]domain.Closure, len(closures))
	copy(cs, closures)
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].StartAt.Equal(cs[j].StartAt) {
			return cs[i].StartAt.Before(cs[j].StartAt)
		}
		return cs[i].ID < cs[j].ID
	})
	for _, c := range cs {
		if schedule.Overlaps(proposed.Start, proposed.End, c.StartAt, c.EndAt) {
			reason := strings.TrimSpace(c.Reason)
			if reason == "" {
				reason = FallbackClosureReason
			}
			return Result{Kind: KindClosure, ClosureID: c.ID, Reason: reason}
		}
	}

	hits := make([]bookingHit, 0, len(bookings))
	for _, b := range bookings {
		if b.ID == opts.ExcludeBookingID || !opts.blocks(b.Status) {
			continue
		}
		hits = append(hits, bookingHit{
			id:  b.ID,
			win: schedule.BufferedWindow(b.MeetupAt, opts.DurationMinutes, opts.BufferMinutes),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if !hits[i].win.Start.Equal(hits[j].win.Start) {
			return hits[i].win.Start.Before(hits[j].win.Start)
		}
		return hits[i].id < hits[j].id
	})
	for _, h := range hits {
		if proposed.Overlaps(h.win) {
			return Result{Kind: KindBooking, BookingID: h.id}
		}
	}

	return Result{Kind: KindNone}
}

// CandidateStore reads the bookings and closures a check runs against.
type CandidateStore interface {
	ListBlocking(ctx context.Context, guildID string) ([]domain.Booking, error)
	ListClosures(ctx context.Context, guildID string) ([]domain.Closure, error)
}

type Detector struct {
	store CandidateStore
}

func NewDetector(store CandidateStore) *Detector {
	return &Detector{store: store}
}

// Check compares a meetup instant against the guild's candidates using the
// guild's current duration and buffer settings.
func (d *Detector) Check(ctx context.Context, guildID string, meetup time.Time, cfg *domain.GuildConfig, excludeID int64) (Result, error) {
	bookings, err := d.store.ListBlocking(ctx, guildID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: bookings: %v", ErrCandidates, err)
	}
	closures, err := d.store.ListClosures(ctx, guildID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: closures: %v", ErrCandidates, err)
	}

	opts := Options{
		DurationMinutes:  cfg.DefaultDurationMinutes,
		BufferMinutes:    cfg.BufferMinutes,
		BlockOnPending:   cfg.BlockOnPending,
		ExcludeBookingID: excludeID,
	}
	proposed := schedule.BufferedWindow(meetup, opts.DurationMinutes, opts.BufferMinutes)
	return FindConflicts(proposed, bookings, closures, opts), nil
}
