// Package desk coordinates booking mutations with channel reconciliation and
// live dashboard events. Every entry point (intake, staff API, jobs) goes
// through here.
package desk

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"convoydesk/internal/domain"
	"convoydesk/internal/domain/booking"
	"convoydesk/internal/domain/conflict"
	"convoydesk/internal/domain/reconcile"
)

// resyncWindow keeps bookings whose meetup passed recently in the resync set.
const resyncWindow = 48 * time.Hour

var ErrEmptyMessage = errors.New("message must not be empty")

type Bookings interface {
	Create(ctx context.Context, in booking.CreateInput) (*domain.Booking, error)
	Transition(ctx context.Context, in booking.TransitionInput) (*domain.Booking, *domain.Transition, error)
	Edit(ctx context.Context, in booking.EditInput) (*domain.Booking, conflict.Result, error)
	Delete(ctx context.Context, guildID string, id int64, confirm string) (*domain.Booking, error)
	Get(ctx context.Context, guildID string, id int64) (*domain.Booking, error)
	List(ctx context.Context, guildID string, statuses []domain.BookingStatus) ([]domain.Booking, error)
}

type Reconciler interface {
	Ensure(ctx context.Context, b *domain.Booking) (reconcile.Refs, error)
	Reconcile(ctx context.Context, b *domain.Booking, ev *domain.Transition, actor string) error
	Teardown(ctx context.Context, b *domain.Booking)
	RequestInfo(ctx context.Context, b *domain.Booking, staff, text string) error
}

type Publisher interface {
	Publish(ev domain.Event)
}

type ResyncSource interface {
	ListForResync(ctx context.Context, cutoff time.Time) ([]domain.Booking, error)
}

type Desk struct {
	bookings Bookings
	engine   Reconciler
	events   Publisher
	resync   ResyncSource
	now      func() time.Time
}

func New(bookings Bookings, engine Reconciler, events Publisher, resync ResyncSource) *Desk {
	return &Desk{
		bookings: bookings,
		engine:   engine,
		events:   events,
		resync:   resync,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (d *Desk) publish(t domain.EventType, b *domain.Booking, ev *domain.Transition, actor string) {
	if d.events == nil {
		return
	}
	d.events.Publish(domain.Event{
		Type:       t,
		GuildID:    b.GuildID,
		BookingID:  b.ID,
		Actor:      actor,
		Transition: ev,
		Booking:    b,
		At:         d.now(),
	})
}

// Submit creates the booking, materializes its channel and reconciles the
// initial edge, so a booking declined at creation gets its decline notice.
// A channel that cannot be created yet is left to the periodic resync; the
// booking stands.
func (d *Desk) Submit(ctx context.Context, in booking.CreateInput) (*domain.Booking, error) {
	b, err := d.bookings.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	initial := &domain.Transition{GuildID: b.GuildID, BookingID: b.ID, To: b.Status, Actor: b.RequesterID, At: b.CreatedAt}
	if err := d.engine.Reconcile(ctx, b, initial, b.RequesterID); err != nil {
		log.Printf("desk_reconcile_failed guild=%s booking=%d err=%v", b.GuildID, b.ID, err)
	}
	d.publish(domain.EventBookingCreated, b, initial, b.RequesterID)
	return b, nil
}

// ChangeStatus applies a staff transition. Reconciliation failures never
// roll back the stored status.
func (d *Desk) ChangeStatus(ctx context.Context, in booking.TransitionInput) (*domain.Booking, error) {
	b, ev, err := d.bookings.Transition(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := d.engine.Reconcile(ctx, b, ev, in.Actor); err != nil {
		log.Printf("desk_reconcile_failed guild=%s booking=%d err=%v", b.GuildID, b.ID, err)
	}
	d.publish(domain.EventBookingStatus, b, ev, in.Actor)
	return b, nil
}

func (d *Desk) Edit(ctx context.Context, in booking.EditInput) (*domain.Booking, conflict.Result, error) {
	b, res, err := d.bookings.Edit(ctx, in)
	if err != nil {
		return nil, res, err
	}
	if err := d.engine.Reconcile(ctx, b, nil, in.Actor); err != nil {
		log.Printf("desk_reconcile_failed guild=%s booking=%d err=%v", b.GuildID, b.ID, err)
	}
	d.publish(domain.EventBookingUpdated, b, nil, in.Actor)
	return b, res, nil
}

// Remove deletes the booking and then tears its channel down.
func (d *Desk) Remove(ctx context.Context, guildID string, id int64, confirm, actor string) error {
	b, err := d.bookings.Delete(ctx, guildID, id, confirm)
	if err != nil {
		return err
	}
	d.engine.Teardown(ctx, b)
	d.publish(domain.EventBookingRemoved, b, nil, actor)
	return nil
}

// RequestInfo posts a staff question into the booking channel.
func (d *Desk) RequestInfo(ctx context.Context, guildID string, id int64, actor, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	b, err := d.bookings.Get(ctx, guildID, id)
	if err != nil {
		return err
	}
	return d.engine.RequestInfo(ctx, b, actor, text)
}

func (d *Desk) Get(ctx context.Context, guildID string, id int64) (*domain.Booking, error) {
	return d.bookings.Get(ctx, guildID, id)
}

func (d *Desk) List(ctx context.Context, guildID string, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	return d.bookings.List(ctx, guildID, statuses)
}

// ResyncBooking re-runs reconciliation for one booking.
func (d *Desk) ResyncBooking(ctx context.Context, guildID string, id int64, actor string) (*domain.Booking, error) {
	b, err := d.bookings.Get(ctx, guildID, id)
	if err != nil {
		return nil, err
	}
	if err := d.converge(ctx, b, actor); err != nil {
		return b, err
	}
	d.publish(domain.EventBookingResynced, b, nil, actor)
	return b, nil
}

func (d *Desk) converge(ctx context.Context, b *domain.Booking, actor string) error {
	if !b.Materialized() {
		_, err := d.engine.Ensure(ctx, b)
		return err
	}
	return d.engine.Reconcile(ctx, b, nil, actor)
}

// Resync converges every booking whose meetup is recent or upcoming and
// reports how many passes completed.
func (d *Desk) Resync(ctx context.Context) (int, error) {
	bookings, err := d.resync.ListForResync(ctx, d.now().Add(-resyncWindow))
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range bookings {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if err := d.converge(ctx, &bookings[i], ""); err != nil {
			log.Printf("desk_resync_failed guild=%s booking=%d err=%v", bookings[i].GuildID, bookings[i].ID, err)
			continue
		}
		done++
	}
	log.Printf("desk_resync_finished total=%d converged=%d", len(bookings), done)
	return done, nil
}
