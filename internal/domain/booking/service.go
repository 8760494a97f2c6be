package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"convoydesk/internal/domain"
	"convoydesk/internal/domain/conflict"
	"convoydesk/internal/domain/schedule"
	"convoydesk/internal/pkg/keylock"
	"convoydesk/internal/pkg/validator"
	"convoydesk/internal/repository"
)

const (
	maxDeclineReason = 900
	removeConfirm    = "DELETE"
)

type Service struct {
	repo      Repository
	configs   ConfigProvider
	conflicts ConflictChecker

	guildLocks   *keylock.Map
	bookingLocks *keylock.Map
	now          func() time.Time
}

func NewService(repo Repository, configs ConfigProvider, conflicts ConflictChecker) *Service {
	return &Service{
		repo:         repo,
		configs:      configs,
		conflicts:    conflicts,
		guildLocks:   keylock.New(),
		bookingLocks: keylock.New(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// validateFields checks formats and returns the meetup and departure instants.
func validateFields(v interface{}, f Fields) (time.Time, time.Time, error) {
	if errs := validator.Validate(v); errs != nil {
		return time.Time{}, time.Time{}, &ValidationError{Fields: errs}
	}
	meetup, err := schedule.ToInstant(f.EventDate, f.MeetupTime, f.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, newValidationError("meetup_time", err.Error())
	}
	departure, err := schedule.ToInstant(f.EventDate, f.DepartureTime, f.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, newValidationError("departure_time", err.Error())
	}
	if !meetup.Before(departure) {
		return time.Time{}, time.Time{}, newValidationError("departure_time", "must be after meetup_time")
	}
	return meetup, departure, nil
}

// Create validates the request, runs conflict detection and persists the
// booking in the status chosen by DecideInitialStatus. Nothing is written
// when validation or detection fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Booking, error) {
	in.Fields = in.Fields.normalized()
	in.RequesterID = strings.TrimSpace(in.RequesterID)
	if strings.TrimSpace(in.GuildID) == "" {
		return nil, newValidationError("guild_id", "required")
	}
	meetup, departure, err := validateFields(in, in.Fields)
	if err != nil {
		return nil, err
	}

	unlock := s.guildLocks.Lock(in.GuildID)
	defer unlock()

	cfg, err := s.configs.Get(ctx, in.GuildID)
	if err != nil {
		return nil, fmt.Errorf("load guild config: %w", err)
	}

	res, err := s.conflicts.Check(ctx, in.GuildID, meetup, cfg, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConflictDetection, err)
	}
	decision := DecideInitialStatus(res, cfg.ReviewMode)

	now := s.now()
	b := &domain.Booking{
		GuildID:      in.GuildID,
		RequesterID:  in.RequesterID,
		RequesterTag: strings.TrimSpace(in.RequesterTag),
		RealOps:      in.RealOps,
		Status:       decision.Status,
		History: []domain.StatusChange{
			{Status: decision.Status, At: now, By: in.RequesterID},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.Fields.apply(b, meetup, departure)
	if decision.Status == domain.StatusDeclined {
		b.DeclineReason = decision.Reason
		b.DeclineReasonSource = decision.Source
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	log.Printf("booking_created guild=%s id=%d status=%s reason=%q source=%s conflict=%s",
		b.GuildID, b.ID, b.Status, decision.Reason, decision.Source, res.Kind)
	return b, nil
}

// Transition moves a booking to any status, appends history and returns the
// edge for the caller to reconcile. No external action happens here.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*domain.Booking, *domain.Transition, error) {
	if !in.Status.Valid() {
		return nil, nil, newValidationError("status", "unknown status")
	}
	reason := strings.TrimSpace(in.Reason)
	if in.Status == domain.StatusDeclined {
		if reason == "" {
			return nil, nil, ErrMissingDeclineReason
		}
		reason = truncate(reason, maxDeclineReason)
	}

	unlock := s.bookingLocks.Lock(domain.BookingKey(in.GuildID, in.BookingID))
	defer unlock()

	b, err := s.get(ctx, in.GuildID, in.BookingID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	ev := &domain.Transition{
		GuildID:   b.GuildID,
		BookingID: b.ID,
		From:      b.Status,
		To:        in.Status,
		Actor:     in.Actor,
		At:        now,
	}

	b.Status = in.Status
	b.History = append(b.History, domain.StatusChange{Status: in.Status, At: now, By: in.Actor})
	if in.Status == domain.StatusDeclined {
		b.DeclineReason = reason
		b.DeclineReasonSource = domain.ReasonStaff
	} else {
		b.DeclineReasonSource = ""
	}
	b.UpdatedAt = now

	if err := s.repo.UpdateStatus(ctx, b); err != nil {
		return nil, nil, err
	}

	log.Printf("booking_transition guild=%s id=%d from=%s to=%s actor=%s", b.GuildID, b.ID, ev.From, ev.To, ev.Actor)
	return b, ev, nil
}

// MarkNotificationSent records a one-time notification. It reports true only
// for the call that flipped the flag.
func (s *Service) MarkNotificationSent(ctx context.Context, guildID string, id int64, kind domain.NotificationKind, actor string) (bool, error) {
	ok, err := s.repo.MarkNotificationSent(ctx, guildID, id, kind, actor, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return false, ErrNotFound
	}
	return ok, err
}

// Edit replaces the descriptive fields and recomputes the instants. The
// returned conflict result is advisory; status is left untouched.
func (s *Service) Edit(ctx context.Context, in EditInput) (*domain.Booking, conflict.Result, error) {
	in.Fields = in.Fields.normalized()
	meetup, departure, err := validateFields(in, in.Fields)
	if err != nil {
		return nil, conflict.Result{}, err
	}

	unlock := s.bookingLocks.Lock(domain.BookingKey(in.GuildID, in.BookingID))
	defer unlock()

	b, err := s.get(ctx, in.GuildID, in.BookingID)
	if err != nil {
		return nil, conflict.Result{}, err
	}

	cfg, err := s.configs.Get(ctx, in.GuildID)
	if err != nil {
		return nil, conflict.Result{}, fmt.Errorf("load guild config: %w", err)
	}
	res, err := s.conflicts.Check(ctx, in.GuildID, meetup, cfg, b.ID)
	if err != nil {
		return nil, conflict.Result{}, fmt.Errorf("%w: %v", ErrConflictDetection, err)
	}

	in.Fields.apply(b, meetup, departure)
	if in.InternalNotes != nil {
		b.InternalNotes = strings.TrimSpace(*in.InternalNotes)
	}
	if in.RealOps != nil {
		b.RealOps = *in.RealOps
	}
	b.UpdatedAt = s.now()

	if err := s.repo.UpdateFields(ctx, b); err != nil {
		return nil, conflict.Result{}, err
	}

	log.Printf("booking_edited guild=%s id=%d actor=%s conflict=%s", b.GuildID, b.ID, in.Actor, res.Kind)
	return b, res, nil
}

// Delete physically removes a booking. confirm must be the literal DELETE.
func (s *Service) Delete(ctx context.Context, guildID string, id int64, confirm string) (*domain.Booking, error) {
	if strings.TrimSpace(confirm) != removeConfirm {
		return nil, ErrConfirmationRequired
	}

	unlock := s.bookingLocks.Lock(domain.BookingKey(guildID, id))
	defer unlock()

	b, err := s.get(ctx, guildID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, guildID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	log.Printf("booking_deleted guild=%s id=%d", guildID, id)
	return b, nil
}

func (s *Service) Get(ctx context.Context, guildID string, id int64) (*domain.Booking, error) {
	return s.get(ctx, guildID, id)
}

func (s *Service) List(ctx context.Context, guildID string, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, newValidationError("status", "unknown status")
		}
	}
	return s.repo.List(ctx, guildID, statuses)
}

func (s *Service) get(ctx context.Context, guildID string, id int64) (*domain.Booking, error) {
	b, err := s.repo.GetByID(ctx, guildID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
