// Package closure manages the windows in which a guild takes no bookings.
package closure

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"convoydesk/internal/domain"
	"convoydesk/internal/domain/schedule"
	"convoydesk/internal/pkg/validator"
	"convoydesk/internal/repository"
)

const maxReason = 250

var (
	ErrValidation = errors.New("invalid closure")
	ErrNotFound   = errors.New("closure not found")
)

type Store interface {
	Create(ctx context.Context, c *domain.Closure) error
	ListByGuild(ctx context.Context, guildID string) ([]domain.Closure, error)
	Delete(ctx context.Context, guildID string, id int64) error
}

// CreateInput accepts either absolute instants or a date with start and end
// time-of-day in a timezone.
type CreateInput struct {
	StartAt   *time.Time `json:"start_at"`
	EndAt     *time.Time `json:"end_at"`
	Date      string     `json:"date" validate:"omitempty,ymd"`
	StartTime string     `json:"start_time" validate:"omitempty,hm"`
	EndTime   string     `json:"end_time" validate:"omitempty,hm"`
	Timezone  string     `json:"timezone" validate:"omitempty,tz"`
	Reason    string     `json:"reason"`
}

func (in CreateInput) window() (time.Time, time.Time, error) {
	if errs := validator.Validate(in); errs != nil {
		fields := make([]string, 0, len(errs))
		for field, tag := range errs {
			fields = append(fields, field+"="+tag)
		}
		sort.Strings(fields)
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
	}
	switch {
	case in.StartAt != nil && in.EndAt != nil:
		return in.StartAt.UTC(), in.EndAt.UTC(), nil
	case in.Date != "" && in.StartTime != "" && in.EndTime != "":
		start, err := schedule.ToInstant(in.Date, in.StartTime, in.Timezone)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		end, err := schedule.ToInstant(in.Date, in.EndTime, in.Timezone)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return start, end, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: give start_at and end_at, or date with start_time and end_time", ErrValidation)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Create(ctx context.Context, guildID, actor string, in CreateInput) (*domain.Closure, error) {
	start, end, err := in.window()
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end must be after start", ErrValidation)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a closure reason is required", ErrValidation)
	}
	if utf8.RuneCountInString(reason) > maxReason {
		reason = string([]rune(reason)[:maxReason])
	}

	c := &domain.Closure{
		GuildID:   guildID,
		StartAt:   start,
		EndAt:     end,
		Reason:    reason,
		CreatedBy: actor,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	log.Printf("closure_created guild=%s id=%d start=%s end=%s by=%s", guildID, c.ID, start.Format(time.RFC3339), end.Format(time.RFC3339), actor)
	return c, nil
}

func (s *Service) List(ctx context.Context, guildID string) ([]domain.Closure, error) {
	return s.store.ListByGuild(ctx, guildID)
}

func (s *Service) Delete(ctx context.Context, guildID string, id int64) error {
	if err := s.store.Delete(ctx, guildID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	log.Printf("closure_deleted guild=%s id=%d", guildID, id)
	return nil
}
