// Package intake runs the two-step booking request form. The first step is
// parked as a draft keyed by (guild, user) until the second step completes.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"convoydesk/internal/domain"
	"convoydesk/internal/domain/booking"
	"convoydesk/internal/domain/schedule"
	"convoydesk/internal/pkg/validator"
	"convoydesk/internal/repository"
)

const DefaultDraftTTL = 15 * time.Minute

// DraftStore keeps drafts. Get may return expired drafts; the service
// checks expiry itself so correctness never depends on a sweep.
type DraftStore interface {
	Save(ctx context.Context, d *domain.Draft) error
	Get(ctx context.Context, guildID, userID string) (*domain.Draft, error)
	Delete(ctx context.Context, guildID, userID string) error
}

type Submitter interface {
	Submit(ctx context.Context, in booking.CreateInput) (*domain.Booking, error)
}

type Service struct {
	drafts DraftStore
	desk   Submitter
	ttl    time.Duration
	now    func() time.Time
}

func NewService(drafts DraftStore, desk Submitter, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &Service{
		drafts: drafts,
		desk:   desk,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func validationError(errs map[string]string) error {
	parts := make([]string, 0, len(errs))
	for k, v := range errs {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, ", "))
}

// SaveStep1 validates the first step and parks it as a draft, replacing any
// earlier one for the same user.
func (s *Service) SaveStep1(ctx context.Context, guildID, userID, userTag string, in Step1) (*domain.Draft, error) {
	in = in.trimmed()
	if errs := validator.Validate(in); errs != nil {
		return nil, validationError(errs)
	}
	meetup, err := schedule.ToInstant(in.EventDate, in.MeetupTime, in.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: meetup_time=%v", ErrValidation, err)
	}
	departure, err := schedule.ToInstant(in.EventDate, in.DepartureTime, in.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: departure_time=%v", ErrValidation, err)
	}
	if !meetup.Before(departure) {
		return nil, fmt.Errorf("%w: departure_time=must be after meetup_time", ErrValidation)
	}

	payload, err := json.Marshal(draftPayload{Step1: in, RequesterTag: userTag})
	if err != nil {
		return nil, err
	}
	now := s.now()
	d := &domain.Draft{
		GuildID:   guildID,
		UserID:    userID,
		Payload:   payload,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.drafts.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	log.Printf("intake_step1_saved guild=%s user=%s expires=%s", guildID, userID, d.ExpiresAt.Format(time.RFC3339))
	return d, nil
}

// Draft returns the live draft of a user.
func (s *Service) Draft(ctx context.Context, guildID, userID string) (*domain.Draft, error) {
	d, err := s.drafts.Get(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrDraftNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	if d.Expired(s.now()) {
		if derr := s.drafts.Delete(ctx, guildID, userID); derr != nil {
			log.Printf("intake_draft_delete_error guild=%s user=%s err=%v", guildID, userID, derr)
		}
		return nil, ErrDraftExpired
	}
	return d, nil
}

// Complete merges the second step into the draft, clears the draft and
// submits the booking.
func (s *Service) Complete(ctx context.Context, guildID, userID string, in Step2) (*domain.Booking, error) {
	in.StartLocation = strings.TrimSpace(in.StartLocation)
	in.Destination = strings.TrimSpace(in.Destination)
	in.RequiredAddons = strings.TrimSpace(in.RequiredAddons)
	in.EventLink = strings.TrimSpace(in.EventLink)
	in.Notes = strings.TrimSpace(in.Notes)
	if errs := validator.Validate(in); errs != nil {
		return nil, validationError(errs)
	}

	d, err := s.Draft(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	var p draftPayload
	if err := json.Unmarshal(d.Payload, &p); err != nil {
		_ = s.drafts.Delete(ctx, guildID, userID)
		return nil, fmt.Errorf("%w: unreadable draft", ErrDraftNotFound)
	}

	if err := s.drafts.Delete(ctx, guildID, userID); err != nil {
		log.Printf("intake_draft_delete_error guild=%s user=%s err=%v", guildID, userID, err)
	}

	return s.desk.Submit(ctx, booking.CreateInput{
		GuildID:      guildID,
		RequesterID:  userID,
		RequesterTag: p.RequesterTag,
		RealOps:      in.RealOps,
		Fields:       merge(p, in),
	})
}

// Cancel drops the user's draft.
func (s *Service) Cancel(ctx context.Context, guildID, userID string) error {
	return s.drafts.Delete(ctx, guildID, userID)
}
