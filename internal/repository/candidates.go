package repository

import (
	"context"

	"convoydesk/internal/domain"
)

// ConflictCandidates reads what a conflict check runs against.
type ConflictCandidates struct {
	bookings *BookingRepository
	closures *ClosureRepository
}

func NewConflictCandidates(bookings *BookingRepository, closures *ClosureRepository) *ConflictCandidates {
	return &ConflictCandidates{bookings: bookings, closures: closures}
}

func (c *ConflictCandidates) ListBlocking(ctx context.Context, guildID string) ([]domain.Booking, error) {
	return c.bookings.ListBlocking(ctx, guildID)
}

func (c *ConflictCandidates) ListClosures(ctx context.Context, guildID string) ([]domain.Closure, error) {
	return c.closures.ListByGuild(ctx, guildID)
}
