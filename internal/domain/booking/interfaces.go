package booking

import (
	"context"
	"time"

	"convoydesk/internal/domain"
	"convoydesk/internal/domain/conflict"
)

// Repository persists bookings. Lookups of unknown rows return repository.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, guildID string, id int64) (*domain.Booking, error)
	List(ctx context.Context, guildID string, statuses []domain.BookingStatus) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, b *domain.Booking) error
	UpdateFields(ctx context.Context, b *domain.Booking) error
	MarkNotificationSent(ctx context.Context, guildID string, id int64, kind domain.NotificationKind, actor string, at time.Time) (bool, error)
	Delete(ctx context.Context, guildID string, id int64) error
}

type ConfigProvider interface {
	Get(ctx context.Context, guildID string) (*domain.GuildConfig, error)
}

type ConflictChecker interface {
	Check(ctx context.Context, guildID string, meetup time.Time, cfg *domain.GuildConfig, excludeID int64) (conflict.Result, error)
}
