package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"convoydesk/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertAttempts = 3

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	PK      int64  `gorm:"column:pk;primaryKey;autoIncrement"`
	GuildID string `gorm:"column:guild_id;size:32;not null;uniqueIndex:idx_bookings_guild_booking,priority:1;index:idx_bookings_guild_status,priority:1"`
	ID      int64  `gorm:"column:booking_id;not null;uniqueIndex:idx_bookings_guild_booking,priority:2"`

	RequesterID  string `gorm:"column:requester_id;size:32;not null"`
	RequesterTag string `gorm:"column:requester_tag"`

	Organization   string  `gorm:"column:organization;not null"`
	EventDate      string  `gorm:"column:event_date;size:10;not null"`
	MeetupTime     string  `gorm:"column:meetup_time;size:5;not null"`
	DepartureTime  string  `gorm:"column:departure_time;size:5;not null"`
	Timezone       string  `gorm:"column:timezone;not null"`
	Server         string  `gorm:"column:server"`
	StartLocation  string  `gorm:"column:start_location"`
	Destination    string  `gorm:"column:destination"`
	RequiredAddons string  `gorm:"column:required_addons"`
	EventLink      string  `gorm:"column:event_link"`
	Notes          *string `gorm:"column:notes"`
	InternalNotes  *string `gorm:"column:internal_notes"`
	RealOps        bool    `gorm:"column:real_ops;not null;default:false"`

	MeetupAt    time.Time `gorm:"column:meetup_at;not null;index"`
	DepartureAt time.Time `gorm:"column:departure_at;not null"`

	Status              string                `gorm:"column:status;size:16;not null;index:idx_bookings_guild_status,priority:2"`
	History             []domain.StatusChange `gorm:"column:status_history;type:text;serializer:json"`
	DeclineReason       *string               `gorm:"column:decline_reason"`
	DeclineReasonSource *string               `gorm:"column:decline_reason_source"`

	AcceptanceSentAt *time.Time `gorm:"column:acceptance_sent_at"`
	AcceptanceSentBy *string    `gorm:"column:acceptance_sent_by"`
	TranscriptSentAt *time.Time `gorm:"column:transcript_sent_at"`

	ChannelID        *string `gorm:"column:channel_id;index"`
	CategoryID       *string `gorm:"column:category_id"`
	SummaryMessageID *string `gorm:"column:summary_message_id"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (bookingModel) TableName() string { return "bookings" }

// guildCounterModel hands out booking ids per guild.
type guildCounterModel struct {
	GuildID string `gorm:"column:guild_id;primaryKey;size:32"`
	LastID  int64  `gorm:"column:last_id;not null"`
}

func (guildCounterModel) TableName() string { return "guild_counters" }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	v := s
	return &v
}

func toDomainBooking(m bookingModel) *domain.Booking {
	return &domain.Booking{
		GuildID:             m.GuildID,
		ID:                  m.ID,
		RequesterID:         m.RequesterID,
		RequesterTag:        m.RequesterTag,
		Organization:        m.Organization,
		EventDate:           m.EventDate,
		MeetupTime:          m.MeetupTime,
		DepartureTime:       m.DepartureTime,
		Timezone:            m.Timezone,
		Server:              m.Server,
		StartLocation:       m.StartLocation,
		Destination:         m.Destination,
		RequiredAddons:      m.RequiredAddons,
		EventLink:           m.EventLink,
		Notes:               deref(m.Notes),
		InternalNotes:       deref(m.InternalNotes),
		RealOps:             m.RealOps,
		MeetupAt:            m.MeetupAt.UTC(),
		DepartureAt:         m.DepartureAt.UTC(),
		Status:              domain.BookingStatus(m.Status),
		History:             m.History,
		DeclineReason:       deref(m.DeclineReason),
		DeclineReasonSource: domain.ReasonSource(deref(m.DeclineReasonSource)),
		AcceptanceSentAt:    m.AcceptanceSentAt,
		AcceptanceSentBy:    deref(m.AcceptanceSentBy),
		TranscriptSentAt:    m.TranscriptSentAt,
		ChannelID:           deref(m.ChannelID),
		CategoryID:          deref(m.CategoryID),
		SummaryMessageID:    deref(m.SummaryMessageID),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func toBookingModel(b *domain.Booking) bookingModel {
	return bookingModel{
		GuildID:             b.GuildID,
		ID:                  b.ID,
		RequesterID:         b.RequesterID,
		RequesterTag:        b.RequesterTag,
		Organization:        b.Organization,
		EventDate:           b.EventDate,
		MeetupTime:          b.MeetupTime,
		DepartureTime:       b.DepartureTime,
		Timezone:            b.Timezone,
		Server:              b.Server,
		StartLocation:       b.StartLocation,
		Destination:         b.Destination,
		RequiredAddons:      b.RequiredAddons,
		EventLink:           b.EventLink,
		Notes:               nullable(b.Notes),
		InternalNotes:       nullable(b.InternalNotes),
		RealOps:             b.RealOps,
		MeetupAt:            b.MeetupAt.UTC(),
		DepartureAt:         b.DepartureAt.UTC(),
		Status:              string(b.Status),
		History:             b.History,
		DeclineReason:       nullable(b.DeclineReason),
		DeclineReasonSource: nullable(string(b.DeclineReasonSource)),
		AcceptanceSentAt:    b.AcceptanceSentAt,
		AcceptanceSentBy:    nullable(b.AcceptanceSentBy),
		TranscriptSentAt:    b.TranscriptSentAt,
		ChannelID:           nullable(b.ChannelID),
		CategoryID:          nullable(b.CategoryID),
		SummaryMessageID:    nullable(b.SummaryMessageID),
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

// encodeHistory matches the json serializer used on insert; map updates skip serializers.
func encodeHistory(h []domain.StatusChange) (string, error) {
	if h == nil {
		h = []domain.StatusChange{}
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encode status history: %w", err)
	}
	return string(raw), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// nextID bumps the guild counter inside tx. A missing counter row is seeded
// from the highest stored id so imported rows are never reused.
func nextID(tx *gorm.DB, guildID string) (int64, error) {
	var maxID int64
	if err := tx.Model(&bookingModel{}).
		Where("guild_id = ?", guildID).
		Select("COALESCE(MAX(booking_id), 0)").
		Scan(&maxID).Error; err != nil {
		return 0, err
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&guildCounterModel{GuildID: guildID, LastID: maxID}).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&guildCounterModel{}).
		Where("guild_id = ?", guildID).
		Update("last_id", gorm.Expr("last_id + 1")).Error; err != nil {
		return 0, err
	}
	var c guildCounterModel
	if err := tx.Where("guild_id = ?", guildID).First(&c).Error; err != nil {
		return 0, err
	}
	return c.LastID, nil
}

// Create assigns the next per-guild id and inserts the booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	var lastErr error
	for attempt := 0; attempt < insertAttempts; attempt++ {
		m := toBookingModel(b)
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			id, err := nextID(tx, b.GuildID)
			if err != nil {
				return err
			}
			m.ID = id
			return tx.Create(&m).Error
		})
		if err == nil {
			*b = *toDomainBooking(m)
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("allocate booking id: %w", lastErr)
}

func (r *BookingRepository) GetByID(ctx context.Context, guildID string, id int64) (*domain.Booking, error) {
	var m bookingModel
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND booking_id = ?", guildID, id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toDomainBooking(m), nil
}

func toDomainBookings(rows []bookingModel) []domain.Booking {
	out := make([]domain.Booking, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainBooking(m))
	}
	return out
}

// List returns the guild's bookings ordered by meetup. No statuses means all.
func (r *BookingRepository) List(ctx context.Context, guildID string, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	q := r.db.WithContext(ctx).Where("guild_id = ?", guildID)
	if len(statuses) > 0 {
		names := make([]string, 0, len(statuses))
		for _, st := range statuses {
			names = append(names, string(st))
		}
		q = q.Where("status IN ?", names)
	}
	var rows []bookingModel
	if err := q.Order("meetup_at ASC, booking_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

// ListBlocking returns bookings that may block a new slot.
func (r *BookingRepository) ListBlocking(ctx context.Context, guildID string) ([]domain.Booking, error) {
	return r.List(ctx, guildID, []domain.BookingStatus{
		domain.StatusRequested, domain.StatusReview, domain.StatusAccepted,
	})
}

// ListAcceptedMaterialized returns accepted bookings across guilds that own a
// channel and whose meetup lies within [from, to).
func (r *BookingRepository) ListAcceptedMaterialized(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	var rows []bookingModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND channel_id IS NOT NULL AND channel_id <> ''", string(domain.StatusAccepted)).
		Where("meetup_at >= ? AND meetup_at < ?", from.UTC(), to.UTC()).
		Order("guild_id ASC, booking_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

// ListForResync returns bookings across guilds whose meetup is at or after cutoff.
func (r *BookingRepository) ListForResync(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	var rows []bookingModel
	err := r.db.WithContext(ctx).
		Where("meetup_at >= ?", cutoff.UTC()).
		Order("guild_id ASC, booking_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

func (r *BookingRepository) ListByChannelIDs(ctx context.Context, guildID string, channelIDs []string) ([]domain.Booking, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}
	var rows []bookingModel
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND channel_id IN ?", guildID, channelIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

func (r *BookingRepository) updateColumns(ctx context.Context, guildID string, id int64, updates map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("guild_id = ? AND booking_id = ?", guildID, id).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus writes the lifecycle columns only.
func (r *BookingRepository) UpdateStatus(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	history, err := encodeHistory(b.History)
	if err != nil {
		return err
	}
	return r.updateColumns(ctx, b.GuildID, b.ID, map[string]any{
		"status":                m.Status,
		"status_history":        history,
		"decline_reason":        m.DeclineReason,
		"decline_reason_source": m.DeclineReasonSource,
		"updated_at":            m.UpdatedAt,
	})
}

// UpdateFields writes the descriptive columns and recomputed instants.
func (r *BookingRepository) UpdateFields(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	return r.updateColumns(ctx, b.GuildID, b.ID, map[string]any{
		"organization":    m.Organization,
		"event_date":      m.EventDate,
		"meetup_time":     m.MeetupTime,
		"departure_time":  m.DepartureTime,
		"timezone":        m.Timezone,
		"server":          m.Server,
		"start_location":  m.StartLocation,
		"destination":     m.Destination,
		"required_addons": m.RequiredAddons,
		"event_link":      m.EventLink,
		"notes":           m.Notes,
		"internal_notes":  m.InternalNotes,
		"real_ops":        m.RealOps,
		"meetup_at":       m.MeetupAt,
		"departure_at":    m.DepartureAt,
		"updated_at":      m.UpdatedAt,
	})
}

// SetChannelRefs records the external channel and its category.
func (r *BookingRepository) SetChannelRefs(ctx context.Context, guildID string, id int64, channelID, categoryID string) error {
	return r.updateColumns(ctx, guildID, id, map[string]any{
		"channel_id":  nullable(channelID),
		"category_id": nullable(categoryID),
	})
}

func (r *BookingRepository) SetSummaryMessage(ctx context.Context, guildID string, id int64, messageID string) error {
	return r.updateColumns(ctx, guildID, id, map[string]any{
		"summary_message_id": nullable(messageID),
	})
}

// MarkNotificationSent flips the one-time flag for kind. Only the call whose
// conditional update matched a row gets true.
func (r *BookingRepository) MarkNotificationSent(ctx context.Context, guildID string, id int64, kind domain.NotificationKind, actor string, at time.Time) (bool, error) {
	q := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("guild_id = ? AND booking_id = ?", guildID, id)

	var tx *gorm.DB
	switch kind {
	case domain.NoticeAcceptance:
		tx = q.Where("acceptance_sent_at IS NULL").Updates(map[string]any{
			"acceptance_sent_at": at.UTC(),
			"acceptance_sent_by": nullable(actor),
		})
	case domain.NoticeTranscript:
		tx = q.Where("transcript_sent_at IS NULL").Update("transcript_sent_at", at.UTC())
	default:
		return false, fmt.Errorf("unknown notification kind %q", kind)
	}
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected == 1 {
		return true, nil
	}

	var cnt int64
	if err := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("guild_id = ? AND booking_id = ?", guildID, id).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	if cnt == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// Delete removes the booking together with its reminder log.
func (r *BookingRepository) Delete(ctx context.Context, guildID string, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("guild_id = ? AND booking_id = ?", guildID, id).Delete(&bookingModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("guild_id = ? AND booking_id = ?", guildID, id).Delete(&reminderLogModel{}).Error
	})
}
