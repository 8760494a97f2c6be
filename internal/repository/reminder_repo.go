package repository

import (
	"context"
	"time"

	"convoydesk/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

type reminderLogModel struct {
	GuildID       string    `gorm:"column:guild_id;primaryKey;size:32"`
	BookingID     int64     `gorm:"column:booking_id;primaryKey"`
	OffsetMinutes int       `gorm:"column:offset_minutes;primaryKey"`
	FiredAt       time.Time `gorm:"column:fired_at;not null"`
}

func (reminderLogModel) TableName() string { return "reminder_logs" }

// TryLog inserts the marker for (booking, offset). It reports false when the
// marker already existed, so at most one caller ever wins a pair.
func (r *ReminderRepository) TryLog(ctx context.Context, e domain.ReminderLog) (bool, error) {
	m := reminderLogModel{
		GuildID:       e.GuildID,
		BookingID:     e.BookingID,
		OffsetMinutes: e.OffsetMinutes,
		FiredAt:       e.FiredAt.UTC(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseLog drops a marker whose send failed so a later tick can retry.
func (r *ReminderRepository) ReleaseLog(ctx context.Context, guildID string, bookingID int64, offset int) error {
	return r.db.WithContext(ctx).
		Where("guild_id = ? AND booking_id = ? AND offset_minutes = ?", guildID, bookingID, offset).
		Delete(&reminderLogModel{}).Error
}

func (r *ReminderRepository) ListForBooking(ctx context.Context, guildID string, bookingID int64) ([]domain.ReminderLog, error) {
	var rows []reminderLogModel
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND booking_id = ?", guildID, bookingID).
		Order("offset_minutes DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ReminderLog, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.ReminderLog{
			GuildID:       m.GuildID,
			BookingID:     m.BookingID,
			OffsetMinutes: m.OffsetMinutes,
			FiredAt:       m.FiredAt.UTC(),
		})
	}
	return out, nil
}

// DeleteOlderThan drops markers fired more than maxAge ago.
func (r *ReminderRepository) DeleteOlderThan(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("fired_at < ?", now.Add(-maxAge).UTC()).Delete(&reminderLogModel{})
	return res.RowsAffected, res.Error
}
