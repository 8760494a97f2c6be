package repository

import (
	"context"
	"time"

	"convoydesk/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DraftRepository keeps intake drafts keyed by (guild, user).
type DraftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

type draftModel struct {
	GuildID   string    `gorm:"column:guild_id;primaryKey;size:32"`
	UserID    string    `gorm:"column:user_id;primaryKey;size:32"`
	Payload   []byte    `gorm:"column:payload;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (draftModel) TableName() string { return "intake_drafts" }

func (r *DraftRepository) Save(ctx context.Context, d *domain.Draft) error {
	m := draftModel{
		GuildID:   d.GuildID,
		UserID:    d.UserID,
		Payload:   d.Payload,
		ExpiresAt: d.ExpiresAt.UTC(),
		CreatedAt: d.CreatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "created_at"}),
	}).Create(&m).Error
}

// Get returns the stored draft, expired or not; callers check Expired.
func (r *DraftRepository) Get(ctx context.Context, guildID, userID string) (*domain.Draft, error) {
	var m draftModel
	res := r.db.WithContext(ctx).Where("guild_id = ? AND user_id = ?", guildID, userID).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &domain.Draft{
		GuildID:   m.GuildID,
		UserID:    m.UserID,
		Payload:   m.Payload,
		ExpiresAt: m.ExpiresAt.UTC(),
		CreatedAt: m.CreatedAt,
	}, nil
}

func (r *DraftRepository) Delete(ctx context.Context, guildID, userID string) error {
	return r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Delete(&draftModel{}).Error
}

// DeleteExpired sweeps drafts that expired before now.
func (r *DraftRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&draftModel{})
	return res.RowsAffected, res.Error
}
