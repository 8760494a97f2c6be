package repository

import (
	"context"
	"errors"
	"time"

	"convoydesk/internal/domain"

	"gorm.io/gorm"
)

type ClosureRepository struct {
	db *gorm.DB
}

func NewClosureRepository(db *gorm.DB) *ClosureRepository {
	return &ClosureRepository{db: db}
}

type closureModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	GuildID   string    `gorm:"column:guild_id;size:32;not null;index:idx_closures_guild_start,priority:1"`
	StartAt   time.Time `gorm:"column:start_at;not null;index:idx_closures_guild_start,priority:2"`
	EndAt     time.Time `gorm:"column:end_at;not null"`
	Reason    string    `gorm:"column:reason;size:250;not null"`
	CreatedBy *string   `gorm:"column:created_by"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (closureModel) TableName() string { return "closures" }

func toDomainClosure(m closureModel) domain.Closure {
	return domain.Closure{
		ID:        m.ID,
		GuildID:   m.GuildID,
		StartAt:   m.StartAt.UTC(),
		EndAt:     m.EndAt.UTC(),
		Reason:    m.Reason,
		CreatedBy: deref(m.CreatedBy),
		CreatedAt: m.CreatedAt,
	}
}

func (r *ClosureRepository) Create(ctx context.Context, c *domain.Closure) error {
	m := closureModel{
		GuildID:   c.GuildID,
		StartAt:   c.StartAt.UTC(),
		EndAt:     c.EndAt.UTC(),
		Reason:    c.Reason,
		CreatedBy: nullable(c.CreatedBy),
		CreatedAt: c.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	*c = toDomainClosure(m)
	return nil
}

// ListByGuild returns closures ordered by start, then id.
func (r *ClosureRepository) ListByGuild(ctx context.Context, guildID string) ([]domain.Closure, error) {
	var rows []closureModel
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("start_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Closure, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainClosure(m))
	}
	return out, nil
}

func (r *ClosureRepository) GetByID(ctx context.Context, guildID string, id int64) (*domain.Closure, error) {
	var m closureModel
	err := r.db.WithContext(ctx).Where("guild_id = ? AND id = ?", guildID, id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c := toDomainClosure(m)
	return &c, nil
}

func (r *ClosureRepository) Delete(ctx context.Context, guildID string, id int64) error {
	res := r.db.WithContext(ctx).Where("guild_id = ? AND id = ?", guildID, id).Delete(&closureModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
