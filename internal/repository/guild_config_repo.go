package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuildConfigRepository stores each guild's configuration as a versioned JSON document.
type GuildConfigRepository struct {
	db *gorm.DB
}

func NewGuildConfigRepository(db *gorm.DB) *GuildConfigRepository {
	return &GuildConfigRepository{db: db}
}

type guildConfigModel struct {
	GuildID       string    `gorm:"column:guild_id;primaryKey;size:32"`
	SchemaVersion int       `gorm:"column:schema_version;not null"`
	Document      string    `gorm:"column:document;type:text;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (guildConfigModel) TableName() string { return "guild_configs" }

// GetRaw returns the stored document and the version it was written with.
// A guild without a document is the normal first-use path, so the miss is
// reported as ErrNotFound without going through gorm's not-found logging.
func (r *GuildConfigRepository) GetRaw(ctx context.Context, guildID string) ([]byte, int, error) {
	var m guildConfigModel
	res := r.db.WithContext(ctx).Where("guild_id = ?", guildID).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, 0, ErrNotFound
	}
	return []byte(m.Document), m.SchemaVersion, nil
}

// SaveRaw upserts the document for a guild.
func (r *GuildConfigRepository) SaveRaw(ctx context.Context, guildID string, version int, doc []byte) error {
	m := guildConfigModel{
		GuildID:       guildID,
		SchemaVersion: version,
		Document:      string(doc),
		UpdatedAt:     time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "document", "updated_at"}),
	}).Create(&m).Error
}

// CreateRawIfAbsent inserts the document unless another writer got there first.
func (r *GuildConfigRepository) CreateRawIfAbsent(ctx context.Context, guildID string, version int, doc []byte) (bool, error) {
	m := guildConfigModel{
		GuildID:       guildID,
		SchemaVersion: version,
		Document:      string(doc),
		UpdatedAt:     time.Now().UTC(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
