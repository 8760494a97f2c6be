package guildconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"convoydesk/internal/domain"
	"convoydesk/internal/repository"
)

type Store interface {
	GetRaw(ctx context.Context, guildID string) ([]byte, int, error)
	SaveRaw(ctx context.Context, guildID string, version int, doc []byte) error
	CreateRawIfAbsent(ctx context.Context, guildID string, version int, doc []byte) (bool, error)
}

type Service struct {
	store    Store
	defaults Defaults
}

func NewService(store Store, defaults Defaults) *Service {
	return &Service{store: store, defaults: defaults}
}

// Get returns the guild's configuration, creating it with defaults on first
// access and upgrading older documents in place.
func (s *Service) Get(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	raw, version, err := s.store.GetRaw(ctx, guildID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.create(ctx, guildID)
	}
	if err != nil {
		return nil, err
	}

	cfg, changed, err := Migrate(guildID, raw, version, s.defaults)
	if err != nil {
		return nil, fmt.Errorf("guild %s: %w", guildID, err)
	}
	if changed {
		if err := s.save(ctx, cfg); err != nil {
			return nil, err
		}
		log.Printf("guild_config_migrated guild=%s from_version=%d to_version=%d", guildID, version, cfg.SchemaVersion)
	}
	return cfg, nil
}

func (s *Service) create(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	cfg, _, err := Migrate(guildID, nil, domain.GuildConfigVersion, s.defaults)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateRawIfAbsent(ctx, guildID, cfg.SchemaVersion, doc)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.Get(ctx, guildID)
	}
	log.Printf("guild_config_created guild=%s", guildID)
	return cfg, nil
}

func (s *Service) save(ctx context.Context, cfg *domain.GuildConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.store.SaveRaw(ctx, cfg.GuildID, cfg.SchemaVersion, doc)
}

// UpdateInput is a partial update; nil fields are left as they are.
type UpdateInput struct {
	DefaultDurationMinutes *int                              `json:"default_duration_minutes"`
	BufferMinutes          *int                              `json:"buffer_minutes"`
	ReviewMode             *bool                             `json:"review_mode"`
	BlockOnPending         *bool                             `json:"block_on_pending"`
	CategoryPrefix         *string                           `json:"category_prefix"`
	StaffRoleID            *string                           `json:"staff_role_id"`
	StageRoles             map[domain.BookingStatus][]string `json:"stage_roles"`
	RemindersEnabled       *bool                             `json:"reminders_enabled"`
	ReminderOffsets        []int                             `json:"reminder_offsets"`
	TranscriptChannelID    *string                           `json:"transcript_channel_id"`
	PanelMessageID         *string                           `json:"panel_message_id"`
}

func (s *Service) Update(ctx context.Context, guildID string, in UpdateInput) (*domain.GuildConfig, error) {
	cfg, err := s.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if in.DefaultDurationMinutes != nil {
		cfg.DefaultDurationMinutes = *in.DefaultDurationMinutes
	}
	if in.BufferMinutes != nil {
		cfg.BufferMinutes = *in.BufferMinutes
	}
	if in.ReviewMode != nil {
		cfg.ReviewMode = *in.ReviewMode
	}
	if in.BlockOnPending != nil {
		cfg.BlockOnPending = *in.BlockOnPending
	}
	if in.CategoryPrefix != nil {
		cfg.CategoryPrefix = strings.TrimSpace(*in.CategoryPrefix)
	}
	if in.StaffRoleID != nil {
		cfg.StaffRoleID = strings.TrimSpace(*in.StaffRoleID)
	}
	if in.StageRoles != nil {
		for st := range in.StageRoles {
			if !st.Valid() {
				return nil, fmt.Errorf("%w: stage_roles has unknown status %q", ErrValidation, st)
			}
		}
		cfg.StageRoles = in.StageRoles
	}
	if in.RemindersEnabled != nil {
		cfg.RemindersEnabled = *in.RemindersEnabled
	}
	if in.ReminderOffsets != nil {
		for _, v := range in.ReminderOffsets {
			if v <= 0 {
				return nil, fmt.Errorf("%w: reminder offsets must be positive", ErrValidation)
			}
			if v > domain.MaxReminderOffsetMinutes {
				return nil, fmt.Errorf("%w: reminder offsets must be at most %d minutes", ErrValidation, domain.MaxReminderOffsetMinutes)
			}
		}
		cfg.ReminderOffsets = NormalizeOffsets(in.ReminderOffsets)
	}
	if in.TranscriptChannelID != nil {
		cfg.TranscriptChannelID = strings.TrimSpace(*in.TranscriptChannelID)
	}
	if in.PanelMessageID != nil {
		cfg.PanelMessageID = strings.TrimSpace(*in.PanelMessageID)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	if err := s.save(ctx, cfg); err != nil {
		return nil, err
	}
	log.Printf("guild_config_updated guild=%s review_mode=%t buffer=%d duration=%d", guildID, cfg.ReviewMode, cfg.BufferMinutes, cfg.DefaultDurationMinutes)
	return cfg, nil
}
