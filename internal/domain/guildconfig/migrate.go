package guildconfig

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"convoydesk/internal/domain"

	"github.com/tidwall/gjson"
)

// Defaults fill fields a stored document does not carry yet.
type Defaults struct {
	DurationMinutes int
	BufferMinutes   int
	CategoryPrefix  string
	ReminderOffsets []int
}

// Migrate turns a stored document of any known schema version into a fully
// typed config. changed reports whether defaults or renames were applied and
// the upgraded document should be written back.
//
// Version 1 documents used camelCase keys and a CSV reminder list.
func Migrate(guildID string, raw []byte, version int, d Defaults) (cfg *domain.GuildConfig, changed bool, err error) {
	if len(raw) > 0 && !gjson.ValidBytes(raw) {
		return nil, false, ErrCorruptDocument
	}
	doc := gjson.ParseBytes(raw)
	changed = version != domain.GuildConfigVersion

	pick := func(key, legacy string) gjson.Result {
		if r := doc.Get(key); r.Exists() && r.Type != gjson.Null {
			return r
		}
		if version < domain.GuildConfigVersion && legacy != "" {
			if r := doc.Get(legacy); r.Exists() && r.Type != gjson.Null {
				return r
			}
		}
		return gjson.Result{}
	}
	nonNegative := func(key, legacy string, def int) int {
		r := pick(key, legacy)
		if !r.Exists() || r.Int() < 0 {
			changed = true
			return def
		}
		return int(r.Int())
	}
	flag := func(key, legacy string, def bool) bool {
		r := pick(key, legacy)
		if !r.Exists() {
			changed = true
			return def
		}
		return r.Bool()
	}
	text := func(key, legacy string) string {
		return strings.TrimSpace(pick(key, legacy).String())
	}

	cfg = &domain.GuildConfig{
		GuildID:                guildID,
		SchemaVersion:          domain.GuildConfigVersion,
		DefaultDurationMinutes: nonNegative("default_duration_minutes", "defaultEventDurationM", d.DurationMinutes),
		BufferMinutes:          nonNegative("buffer_minutes", "bufferTimeM", d.BufferMinutes),
		ReviewMode:             flag("review_mode", "reviewMode", false),
		BlockOnPending:         flag("block_on_pending", "", true),
		RemindersEnabled:       flag("reminders_enabled", "remindersEnabled", true),
		StaffRoleID:            text("staff_role_id", "staffRoleId"),
		TranscriptChannelID:    text("transcript_channel_id", "transcriptChannelId"),
		PanelMessageID:         text("panel_message_id", "panelMessageId"),
	}

	cfg.CategoryPrefix = text("category_prefix", "ticketCategoryPrefix")
	if cfg.CategoryPrefix == "" {
		cfg.CategoryPrefix = d.CategoryPrefix
		changed = true
	}

	offsets := pick("reminder_offsets", "reminderMinutesCsv")
	switch {
	case offsets.IsArray():
		for _, v := range offsets.Array() {
			cfg.ReminderOffsets = append(cfg.ReminderOffsets, int(v.Int()))
		}
	case offsets.Type == gjson.String:
		cfg.ReminderOffsets = ParseOffsets(offsets.String())
		changed = true
	default:
		cfg.ReminderOffsets = append([]int(nil), d.ReminderOffsets...)
		changed = true
	}
	normalized := NormalizeOffsets(cfg.ReminderOffsets)
	if len(normalized) != len(cfg.ReminderOffsets) {
		changed = true
	}
	cfg.ReminderOffsets = normalized

	if roles := doc.Get("stage_roles"); roles.IsObject() {
		cfg.StageRoles = make(map[domain.BookingStatus][]string)
		roles.ForEach(func(k, v gjson.Result) bool {
			st, perr := domain.ParseBookingStatus(k.String())
			if perr != nil {
				changed = true
				return true
			}
			for _, id := range v.Array() {
				if s := strings.TrimSpace(id.String()); s != "" {
					cfg.StageRoles[st] = append(cfg.StageRoles[st], s)
				}
			}
			return true
		})
	}

	return cfg, changed, nil
}

// ParseOffsets reads a comma separated minute list, skipping junk.
func ParseOffsets(csv string) []int {
	var out []int
	for _, part := range strings.Split(csv, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}

// NormalizeOffsets drops duplicates and values outside
// (0, MaxReminderOffsetMinutes] and orders the rest from furthest to nearest.
func NormalizeOffsets(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if v <= 0 || v > domain.MaxReminderOffsetMinutes || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func validate(cfg *domain.GuildConfig) error {
	if cfg.DefaultDurationMinutes < 0 {
		return fmt.Errorf("%w: default_duration_minutes must be >= 0", ErrValidation)
	}
	if cfg.BufferMinutes < 0 {
		return fmt.Errorf("%w: buffer_minutes must be >= 0", ErrValidation)
	}
	if strings.TrimSpace(cfg.CategoryPrefix) == "" {
		return fmt.Errorf("%w: category_prefix must not be empty", ErrValidation)
	}
	for _, v := range cfg.ReminderOffsets {
		if v <= 0 {
			return fmt.Errorf("%w: reminder offsets must be positive", ErrValidation)
		}
		if v > domain.MaxReminderOffsetMinutes {
			return fmt.Errorf("%w: reminder offsets must be at most %d minutes", ErrValidation, domain.MaxReminderOffsetMinutes)
		}
	}
	return nil
}
