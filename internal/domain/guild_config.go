package domain

// GuildConfigVersion is the schema version written by this build.
const GuildConfigVersion = 2

type GuildConfig struct {
	GuildID       string `json:"guild_id"`
	SchemaVersion int    `json:"schema_version"`

	DefaultDurationMinutes int  `json:"default_duration_minutes"`
	BufferMinutes          int  `json:"buffer_minutes"`
	ReviewMode             bool `json:"review_mode"`
	BlockOnPending         bool `json:"block_on_pending"`

	CategoryPrefix string `json:"category_prefix"`
	StaffRoleID    string `json:"staff_role_id,omitempty"`
	// StageRoles grants channel visibility to extra roles per status.
	StageRoles map[BookingStatus][]string `json:"stage_roles,omitempty"`

	RemindersEnabled bool  `json:"reminders_enabled"`
	ReminderOffsets  []int `json:"reminder_offsets"`

	TranscriptChannelID string `json:"transcript_channel_id,omitempty"`
	PanelMessageID      string `json:"panel_message_id,omitempty"`
}

func (c *GuildConfig) RolesFor(s BookingStatus) []string {
	if c == nil || c.StageRoles == nil {
		return nil
	}
	return c.StageRoles[s]
}
