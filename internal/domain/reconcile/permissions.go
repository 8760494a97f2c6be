package reconcile

import "convoydesk/internal/domain"

const (
	requesterOpen = PermView | PermSend | PermReadHistory | PermAttachFiles | PermEmbedLinks
	staffAllow    = PermView | PermSend | PermReadHistory | PermManageChannels
	botAllow      = PermView | PermSend | PermReadHistory | PermManageChannels | PermManageMessages
)

// Overwrites derives the channel access list from the booking status. The
// requester keeps read access in every status; closed statuses revoke send.
func Overwrites(b *domain.Booking, cfg *domain.GuildConfig, botID string) []Overwrite {
	out := []Overwrite{{ID: b.GuildID, Type: OverwriteRole, Deny: PermView}}

	requester := Overwrite{ID: b.RequesterID, Type: OverwriteMember, Allow: requesterOpen}
	if b.Status.Closed() {
		requester.Allow = PermView | PermReadHistory
		requester.Deny = PermSend
	}
	out = append(out, requester)

	if cfg != nil && cfg.StaffRoleID != "" {
		out = append(out, Overwrite{ID: cfg.StaffRoleID, Type: OverwriteRole, Allow: staffAllow})
	}
	if botID != "" {
		out = append(out, Overwrite{ID: botID, Type: OverwriteMember, Allow: botAllow})
	}

	seen := map[string]bool{b.GuildID: true}
	if cfg != nil {
		seen[cfg.StaffRoleID] = true
	}
	for _, role := range cfg.RolesFor(b.Status) {
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, Overwrite{ID: role, Type: OverwriteRole, Allow: PermView})
	}
	return out
}
