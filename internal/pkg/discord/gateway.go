// Package discord drives booking channels through the Discord REST API.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"convoydesk/internal/domain/reconcile"

	"github.com/bwmarrin/discordgo"
)

// pageSize is the largest page the message history endpoint returns.
const pageSize = 100

// Gateway implements reconcile.Gateway on a bot session. It only uses REST
// calls, so the session never needs to open a websocket.
type Gateway struct {
	s      *discordgo.Session
	selfID string
}

// New creates a bot session and resolves the bot's own user id.
func New(ctx context.Context, token string) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	me, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord whoami: %w", err)
	}
	return &Gateway{s: s, selfID: me.ID}, nil
}

func (g *Gateway) SelfID() string { return g.selfID }

func (g *Gateway) GuildChannels(ctx context.Context, guildID string) ([]reconcile.Channel, error) {
	chans, err := g.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.Channel, 0, len(chans))
	for _, c := range chans {
		if c.Type != discordgo.ChannelTypeGuildText && c.Type != discordgo.ChannelTypeGuildCategory {
			continue
		}
		out = append(out, fromChannel(c))
	}
	return out, nil
}

func (g *Gateway) Channel(ctx context.Context, channelID string) (reconcile.Channel, error) {
	c, err := g.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return reconcile.Channel{}, err
	}
	return fromChannel(c), nil
}

func (g *Gateway) CreateChannel(ctx context.Context, guildID string, spec reconcile.ChannelSpec) (reconcile.Channel, error) {
	data := discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 channelType(spec.Kind),
		ParentID:             spec.ParentID,
		PermissionOverwrites: toOverwrites(spec.Overwrites),
	}
	c, err := g.s.GuildChannelCreateComplex(guildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return reconcile.Channel{}, err
	}
	return fromChannel(c), nil
}

func (g *Gateway) MoveChannel(ctx context.Context, channelID, parentID string) error {
	_, err := g.s.ChannelEdit(channelID, &discordgo.ChannelEdit{ParentID: parentID}, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) RenameChannel(ctx context.Context, channelID, name string) error {
	_, err := g.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) SetOverwrites(ctx context.Context, channelID string, overwrites []reconcile.Overwrite) error {
	edit := &discordgo.ChannelEdit{PermissionOverwrites: toOverwrites(overwrites)}
	_, err := g.s.ChannelEdit(channelID, edit, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) Reorder(ctx context.Context, guildID string, positions []reconcile.Position) error {
	if len(positions) == 0 {
		return nil
	}
	chans := make([]*discordgo.Channel, 0, len(positions))
	for _, p := range positions {
		chans = append(chans, &discordgo.Channel{ID: p.ChannelID, Position: p.Position})
	}
	return g.s.GuildChannelsReorder(guildID, chans, discordgo.WithContext(ctx))
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := g.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) Send(ctx context.Context, channelID string, msg reconcile.Message) (string, error) {
	m, err := g.s.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (g *Gateway) Edit(ctx context.Context, channelID, messageID string, msg reconcile.Message) error {
	edit := discordgo.NewMessageEdit(channelID, messageID).
		SetContent(msg.Content).
		SetEmbeds(toEmbeds(msg.Embeds))
	_, err := g.s.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) Pin(ctx context.Context, channelID, messageID string) error {
	return g.s.ChannelMessagePin(channelID, messageID, discordgo.WithContext(ctx))
}

func (g *Gateway) Pinned(ctx context.Context, channelID string) ([]reconcile.Posted, error) {
	msgs, err := g.s.ChannelMessagesPinned(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return fromMessages(msgs), nil
}

// Recent pages backwards through history until limit messages are read or
// the channel start is reached.
func (g *Gateway) Recent(ctx context.Context, channelID string, limit int) ([]reconcile.Posted, error) {
	var out []reconcile.Posted
	before := ""
	for len(out) < limit {
		n := limit - len(out)
		if n > pageSize {
			n = pageSize
		}
		msgs, err := g.s.ChannelMessages(channelID, n, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		out = append(out, fromMessages(msgs)...)
		if len(msgs) < n {
			break
		}
		before = msgs[len(msgs)-1].ID
	}
	return out, nil
}

func channelType(k reconcile.ChannelKind) discordgo.ChannelType {
	if k == reconcile.KindCategory {
		return discordgo.ChannelTypeGuildCategory
	}
	return discordgo.ChannelTypeGuildText
}

func fromChannel(c *discordgo.Channel) reconcile.Channel {
	kind := reconcile.KindText
	if c.Type == discordgo.ChannelTypeGuildCategory {
		kind = reconcile.KindCategory
	}
	return reconcile.Channel{
		ID:       c.ID,
		Name:     c.Name,
		Kind:     kind,
		ParentID: c.ParentID,
		Position: c.Position,
	}
}

func toOverwrites(in []reconcile.Overwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(in))
	for _, o := range in {
		t := discordgo.PermissionOverwriteTypeRole
		if o.Type == reconcile.OverwriteMember {
			t = discordgo.PermissionOverwriteTypeMember
		}
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    o.ID,
			Type:  t,
			Allow: int64(o.Allow),
			Deny:  int64(o.Deny),
		})
	}
	return out
}

func toEmbeds(in []reconcile.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(in))
	for _, e := range in {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		if e.ImageURL != "" {
			me.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
		}
		if !e.Timestamp.IsZero() {
			me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
		}
		out = append(out, me)
	}
	return out
}

func toMessageSend(msg reconcile.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  toEmbeds(msg.Embeds),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Users: msg.MentionUsers,
		},
	}
	if msg.File != nil {
		send.Files = []*discordgo.File{{
			Name:        msg.File.Name,
			ContentType: msg.File.ContentType,
			Reader:      bytes.NewReader(msg.File.Data),
		}}
	}
	return send
}

func fromEmbeds(in []*discordgo.MessageEmbed) []reconcile.Embed {
	out := make([]reconcile.Embed, 0, len(in))
	for _, me := range in {
		e := reconcile.Embed{
			Title:       me.Title,
			Description: me.Description,
			Color:       me.Color,
		}
		for _, f := range me.Fields {
			e.Fields = append(e.Fields, reconcile.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if me.Footer != nil {
			e.Footer = me.Footer.Text
		}
		if me.Image != nil {
			e.ImageURL = me.Image.URL
		}
		if ts, err := time.Parse(time.RFC3339, me.Timestamp); err == nil {
			e.Timestamp = ts
		}
		out = append(out, e)
	}
	return out
}

func fromMessages(msgs []*discordgo.Message) []reconcile.Posted {
	out := make([]reconcile.Posted, 0, len(msgs))
	for _, m := range msgs {
		p := reconcile.Posted{
			ID:        m.ID,
			Content:   m.Content,
			Embeds:    fromEmbeds(m.Embeds),
			Pinned:    m.Pinned,
			Timestamp: m.Timestamp,
		}
		if m.Author != nil {
			p.AuthorID = m.Author.ID
			p.AuthorName = m.Author.Username
		}
		out = append(out, p)
	}
	return out
}
