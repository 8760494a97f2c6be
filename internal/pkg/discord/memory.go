package discord

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"convoydesk/internal/domain/reconcile"
)

// Memory is an in-process guild used when no bot token is configured. Every
// call is logged so local runs show what would reach the chat platform.
type Memory struct {
	mu       sync.Mutex
	seq      int
	channels map[string]*reconcile.Channel
	perms    map[string][]reconcile.Overwrite
	messages map[string][]*reconcile.Posted
}

func NewMemory() *Memory {
	return &Memory{
		channels: map[string]*reconcile.Channel{},
		perms:    map[string][]reconcile.Overwrite{},
		messages: map[string][]*reconcile.Posted{},
	}
}

const memorySelfID = "memory-bot"

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

func (m *Memory) channel(id string) (*reconcile.Channel, error) {
	c, ok := m.channels[id]
	if !ok {
		return nil, fmt.Errorf("unknown channel %s", id)
	}
	return c, nil
}

func (m *Memory) SelfID() string { return memorySelfID }

func (m *Memory) GuildChannels(ctx context.Context, guildID string) ([]reconcile.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]reconcile.Channel, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Channel(ctx context.Context, channelID string) (reconcile.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.channel(channelID)
	if err != nil {
		return reconcile.Channel{}, err
	}
	return *c, nil
}

func (m *Memory) CreateChannel(ctx context.Context, guildID string, spec reconcile.ChannelSpec) (reconcile.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &reconcile.Channel{
		ID:       m.nextID("ch"),
		Name:     spec.Name,
		Kind:     spec.Kind,
		ParentID: spec.ParentID,
		Position: len(m.channels),
	}
	m.channels[c.ID] = c
	m.perms[c.ID] = spec.Overwrites
	log.Printf("memory_gateway create guild=%s channel=%s name=%s parent=%s", guildID, c.ID, c.Name, c.ParentID)
	return *c, nil
}

func (m *Memory) MoveChannel(ctx context.Context, channelID, parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.channel(channelID)
	if err != nil {
		return err
	}
	c.ParentID = parentID
	return nil
}

func (m *Memory) RenameChannel(ctx context.Context, channelID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.channel(channelID)
	if err != nil {
		return err
	}
	log.Printf("memory_gateway rename channel=%s name=%s", channelID, name)
	c.Name = name
	return nil
}

func (m *Memory) SetOverwrites(ctx context.Context, channelID string, overwrites []reconcile.Overwrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.channel(channelID); err != nil {
		return err
	}
	m.perms[channelID] = overwrites
	return nil
}

func (m *Memory) Reorder(ctx context.Context, guildID string, positions []reconcile.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range positions {
		c, err := m.channel(p.ChannelID)
		if err != nil {
			return err
		}
		c.Position = p.Position
	}
	return nil
}

func (m *Memory) DeleteChannel(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.channel(channelID); err != nil {
		return err
	}
	delete(m.channels, channelID)
	delete(m.perms, channelID)
	delete(m.messages, channelID)
	log.Printf("memory_gateway delete channel=%s", channelID)
	return nil
}

func (m *Memory) Send(ctx context.Context, channelID string, msg reconcile.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.channel(channelID); err != nil {
		return "", err
	}
	p := &reconcile.Posted{
		ID:         m.nextID("msg"),
		AuthorID:   memorySelfID,
		AuthorName: "convoydesk",
		Content:    msg.Content,
		Embeds:     msg.Embeds,
		Timestamp:  time.Now().UTC(),
	}
	m.messages[channelID] = append(m.messages[channelID], p)
	log.Printf("memory_gateway send channel=%s message=%s embeds=%d", channelID, p.ID, len(msg.Embeds))
	return p.ID, nil
}

func (m *Memory) Edit(ctx context.Context, channelID, messageID string, msg reconcile.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.messages[channelID] {
		if p.ID == messageID {
			p.Content = msg.Content
			p.Embeds = msg.Embeds
			return nil
		}
	}
	return fmt.Errorf("unknown message %s", messageID)
}

func (m *Memory) Pin(ctx context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.messages[channelID] {
		if p.ID == messageID {
			p.Pinned = true
			return nil
		}
	}
	return fmt.Errorf("unknown message %s", messageID)
}

func (m *Memory) Pinned(ctx context.Context, channelID string) ([]reconcile.Posted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reconcile.Posted
	for _, p := range m.messages[channelID] {
		if p.Pinned {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *Memory) Recent(ctx context.Context, channelID string, limit int) ([]reconcile.Posted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[channelID]
	out := make([]reconcile.Posted, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *msgs[i])
	}
	return out, nil
}

// Messages returns a copy of a channel's history, oldest first.
func (m *Memory) Messages(channelID string) []reconcile.Posted {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]reconcile.Posted, 0, len(m.messages[channelID]))
	for _, p := range m.messages[channelID] {
		out = append(out, *p)
	}
	return out
}

// Lookup returns a channel by id.
func (m *Memory) Lookup(channelID string) (reconcile.Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.channels[channelID]
	if !ok {
		return reconcile.Channel{}, false
	}
	return *c, true
}
