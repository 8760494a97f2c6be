package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"convoydesk/internal/domain"
)

var errGateway = errors.New("gateway unavailable")

// fakeGateway is an in-memory chat guild.
type fakeGateway struct {
	mu       sync.Mutex
	seq      int
	channels map[string]*Channel
	perms    map[string][]Overwrite
	messages map[string][]*Posted
	fail     map[string]bool
	calls    map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels: map[string]*Channel{},
		perms:    map[string][]Overwrite{},
		messages: map[string][]*Posted{},
		fail:     map[string]bool{},
		calls:    map[string]int{},
	}
}

func (f *fakeGateway) hit(op string) error {
	f.calls[op]++
	if f.fail[op] {
		return errGateway
	}
	return nil
}

func (f *fakeGateway) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func (f *fakeGateway) SelfID() string { return "bot" }

func (f *fakeGateway) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GuildChannels"); err != nil {
		return nil, err
	}
	out := make([]Channel, 0, len(f.channels))
	for _, c := range f.channels {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeGateway) Channel(ctx context.Context, channelID string) (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Channel"); err != nil {
		return Channel{}, err
	}
	c, ok := f.channels[channelID]
	if !ok {
		return Channel{}, errors.New("unknown channel")
	}
	return *c, nil
}

func (f *fakeGateway) CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := "CreateChannel"
	if spec.Kind == KindCategory {
		op = "CreateCategory"
	}
	if err := f.hit(op); err != nil {
		return Channel{}, err
	}
	c := &Channel{ID: f.nextID("c"), Name: spec.Name, Kind: spec.Kind, ParentID: spec.ParentID, Position: len(f.channels)}
	f.channels[c.ID] = c
	f.perms[c.ID] = spec.Overwrites
	return *c, nil
}

func (f *fakeGateway) addCategory(name string, pos int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("c")
	f.channels[id] = &Channel{ID: id, Name: name, Kind: KindCategory, Position: pos}
	return id
}

func (f *fakeGateway) MoveChannel(ctx context.Context, channelID, parentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("MoveChannel"); err != nil {
		return err
	}
	f.channels[channelID].ParentID = parentID
	return nil
}

func (f *fakeGateway) RenameChannel(ctx context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("RenameChannel"); err != nil {
		return err
	}
	f.channels[channelID].Name = name
	return nil
}

func (f *fakeGateway) SetOverwrites(ctx context.Context, channelID string, overwrites []Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("SetOverwrites"); err != nil {
		return err
	}
	f.perms[channelID] = overwrites
	return nil
}

func (f *fakeGateway) Reorder(ctx context.Context, guildID string, positions []Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Reorder"); err != nil {
		return err
	}
	for _, p := range positions {
		f.channels[p.ChannelID].Position = p.Position
	}
	return nil
}

func (f *fakeGateway) DeleteChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("DeleteChannel"); err != nil {
		return err
	}
	delete(f.channels, channelID)
	delete(f.messages, channelID)
	return nil
}

func (f *fakeGateway) Send(ctx context.Context, channelID string, msg Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Send"); err != nil {
		return "", err
	}
	p := &Posted{
		ID:         f.nextID("m"),
		AuthorID:   "bot",
		AuthorName: "Desk",
		Content:    msg.Content,
		Embeds:     msg.Embeds,
		Timestamp:  time.Date(2026, 1, 1, 0, 0, f.seq, 0, time.UTC),
	}
	f.messages[channelID] = append(f.messages[channelID], p)
	return p.ID, nil
}

func (f *fakeGateway) Edit(ctx context.Context, channelID, messageID string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Edit"); err != nil {
		return err
	}
	for _, p := range f.messages[channelID] {
		if p.ID == messageID {
			p.Content = msg.Content
			p.Embeds = msg.Embeds
			return nil
		}
	}
	return errors.New("unknown message")
}

func (f *fakeGateway) Pin(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Pin"); err != nil {
		return err
	}
	for _, p := range f.messages[channelID] {
		if p.ID == messageID {
			p.Pinned = true
		}
	}
	return nil
}

func (f *fakeGateway) Pinned(ctx context.Context, channelID string) ([]Posted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Pinned"); err != nil {
		return nil, err
	}
	var out []Posted
	for _, p := range f.messages[channelID] {
		if p.Pinned {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeGateway) Recent(ctx context.Context, channelID string, limit int) ([]Posted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Recent"); err != nil {
		return nil, err
	}
	msgs := f.messages[channelID]
	var out []Posted
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *msgs[i])
	}
	return out, nil
}

func (f *fakeGateway) sent(channelID string) []*Posted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[channelID]
}

func (f *fakeGateway) summaries(channelID string, id int64) int {
	n := 0
	for _, p := range f.sent(channelID) {
		for _, e := range p.Embeds {
			if e.Footer == footer(id) {
				n++
			}
		}
	}
	return n
}

// memStore records channel references and one-time flags.
type memStore struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
	flags    map[string]bool
	failRefs bool
}

func newMemStore(bs ...*domain.Booking) *memStore {
	s := &memStore{bookings: map[string]*domain.Booking{}, flags: map[string]bool{}}
	for _, b := range bs {
		s.bookings[b.Key()] = b
	}
	return s
}

func (s *memStore) GetByID(ctx context.Context, guildID string, id int64) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[domain.BookingKey(guildID, id)]
	if !ok {
		return nil, errors.New("booking not found")
	}
	c := *b
	return &c, nil
}

func (s *memStore) SetChannelRefs(ctx context.Context, guildID string, id int64, channelID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRefs {
		return errors.New("database is locked")
	}
	if b, ok := s.bookings[domain.BookingKey(guildID, id)]; ok {
		b.ChannelID, b.CategoryID = channelID, categoryID
	}
	return nil
}

func (s *memStore) SetSummaryMessage(ctx context.Context, guildID string, id int64, messageID string) error {
	return nil
}

func (s *memStore) ListByChannelIDs(ctx context.Context, guildID string, ids []string) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.GuildID == guildID && want[b.ChannelID] {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memStore) MarkNotificationSent(ctx context.Context, guildID string, id int64, kind domain.NotificationKind, actor string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := domain.BookingKey(guildID, id) + "/" + string(kind)
	if s.flags[k] {
		return false, nil
	}
	s.flags[k] = true
	return true, nil
}

type staticConfigs struct {
	cfg *domain.GuildConfig
}

func (s staticConfigs) Get(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	c := *s.cfg
	c.GuildID = guildID
	return &c, nil
}
