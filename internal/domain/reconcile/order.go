package reconcile

import (
	"context"
	"log"
	"sort"

	"convoydesk/internal/domain"
)

// category finds the month category by name and creates it when missing.
func (e *Engine) category(ctx context.Context, b *domain.Booking, cfg *domain.GuildConfig) (Channel, error) {
	name := CategoryName(cfg.CategoryPrefix, b.EventDate)
	chans, err := e.gw.GuildChannels(ctx, b.GuildID)
	if err != nil {
		return Channel{}, err
	}
	for _, c := range chans {
		if c.Kind == KindCategory && c.Name == name {
			return c, nil
		}
	}
	return e.gw.CreateChannel(ctx, b.GuildID, ChannelSpec{Name: name, Kind: KindCategory})
}

// reorder sorts channels inside categoryID by event time and creation, then
// places our month categories after every other category in key order.
func (e *Engine) reorder(ctx context.Context, b *domain.Booking, cfg *domain.GuildConfig, categoryID string) {
	chans, err := e.gw.GuildChannels(ctx, b.GuildID)
	if err != nil {
		_ = fail("reorder_list", b, err)
		return
	}

	moves := e.channelOrder(ctx, b.GuildID, chans, categoryID)
	moves = append(moves, CategoryOrder(chans, cfg.CategoryPrefix)...)
	if len(moves) == 0 {
		return
	}
	if err := e.gw.Reorder(ctx, b.GuildID, moves); err != nil {
		_ = fail("reorder", b, err)
	}
}

func (e *Engine) channelOrder(ctx context.Context, guildID string, chans []Channel, categoryID string) []Position {
	if categoryID == "" {
		return nil
	}
	var inside []Channel
	var ids []string
	for _, c := range chans {
		if c.Kind == KindText && c.ParentID == categoryID {
			inside = append(inside, c)
			ids = append(ids, c.ID)
		}
	}
	if len(inside) < 2 {
		return nil
	}
	bookings, err := e.store.ListByChannelIDs(ctx, guildID, ids)
	if err != nil {
		log.Printf("reconcile step=reorder_bookings guild=%s err=%v", guildID, err)
		return nil
	}
	return ChannelOrder(inside, bookings)
}

// ChannelOrder returns the moves that sort channels by (event date, meetup
// time, creation). Channels without a booking keep their relative order
// after the booked ones.
func ChannelOrder(chans []Channel, bookings []domain.Booking) []Position {
	byChannel := make(map[string]*domain.Booking, len(bookings))
	for i := range bookings {
		byChannel[bookings[i].ChannelID] = &bookings[i]
	}

	sorted := make([]Channel, len(chans))
	copy(sorted, chans)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := byChannel[sorted[i].ID], byChannel[sorted[j].ID]
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a == nil && b == nil:
			return sorted[i].Position < sorted[j].Position
		}
		ka, kb := a.EventDate+" "+a.MeetupTime, b.EventDate+" "+b.MeetupTime
		if ka != kb {
			return ka < kb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return changed(sorted, 0)
}

// CategoryOrder places month categories, sorted by key, after the highest
// positioned foreign category.
func CategoryOrder(chans []Channel, prefix string) []Position {
	type keyed struct {
		Channel
		key string
	}
	var ours []keyed
	base := -1
	for _, c := range chans {
		if c.Kind != KindCategory {
			continue
		}
		if key, ok := categoryKey(prefix, c.Name); ok {
			ours = append(ours, keyed{c, key})
			continue
		}
		if c.Position > base {
			base = c.Position
		}
	}
	sort.SliceStable(ours, func(i, j int) bool { return ours[i].key < ours[j].key })

	list := make([]Channel, len(ours))
	for i, k := range ours {
		list[i] = k.Channel
	}
	return changed(list, base+1)
}

func changed(list []Channel, start int) []Position {
	var out []Position
	for i, c := range list {
		if c.Position != start+i {
			out = append(out, Position{ChannelID: c.ID, Position: start + i})
		}
	}
	return out
}
