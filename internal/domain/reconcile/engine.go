// Package reconcile keeps the chat platform's view of a booking (category,
// channel, permissions, pinned summary and one-time notices) converged with
// the stored booking.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"convoydesk/internal/domain"
	"convoydesk/internal/pkg/keylock"
)

const (
	recentScanLimit = 25
	transcriptLimit = 500
)

type Store interface {
	GetByID(ctx context.Context, guildID string, id int64) (*domain.Booking, error)
	SetChannelRefs(ctx context.Context, guildID string, id int64, channelID, categoryID string) error
	SetSummaryMessage(ctx context.Context, guildID string, id int64, messageID string) error
	ListByChannelIDs(ctx context.Context, guildID string, channelIDs []string) ([]domain.Booking, error)
}

// Notices flips the one-time notification flags.
type Notices interface {
	MarkNotificationSent(ctx context.Context, guildID string, id int64, kind domain.NotificationKind, actor string) (bool, error)
}

type ConfigProvider interface {
	Get(ctx context.Context, guildID string) (*domain.GuildConfig, error)
}

type Refs struct {
	ChannelID        string `json:"channel_id"`
	CategoryID       string `json:"category_id"`
	SummaryMessageID string `json:"summary_message_id,omitempty"`
}

type Engine struct {
	gw      Gateway
	store   Store
	notices Notices
	configs ConfigProvider

	locks *keylock.Map
	now   func() time.Time
}

func NewEngine(gw Gateway, store Store, notices Notices, configs ConfigProvider) *Engine {
	return &Engine{
		gw:      gw,
		store:   store,
		notices: notices,
		configs: configs,
		locks:   keylock.New(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func refsOf(b *domain.Booking) Refs {
	return Refs{ChannelID: b.ChannelID, CategoryID: b.CategoryID, SummaryMessageID: b.SummaryMessageID}
}

// fail logs a swallowed gateway failure and returns it wrapped.
func fail(step string, b *domain.Booking, err error) error {
	log.Printf("reconcile step=%s guild=%s booking=%d err=%v", step, b.GuildID, b.ID, err)
	return fmt.Errorf("%w: %s: %v", ErrExternalSync, step, err)
}

// Ensure materializes the booking's channel if it has none yet. The channel
// must be created and its references stored for Ensure to succeed; the
// summary and ordering steps are best effort.
func (e *Engine) Ensure(ctx context.Context, b *domain.Booking) (Refs, error) {
	unlock := e.locks.Lock(b.Key())
	defer unlock()

	if err := e.reload(ctx, b); err != nil {
		return refsOf(b), err
	}
	cfg, err := e.configs.Get(ctx, b.GuildID)
	if err != nil {
		return Refs{}, fmt.Errorf("load guild config: %w", err)
	}
	if err := e.ensure(ctx, b, cfg); err != nil {
		return refsOf(b), err
	}
	return refsOf(b), nil
}

func (e *Engine) ensure(ctx context.Context, b *domain.Booking, cfg *domain.GuildConfig) error {
	if b.Materialized() {
		return nil
	}

	cat, err := e.category(ctx, b, cfg)
	if err != nil {
		return fail("category", b, err)
	}
	ch, err := e.gw.CreateChannel(ctx, b.GuildID, ChannelSpec{
		Name:       ChannelName(b),
		Kind:       KindText,
		ParentID:   cat.ID,
		Overwrites: Overwrites(b, cfg, e.gw.SelfID()),
	})
	if err != nil {
		return fail("create_channel", b, err)
	}
	if err := e.store.SetChannelRefs(ctx, b.GuildID, b.ID, ch.ID, cat.ID); err != nil {
		// An unreferenced channel would be duplicated by the next ensure.
		if derr := e.gw.DeleteChannel(ctx, ch.ID); derr != nil {
			_ = fail("delete_orphan", b, derr)
		}
		return fmt.Errorf("store channel refs: %w", err)
	}
	b.ChannelID = ch.ID
	b.CategoryID = cat.ID
	log.Printf("reconcile_channel_created guild=%s booking=%d channel=%s category=%s", b.GuildID, b.ID, ch.ID, cat.ID)

	e.upsertSummary(ctx, b)
	e.reorder(ctx, b, cfg, cat.ID)
	return nil
}

// reload replaces b with the stored booking. Callers hold the booking lock,
// so a pass never converges the channel to a status that was already
// superseded by a later transition.
func (e *Engine) reload(ctx context.Context, b *domain.Booking) error {
	fresh, err := e.store.GetByID(ctx, b.GuildID, b.ID)
	if err != nil {
		return fmt.Errorf("reload booking: %w", err)
	}
	*b = *fresh
	return nil
}

// Reconcile converges an existing channel with the stored booking and sends
// the one-time packs implied by ev. ev may be nil for field edits and
// resyncs; edge packs are only sent while the booking still holds ev's
// target status. Gateway failures are logged and only abort the pass when
// the channel itself cannot be reached.
func (e *Engine) Reconcile(ctx context.Context, b *domain.Booking, ev *domain.Transition, actor string) error {
	unlock := e.locks.Lock(b.Key())
	defer unlock()

	if err := e.reload(ctx, b); err != nil {
		return err
	}
	cfg, err := e.configs.Get(ctx, b.GuildID)
	if err != nil {
		return fmt.Errorf("load guild config: %w", err)
	}
	if err := e.ensure(ctx, b, cfg); err != nil {
		return err
	}

	ch, err := e.gw.Channel(ctx, b.ChannelID)
	if err != nil {
		return fail("fetch_channel", b, err)
	}

	categoryID := ch.ParentID
	if cat, err := e.category(ctx, b, cfg); err != nil {
		_ = fail("category", b, err)
	} else if ch.ParentID != cat.ID {
		if err := e.gw.MoveChannel(ctx, ch.ID, cat.ID); err != nil {
			_ = fail("move_channel", b, err)
		} else {
			categoryID = cat.ID
		}
	}
	if categoryID != b.CategoryID {
		if err := e.store.SetChannelRefs(ctx, b.GuildID, b.ID, b.ChannelID, categoryID); err != nil {
			log.Printf("reconcile step=store_refs guild=%s booking=%d err=%v", b.GuildID, b.ID, err)
		} else {
			b.CategoryID = categoryID
		}
	}

	if name := ChannelName(b); ch.Name != name {
		if err := e.gw.RenameChannel(ctx, ch.ID, name); err != nil {
			_ = fail("rename_channel", b, err)
		}
	}
	if err := e.gw.SetOverwrites(ctx, ch.ID, Overwrites(b, cfg, e.gw.SelfID())); err != nil {
		_ = fail("permissions", b, err)
	}

	e.upsertSummary(ctx, b)
	e.sendPacks(ctx, b, ev, cfg, ch, actor)
	e.reorder(ctx, b, cfg, categoryID)
	return nil
}

func (e *Engine) sendPacks(ctx context.Context, b *domain.Booking, ev *domain.Transition, cfg *domain.GuildConfig, ch Channel, actor string) {
	if b.Status == domain.StatusAccepted {
		first, err := e.notices.MarkNotificationSent(ctx, b.GuildID, b.ID, domain.NoticeAcceptance, actor)
		if err != nil {
			log.Printf("reconcile step=mark_acceptance guild=%s booking=%d err=%v", b.GuildID, b.ID, err)
		} else if first {
			for i, msg := range AcceptancePack(b, acceptedBy(b, actor)) {
				if _, err := e.gw.Send(ctx, b.ChannelID, msg); err != nil {
					_ = fail(fmt.Sprintf("acceptance_pack_%d", i), b, err)
					break
				}
			}
		}
	}

	if entered(ev, b, domain.StatusDeclined) {
		if _, err := e.gw.Send(ctx, b.ChannelID, DeclineNotice(b, ev.Actor, ev.At)); err != nil {
			_ = fail("decline_notice", b, err)
		}
	}

	if entered(ev, b, domain.StatusCompleted) && cfg.TranscriptChannelID != "" {
		first, err := e.notices.MarkNotificationSent(ctx, b.GuildID, b.ID, domain.NoticeTranscript, actor)
		if err != nil {
			log.Printf("reconcile step=mark_transcript guild=%s booking=%d err=%v", b.GuildID, b.ID, err)
			return
		}
		if !first {
			return
		}
		msgs, err := e.gw.Recent(ctx, b.ChannelID, transcriptLimit)
		if err != nil {
			_ = fail("transcript_fetch", b, err)
			return
		}
		now := e.now()
		text := BuildTranscript(ch, msgs, now)
		if _, err := e.gw.Send(ctx, cfg.TranscriptChannelID, transcriptMessage(b, ch, text, now)); err != nil {
			_ = fail("transcript_send", b, err)
		}
	}
}

func entered(ev *domain.Transition, b *domain.Booking, s domain.BookingStatus) bool {
	return ev.Entered(s) && b.Status == s
}

// acceptedBy names the staff member for the acceptance pack when a resync
// sends it without an acting user.
func acceptedBy(b *domain.Booking, actor string) string {
	if actor != "" {
		return actor
	}
	for i := len(b.History) - 1; i >= 0; i-- {
		if b.History[i].Status == domain.StatusAccepted && b.History[i].By != "" {
			return b.History[i].By
		}
	}
	return "Staff"
}

// upsertSummary edits the pinned summary in place or creates it when it is
// truly absent. When the lookup itself fails nothing is created.
func (e *Engine) upsertSummary(ctx context.Context, b *domain.Booking) {
	msg := Message{Embeds: []Embed{SummaryEmbed(b)}}

	found, err := e.findSummary(ctx, b)
	if err != nil {
		_ = fail("find_summary", b, err)
		return
	}

	if found != nil {
		if err := e.gw.Edit(ctx, b.ChannelID, found.ID, msg); err != nil {
			_ = fail("edit_summary", b, err)
		}
		if !found.Pinned {
			if err := e.gw.Pin(ctx, b.ChannelID, found.ID); err != nil {
				_ = fail("pin_summary", b, err)
			}
		}
		e.rememberSummary(ctx, b, found.ID)
		return
	}

	id, err := e.gw.Send(ctx, b.ChannelID, msg)
	if err != nil {
		_ = fail("send_summary", b, err)
		return
	}
	if err := e.gw.Pin(ctx, b.ChannelID, id); err != nil {
		_ = fail("pin_summary", b, err)
	}
	e.rememberSummary(ctx, b, id)
}

func (e *Engine) rememberSummary(ctx context.Context, b *domain.Booking, id string) {
	if b.SummaryMessageID == id {
		return
	}
	if err := e.store.SetSummaryMessage(ctx, b.GuildID, b.ID, id); err != nil {
		log.Printf("reconcile step=store_summary guild=%s booking=%d err=%v", b.GuildID, b.ID, err)
		return
	}
	b.SummaryMessageID = id
}

func (e *Engine) isSummary(m Posted, id int64) bool {
	if m.AuthorID != "" && m.AuthorID != e.gw.SelfID() {
		return false
	}
	want := footer(id)
	for _, em := range m.Embeds {
		if em.Footer == want {
			return true
		}
	}
	return false
}

// findSummary looks among pinned messages first, then among recent ones in
// case a pin has not been applied yet.
func (e *Engine) findSummary(ctx context.Context, b *domain.Booking) (*Posted, error) {
	pinned, err := e.gw.Pinned(ctx, b.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("pinned: %w", err)
	}
	for i := range pinned {
		if e.isSummary(pinned[i], b.ID) {
			m := pinned[i]
			m.Pinned = true
			return &m, nil
		}
	}

	recent, err := e.gw.Recent(ctx, b.ChannelID, recentScanLimit)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	for i := range recent {
		if e.isSummary(recent[i], b.ID) {
			return &recent[i], nil
		}
	}
	return nil, nil
}

// Teardown deletes the booking's channel. Failures are logged only.
func (e *Engine) Teardown(ctx context.Context, b *domain.Booking) {
	if !b.Materialized() {
		return
	}
	unlock := e.locks.Lock(b.Key())
	defer unlock()

	if err := e.gw.DeleteChannel(ctx, b.ChannelID); err != nil {
		_ = fail("delete_channel", b, err)
		return
	}
	log.Printf("reconcile_channel_deleted guild=%s booking=%d channel=%s", b.GuildID, b.ID, b.ChannelID)
}

func (e *Engine) SendReminder(ctx context.Context, b *domain.Booking, offsetMinutes int) error {
	if !b.Materialized() {
		return ErrNotMaterialized
	}
	if _, err := e.gw.Send(ctx, b.ChannelID, ReminderMessage(b, offsetMinutes)); err != nil {
		return fail("reminder", b, err)
	}
	return nil
}

func (e *Engine) RequestInfo(ctx context.Context, b *domain.Booking, staff, text string) error {
	if !b.Materialized() {
		return ErrNotMaterialized
	}
	if _, err := e.gw.Send(ctx, b.ChannelID, InfoRequestMessage(b, staff, text)); err != nil {
		return fail("request_info", b, err)
	}
	return nil
}
