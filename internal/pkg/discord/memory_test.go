package discord

import (
	"context"
	"testing"

	"convoydesk/internal/domain/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ reconcile.Gateway = (*Memory)(nil)
var _ reconcile.Gateway = (*Gateway)(nil)

func TestMemory_MessagesAndPins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ch, err := m.CreateChannel(ctx, "g1", reconcile.ChannelSpec{Name: "booking", Kind: reconcile.KindText})
	require.NoError(t, err)

	first, err := m.Send(ctx, ch.ID, reconcile.Message{Content: "one"})
	require.NoError(t, err)
	_, err = m.Send(ctx, ch.ID, reconcile.Message{Content: "two"})
	require.NoError(t, err)
	require.NoError(t, m.Pin(ctx, ch.ID, first))
	require.NoError(t, m.Edit(ctx, ch.ID, first, reconcile.Message{Content: "uno"}))

	recent, err := m.Recent(ctx, ch.ID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "two", recent[0].Content)

	pinned, err := m.Pinned(ctx, ch.ID)
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, "uno", pinned[0].Content)
	assert.Equal(t, memorySelfID, pinned[0].AuthorID)
}

func TestMemory_UnknownChannel(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Channel(ctx, "nope")
	assert.Error(t, err)
	_, err = m.Send(ctx, "nope", reconcile.Message{})
	assert.Error(t, err)

	ch, err := m.CreateChannel(ctx, "g1", reconcile.ChannelSpec{Name: "x"})
	require.NoError(t, err)
	require.NoError(t, m.DeleteChannel(ctx, ch.ID))
	_, ok := m.Lookup(ch.ID)
	assert.False(t, ok)
}
