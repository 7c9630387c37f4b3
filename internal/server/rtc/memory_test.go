package rtc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProvider_RoomLifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	_, err := p.ListOccupants(ctx, "room")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	require.NoError(t, p.CreateRoom(ctx, "room"))
	require.NoError(t, p.CreateRoom(ctx, "room"))

	require.NoError(t, p.Connect("room", "bob"))
	require.NoError(t, p.Connect("room", "alice"))

	ids, err := p.ListOccupants(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)

	p.Disconnect("room", "bob")
	ids, _ = p.ListOccupants(ctx, "room")
	assert.Equal(t, []string{"alice"}, ids)

	require.NoError(t, p.Broadcast(ctx, "room", "alice", []byte("hi")))
	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice", msgs[0].Sender)

	require.NoError(t, p.DeleteRoom(ctx, "room"))
	assert.ErrorIs(t, p.DeleteRoom(ctx, "room"), ErrRoomNotFound)
	assert.ErrorIs(t, p.Connect("room", "carol"), ErrRoomNotFound)
}

func TestMemoryProvider_TokensAreDistinct(t *testing.T) {
	p := NewMemoryProvider()

	a, err := p.IssueToken("room", "alice", RoleSpeaker)
	require.NoError(t, err)
	b, err := p.IssueToken("room", "alice", RoleSpeaker)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "room")
}
