package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub.app/config"
	"collabhub.app/internal/store"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *store.RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := &config.RedisConfig{
		Addr:         mr.Addr(),
		DB:           0,
		DialTimeout:  5,
		ReadTimeout:  3,
		WriteTimeout: 3,
	}

	s, err := store.NewRedisStore(cfg)
	require.NoError(t, err)
	s.SetCheckInterval(0)
	t.Cleanup(func() { _ = s.Close() })

	return mr, s
}

func TestPresence_AddAndRemoveUser(t *testing.T) {
	_, s := setupTestStore(t)
	presence := NewPresence(s, time.Hour)
	ctx := context.Background()

	assert.True(t, presence.AddUser(ctx, "u1", "socket-1"))
	assert.True(t, presence.AddUser(ctx, "u2", "socket-2"))

	assert.True(t, presence.IsUserOnline(ctx, "u1"))
	assert.ElementsMatch(t, []string{"u1", "u2"}, presence.GetOnlineUsers(ctx))

	record, found := presence.GetUser(ctx, "u1")
	require.True(t, found)
	assert.Equal(t, "u1", record.UserID)
	assert.Equal(t, "socket-1", record.SocketID)
	assert.Equal(t, "online", record.Status)
	assert.False(t, record.Timestamp.IsZero())

	assert.True(t, presence.RemoveUser(ctx, "u1"))
	assert.False(t, presence.IsUserOnline(ctx, "u1"))
	assert.ElementsMatch(t, []string{"u2"}, presence.GetOnlineUsers(ctx))
}

func TestPresence_Idempotency(t *testing.T) {
	_, s := setupTestStore(t)
	presence := NewPresence(s, time.Hour)
	ctx := context.Background()

	assert.True(t, presence.AddUser(ctx, "u1", "socket-1"))
	assert.True(t, presence.AddUser(ctx, "u1", "socket-1b"))
	assert.ElementsMatch(t, []string{"u1"}, presence.GetOnlineUsers(ctx))

	// record reflects the latest connection
	record, found := presence.GetUser(ctx, "u1")
	require.True(t, found)
	assert.Equal(t, "socket-1b", record.SocketID)

	// removing an absent user still succeeds
	assert.True(t, presence.RemoveUser(ctx, "u1"))
	assert.True(t, presence.RemoveUser(ctx, "u1"))
}

func TestPresence_RecordExpiry(t *testing.T) {
	mr, s := setupTestStore(t)
	presence := NewPresence(s, time.Hour)
	ctx := context.Background()

	require.True(t, presence.AddUser(ctx, "u1", "socket-1"))

	mr.FastForward(61 * time.Minute)

	_, found := presence.GetUser(ctx, "u1")
	assert.False(t, found)
}

func TestPresence_Rooms(t *testing.T) {
	_, s := setupTestStore(t)
	presence := NewPresence(s, time.Hour)
	ctx := context.Background()

	assert.True(t, presence.JoinRoom(ctx, "general", "u1"))
	assert.True(t, presence.JoinRoom(ctx, "general", "u2"))
	assert.True(t, presence.JoinRoom(ctx, "random", "u1"))
	assert.True(t, presence.JoinRoom(ctx, "general", "u1")) // idempotent

	assert.ElementsMatch(t, []string{"u1", "u2"}, presence.GetRoomUsers(ctx, "general"))
	assert.ElementsMatch(t, []string{"u1"}, presence.GetRoomUsers(ctx, "random"))

	assert.True(t, presence.LeaveRoom(ctx, "general", "u1"))
	assert.ElementsMatch(t, []string{"u2"}, presence.GetRoomUsers(ctx, "general"))

	assert.Empty(t, presence.GetRoomUsers(ctx, "empty-room"))
}

func TestPresence_DegradedStore(t *testing.T) {
	mr, s := setupTestStore(t)
	presence := NewPresence(s, time.Hour)
	ctx := context.Background()

	require.True(t, presence.AddUser(ctx, "u1", "socket-1"))

	mr.Close()

	assert.False(t, presence.AddUser(ctx, "u2", "socket-2"))
	assert.False(t, presence.IsUserOnline(ctx, "u1"))
	assert.Empty(t, presence.GetOnlineUsers(ctx))
	assert.Empty(t, presence.GetRoomUsers(ctx, "general"))
}
