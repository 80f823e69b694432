package realtime

import (
	"context"
	"time"

	"collabhub.app/internal/store"
)

const onlineUsersKey = store.NamespaceOnline + "users"

// PresenceRecord describes one user's active real-time connection.
type PresenceRecord struct {
	UserID    string    `json:"userId"`
	SocketID  string    `json:"socketId"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// Presence tracks which users currently hold a live connection. Records are
// written with a TTL so a crashed connection eventually falls out of the
// registry even if RemoveUser is never called.
type Presence struct {
	store *store.RedisStore
	ttl   time.Duration
}

// NewPresence creates a presence registry backed by the given store.
func NewPresence(s *store.RedisStore, ttl time.Duration) *Presence {
	return &Presence{store: s, ttl: ttl}
}

func presenceKey(userID string) string {
	return store.NamespaceOnline + "user:" + userID
}

func roomUsersKey(roomID string) string {
	return store.NamespaceRoom + roomID + ":users"
}

// AddUser registers a user as online. Adding an already-present user
// succeeds and refreshes the record.
func (p *Presence) AddUser(ctx context.Context, userID, socketID string) bool {
	record := PresenceRecord{
		UserID:    userID,
		SocketID:  socketID,
		Timestamp: time.Now(),
		Status:    "online",
	}

	if !p.store.Set(ctx, presenceKey(userID), record, p.ttl) {
		return false
	}
	return p.store.SetAdd(ctx, onlineUsersKey, userID)
}

// RemoveUser removes a user from the registry. Removing an absent user
// succeeds without error.
func (p *Presence) RemoveUser(ctx context.Context, userID string) bool {
	if !p.store.Delete(ctx, presenceKey(userID)) {
		return false
	}
	return p.store.SetRemove(ctx, onlineUsersKey, userID)
}

// GetOnlineUsers returns the ids of all online users, empty when the store
// is unavailable.
func (p *Presence) GetOnlineUsers(ctx context.Context) []string {
	users, ok := p.store.SetMembers(ctx, onlineUsersKey)
	if !ok {
		return []string{}
	}
	return users
}

// IsUserOnline reports whether the user is in the online set.
func (p *Presence) IsUserOnline(ctx context.Context, userID string) bool {
	return p.store.SetIsMember(ctx, onlineUsersKey, userID)
}

// GetUser returns the presence record for a user, if one exists.
func (p *Presence) GetUser(ctx context.Context, userID string) (*PresenceRecord, bool) {
	var record PresenceRecord
	if !p.store.Get(ctx, presenceKey(userID), &record) {
		return nil, false
	}
	return &record, true
}

// JoinRoom adds the user to a room's membership set.
func (p *Presence) JoinRoom(ctx context.Context, roomID, userID string) bool {
	return p.store.SetAdd(ctx, roomUsersKey(roomID), userID)
}

// LeaveRoom removes the user from a room's membership set.
func (p *Presence) LeaveRoom(ctx context.Context, roomID, userID string) bool {
	return p.store.SetRemove(ctx, roomUsersKey(roomID), userID)
}

// GetRoomUsers returns the ids of users currently in the room.
func (p *Presence) GetRoomUsers(ctx context.Context, roomID string) []string {
	users, ok := p.store.SetMembers(ctx, roomUsersKey(roomID))
	if !ok {
		return []string{}
	}
	return users
}
