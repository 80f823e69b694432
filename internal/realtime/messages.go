package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"collabhub.app/internal/store"
)

// Message is an opaque chat message payload. The cache never interprets the
// fields beyond stamping the insertion time.
type Message map[string]interface{}

// MessageWindow keeps a bounded per-room window of the most recent messages.
// Messages are stored newest-first and returned to callers oldest-first.
type MessageWindow struct {
	store *store.RedisStore
	size  int64
	ttl   time.Duration
}

// NewMessageWindow creates a message window cache holding up to size messages
// per room; the room list expires ttl after its last write.
func NewMessageWindow(s *store.RedisStore, size int, ttl time.Duration) *MessageWindow {
	return &MessageWindow{store: s, size: int64(size), ttl: ttl}
}

func messagesKey(roomID string) string {
	return store.NamespaceMessages + roomID
}

// AddMessage stamps the message with the insertion time, prepends it to the
// room's window, trims the window to its bound and refreshes the TTL. The
// push, trim and expire are individual store operations, not a transaction;
// a crash between them can leave the list untrimmed, which is acceptable for
// a cache.
func (m *MessageWindow) AddMessage(ctx context.Context, roomID string, message Message) bool {
	stamped := make(Message, len(message)+1)
	for k, v := range message {
		stamped[k] = v
	}
	stamped["cachedAt"] = time.Now().UnixMilli()

	key := messagesKey(roomID)
	if !m.store.ListPush(ctx, key, stamped) {
		return false
	}

	m.store.ListTrim(ctx, key, 0, m.size-1)
	m.store.Expire(ctx, key, m.ttl)
	return true
}

// GetRecentMessages returns up to count of the most recently inserted
// messages in chronological (oldest-first) order.
func (m *MessageWindow) GetRecentMessages(ctx context.Context, roomID string, count int) []Message {
	if count <= 0 {
		return []Message{}
	}
	if int64(count) > m.size {
		count = int(m.size)
	}

	items, ok := m.store.ListRange(ctx, messagesKey(roomID), 0, int64(count)-1)
	if !ok {
		return []Message{}
	}

	// storage order is newest-first; reverse while decoding
	messages := make([]Message, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var msg Message
		if err := json.Unmarshal([]byte(items[i]), &msg); err != nil {
			slog.Error("Skipping corrupt cached message", "error", err, "room", roomID)
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

// ClearRoomMessages drops the room's window entirely.
func (m *MessageWindow) ClearRoomMessages(ctx context.Context, roomID string) bool {
	return m.store.Delete(ctx, messagesKey(roomID))
}
