package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"collabhub.app/internal/store"
)

// Notification is a queued user notification. Data carries the arbitrary
// caller-supplied payload.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Timestamp time.Time              `json:"timestamp"`
	Read      bool                   `json:"read"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NotificationQueue delivers notifications through the store: each one is
// written to a global queue and to a bounded per-user list.
type NotificationQueue struct {
	store *store.RedisStore
	limit int64
	ttl   time.Duration
}

// NewNotificationQueue creates a notification queue keeping up to limit
// entries per user, expiring ttl after the last write.
func NewNotificationQueue(s *store.RedisStore, limit int, ttl time.Duration) *NotificationQueue {
	return &NotificationQueue{store: s, limit: int64(limit), ttl: ttl}
}

func userNotificationsKey(userID string) string {
	return store.NamespaceNotificationUser + userID
}

func newNotificationID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// QueueNotification stamps and stores a notification for the user, returning
// its generated id, or "" when the store is unavailable.
func (q *NotificationQueue) QueueNotification(ctx context.Context, userID string, data map[string]interface{}) string {
	notification := Notification{
		ID:        newNotificationID(),
		UserID:    userID,
		Timestamp: time.Now(),
		Read:      false,
		Data:      data,
	}

	if !q.store.ListPush(ctx, store.NamespaceNotificationQueue, notification) {
		return ""
	}

	userKey := userNotificationsKey(userID)
	if !q.store.ListPush(ctx, userKey, notification) {
		return ""
	}
	q.store.ListTrim(ctx, userKey, 0, q.limit-1)
	q.store.Expire(ctx, userKey, q.ttl)

	return notification.ID
}

// GetUserNotifications returns up to count of the user's most recent
// notifications, newest first.
func (q *NotificationQueue) GetUserNotifications(ctx context.Context, userID string, count int) []Notification {
	if count <= 0 {
		return []Notification{}
	}

	items, ok := q.store.ListRange(ctx, userNotificationsKey(userID), 0, int64(count)-1)
	if !ok {
		return []Notification{}
	}

	notifications := make([]Notification, 0, len(items))
	for _, item := range items {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			slog.Error("Skipping corrupt cached notification", "error", err, "user", userID)
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications
}

// GetUnreadCount returns how many of the user's stored notifications are
// still unread.
func (q *NotificationQueue) GetUnreadCount(ctx context.Context, userID string) int {
	items, ok := q.store.ListRange(ctx, userNotificationsKey(userID), 0, -1)
	if !ok {
		return 0
	}

	unread := 0
	for _, item := range items {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		if !n.Read {
			unread++
		}
	}
	return unread
}

// MarkNotificationRead scans the user's list for the given id and rewrites
// that single position with the read flag set. Returns false when no entry
// matches.
func (q *NotificationQueue) MarkNotificationRead(ctx context.Context, userID, notificationID string) bool {
	userKey := userNotificationsKey(userID)

	items, ok := q.store.ListRange(ctx, userKey, 0, -1)
	if !ok {
		return false
	}

	for i, item := range items {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		if n.ID != notificationID {
			continue
		}

		n.Read = true
		return q.store.ListSet(ctx, userKey, int64(i), n)
	}

	return false
}
