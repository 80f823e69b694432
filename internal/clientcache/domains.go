package clientcache

import (
	"log/slog"
	"sync"
	"time"

	"collabhub.app/internal/events"
)

// Per-domain lifetimes, from fast-moving dashboard stats to near-static
// settings.
const (
	userTTL      = 30 * time.Minute
	teamTTL      = time.Hour
	taskTTL      = 10 * time.Minute
	messageTTL   = 24 * time.Hour
	dashboardTTL = 2 * time.Minute
	settingsTTL  = 12 * time.Hour
)

const roomMessageLimit = 100

// DomainCache layers semantic operations on the tiered cache: it owns the
// key-naming conventions and fixed category/TTL assignments for each domain,
// and invalidates in response to domain events instead of being called by UI
// code directly.
type DomainCache struct {
	cache *TieredCache
	wg    sync.WaitGroup
}

// NewDomainCache wraps the tiered cache and subscribes to the event bus for
// invalidation.
func NewDomainCache(cache *TieredCache, bus *events.Bus) *DomainCache {
	d := &DomainCache{cache: cache}

	for _, eventType := range []events.EventType{
		events.EventEntityUpdated,
		events.EventEntityDeleted,
		events.EventUserLoggedOut,
	} {
		ch := bus.Subscribe(eventType)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for event := range ch {
				d.handleEvent(event)
			}
		}()
	}

	return d
}

// Wait blocks until the event subscriptions drain; call after closing the bus.
func (d *DomainCache) Wait() {
	d.wg.Wait()
}

func userKey(userID string) string         { return "user:" + userID }
func teamKey(teamID string) string         { return "team:" + teamID }
func teamListKey(userID string) string     { return "team:list:" + userID }
func taskListKey(teamID string) string     { return "task:list:" + teamID }
func roomMessagesKey(roomID string) string { return "message:room:" + roomID }
func dashboardKey(role string) string      { return "dashboard:" + role }
func settingsKey(userID string) string     { return "settings:" + userID }

// CacheUser stores a user profile payload.
func (d *DomainCache) CacheUser(userID string, user interface{}) error {
	return d.cache.Set(userKey(userID), user, Options{Category: CategoryUser, TTL: userTTL})
}

// GetUser reads a cached user profile.
func (d *DomainCache) GetUser(userID string, dest interface{}) bool {
	return d.cache.Get(userKey(userID), dest)
}

// CacheTeam stores a single team payload.
func (d *DomainCache) CacheTeam(teamID string, team interface{}) error {
	return d.cache.Set(teamKey(teamID), team, Options{Category: CategoryTeam, TTL: teamTTL})
}

// GetTeam reads a cached team.
func (d *DomainCache) GetTeam(teamID string, dest interface{}) bool {
	return d.cache.Get(teamKey(teamID), dest)
}

// CacheTeamList stores the list of teams visible to a user.
func (d *DomainCache) CacheTeamList(userID string, teams interface{}) error {
	return d.cache.Set(teamListKey(userID), teams, Options{Category: CategoryTeam, TTL: teamTTL})
}

// GetTeamList reads a user's cached team list.
func (d *DomainCache) GetTeamList(userID string, dest interface{}) bool {
	return d.cache.Get(teamListKey(userID), dest)
}

// CacheTaskList stores a team-scoped task list.
func (d *DomainCache) CacheTaskList(teamID string, tasks interface{}) error {
	return d.cache.Set(taskListKey(teamID), tasks, Options{Category: CategoryTask, TTL: taskTTL})
}

// GetTaskList reads a team's cached task list.
func (d *DomainCache) GetTaskList(teamID string, dest interface{}) bool {
	return d.cache.Get(taskListKey(teamID), dest)
}

// AddRoomMessage appends a message to the room's bounded local list,
// evicting the oldest entry beyond the cap.
func (d *DomainCache) AddRoomMessage(roomID string, message map[string]interface{}) error {
	var messages []map[string]interface{}
	d.cache.Get(roomMessagesKey(roomID), &messages)

	messages = append(messages, message)
	if len(messages) > roomMessageLimit {
		messages = messages[len(messages)-roomMessageLimit:]
	}

	return d.cache.Set(roomMessagesKey(roomID), messages, Options{Category: CategoryMessage, TTL: messageTTL})
}

// GetRoomMessages reads the room's locally cached messages, oldest first.
func (d *DomainCache) GetRoomMessages(roomID string) []map[string]interface{} {
	var messages []map[string]interface{}
	if !d.cache.Get(roomMessagesKey(roomID), &messages) {
		return []map[string]interface{}{}
	}
	return messages
}

// CacheDashboardStats stores per-role dashboard aggregates.
func (d *DomainCache) CacheDashboardStats(role string, stats interface{}) error {
	return d.cache.Set(dashboardKey(role), stats, Options{Category: CategoryDashboard, TTL: dashboardTTL})
}

// GetDashboardStats reads cached dashboard aggregates for a role.
func (d *DomainCache) GetDashboardStats(role string, dest interface{}) bool {
	return d.cache.Get(dashboardKey(role), dest)
}

// CacheSettings stores a user's settings durably so they survive restarts.
func (d *DomainCache) CacheSettings(userID string, settings interface{}) error {
	return d.cache.Set(settingsKey(userID), settings, Options{
		Category:   CategorySettings,
		TTL:        settingsTTL,
		Persistent: true,
	})
}

// GetSettings reads a user's cached settings.
func (d *DomainCache) GetSettings(userID string, dest interface{}) bool {
	return d.cache.Get(settingsKey(userID), dest)
}

// handleEvent maps domain events onto invalidations.
func (d *DomainCache) handleEvent(event events.Event) {
	switch event.Type {
	case events.EventEntityUpdated, events.EventEntityDeleted:
		d.invalidateEntity(event)
	case events.EventUserLoggedOut:
		d.clearSession()
	}
}

func (d *DomainCache) invalidateEntity(event events.Event) {
	id := event.Payload["id"]

	switch event.Entity {
	case "user":
		if id != "" {
			d.cache.Remove(userKey(id))
		}
	case "team":
		// a team change also staleness-es every cached team list
		d.cache.ClearByCategory(CategoryTeam)
	case "task":
		if teamID := event.Payload["teamId"]; teamID != "" {
			d.cache.Remove(taskListKey(teamID))
		} else {
			d.cache.ClearByCategory(CategoryTask)
		}
	case "message":
		if roomID := event.Payload["roomId"]; roomID != "" {
			d.cache.Remove(roomMessagesKey(roomID))
		} else {
			d.cache.ClearByCategory(CategoryMessage)
		}
	case "dashboard":
		d.cache.ClearByCategory(CategoryDashboard)
	default:
		slog.Debug("Ignoring event for unknown entity", "entity", event.Entity)
	}

	// mutations ripple into dashboard aggregates
	if event.Entity == "task" || event.Entity == "team" {
		d.cache.ClearByCategory(CategoryDashboard)
	}
}

// clearSession drops everything scoped to the signed-in session but keeps
// settings, which are account-level.
func (d *DomainCache) clearSession() {
	for _, category := range []Category{
		CategoryUser, CategoryTeam, CategoryTask, CategoryMessage, CategoryDashboard,
	} {
		d.cache.ClearByCategory(category)
	}
}
