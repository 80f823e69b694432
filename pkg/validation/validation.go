package validation

import (
	"regexp"
	"strings"
)

var roomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// IsValidRoomID validates chat room identifier format
func IsValidRoomID(roomID string) bool {
	return roomIDRegex.MatchString(strings.TrimSpace(roomID))
}

// IsNotEmpty checks if string is not empty after trimming
func IsNotEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

// IsValidCacheCategory validates client cache category names
func IsValidCacheCategory(category string) bool {
	switch category {
	case "user", "team", "task", "message", "dashboard", "settings":
		return true
	}
	return false
}

// TrimAndValidate trims string and validates it's not empty
func TrimAndValidate(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	return trimmed, trimmed != ""
}
