package app

import (
	"log"
	"os"
	"sort"
	"strings"

	"collabhub.app/config"
)

// ConfigDisplayer handles configuration and environment variable display
type ConfigDisplayer struct{}

// NewConfigDisplayer creates a new configuration displayer
func NewConfigDisplayer() *ConfigDisplayer {
	return &ConfigDisplayer{}
}

// PrintConfig prints all fields in the configuration
func (cd *ConfigDisplayer) PrintConfig(cfg *config.Config) {
	log.Println("==== APPLICATION CONFIGURATION ====")

	log.Printf("SERVER:\n")
	log.Printf("  Port: %d\n", cfg.Server.Port)

	log.Printf("\nREDIS:\n")
	log.Printf("  Addr: %s\n", cfg.Redis.Addr)
	log.Printf("  Password: %s\n", cd.maskString(cfg.Redis.Password))
	log.Printf("  DB: %d\n", cfg.Redis.DB)
	log.Printf("  Dial Timeout: %d seconds\n", cfg.Redis.DialTimeout)

	log.Printf("\nCACHE:\n")
	log.Printf("  Request TTL: %d seconds\n", cfg.Cache.RequestTTLSeconds)
	log.Printf("  Presence TTL: %d seconds\n", cfg.Cache.PresenceTTLSeconds)
	log.Printf("  Message Window Size: %d\n", cfg.Cache.MessageWindowSize)
	log.Printf("  Message Window TTL: %d days\n", cfg.Cache.MessageWindowTTLDays)
	log.Printf("  Notification Limit: %d\n", cfg.Cache.NotificationLimit)
	log.Printf("  Notification TTL: %d days\n", cfg.Cache.NotificationTTLDays)
	log.Printf("  Rate Limit: %d per %d seconds\n", cfg.Cache.RateLimitDefault, cfg.Cache.RateWindowSeconds)

	log.Printf("\nCLIENT CACHE:\n")
	log.Printf("  Dir: %s\n", cfg.ClientCache.Dir)
	log.Printf("  Durable File: %s\n", cfg.ClientCache.DurableFile)
	log.Printf("  Large Object Threshold: %d bytes\n", cfg.ClientCache.LargeObjectThreshold)

	log.Printf("\nLOG LEVEL: %s\n", cfg.LogLevel)

	log.Println("===================================")
}

// PrintAllEnvVars prints all environment variables available to the application
func (cd *ConfigDisplayer) PrintAllEnvVars() {
	log.Println("==== ENVIRONMENT VARIABLES ====")

	envVars := os.Environ()
	sort.Strings(envVars)

	for _, env := range envVars {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		if cd.isSensitive(key) {
			value = cd.maskString(value)
		}
		log.Printf("  %s=%s\n", key, value)
	}

	log.Println("===============================")
}

func (cd *ConfigDisplayer) isSensitive(key string) bool {
	upper := strings.ToUpper(key)
	return strings.Contains(upper, "PASSWORD") ||
		strings.Contains(upper, "SECRET") ||
		strings.Contains(upper, "TOKEN") ||
		strings.Contains(upper, "KEY")
}

func (cd *ConfigDisplayer) maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
