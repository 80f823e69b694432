package app

import (
	"fmt"
	"log/slog"

	"collabhub.app/api"
	"collabhub.app/config"
	"collabhub.app/internal/clientcache"
	"collabhub.app/internal/events"
	"collabhub.app/internal/realtime"
	"collabhub.app/internal/store"
)

// Application represents the main application with all its dependencies
type Application struct {
	config      *config.Config
	store       *store.RedisStore
	bus         *events.Bus
	clientCache *clientcache.TieredCache
	domainCache *clientcache.DomainCache
	server      *api.Server
}

// NewApplication creates and initializes a new application instance
func NewApplication() (*Application, error) {
	app := &Application{}

	if err := app.loadConfiguration(); err != nil {
		return nil, err
	}

	if err := app.initializeStore(); err != nil {
		return nil, err
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}

	return app, nil
}

func (app *Application) loadConfiguration() error {
	slog.Info("Loading configuration...")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("load application configuration: %w", err)
	}

	app.config = cfg
	slog.Info("Configuration loaded successfully")
	return nil
}

func (app *Application) initializeStore() error {
	slog.Info("Initializing cache store...")

	cacheStore, err := store.NewRedisStore(&app.config.Redis)
	if err != nil {
		slog.Error("Failed to initialize cache store", "error", err)
		return fmt.Errorf("initialize cache store: %w", err)
	}

	app.store = cacheStore
	slog.Info("Cache store initialized successfully")
	return nil
}

func (app *Application) initializeServices() error {
	slog.Info("Initializing services...")

	cacheCfg := app.config.Cache
	presence := realtime.NewPresence(app.store, cacheCfg.PresenceTTL())
	limiter := realtime.NewRateLimiter(app.store)
	messages := realtime.NewMessageWindow(app.store, cacheCfg.MessageWindowSize, cacheCfg.MessageWindowTTL())
	notifications := realtime.NewNotificationQueue(app.store, cacheCfg.NotificationLimit, cacheCfg.NotificationTTL())

	app.bus = events.NewBus()

	clientCache, err := clientcache.New(&app.config.ClientCache)
	if err != nil {
		slog.Error("Failed to initialize client cache", "error", err)
		return fmt.Errorf("initialize client cache: %w", err)
	}
	app.clientCache = clientCache
	app.domainCache = clientcache.NewDomainCache(clientCache, app.bus)

	app.server = api.NewServer(app.config, app.store, presence, limiter, messages, notifications)

	slog.Info("Services initialized successfully")
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	slog.Info("Starting HTTP server", "port", app.config.Server.Port)
	return app.server.Start()
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	slog.Info("Shutting down application...")

	if app.bus != nil {
		app.bus.Close()
	}
	if app.domainCache != nil {
		app.domainCache.Wait()
	}
	if app.clientCache != nil {
		if err := app.clientCache.Close(); err != nil {
			slog.Warn("Error closing client cache", "error", err)
		}
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			slog.Warn("Error closing cache store", "error", err)
		}
	}

	slog.Info("Application shutdown complete")
	return nil
}

// Config returns the application configuration
func (app *Application) Config() *config.Config {
	return app.config
}

// DomainCache returns the client-side domain cache facade
func (app *Application) DomainCache() *clientcache.DomainCache {
	return app.domainCache
}

// Events returns the in-process event bus
func (app *Application) Events() *events.Bus {
	return app.bus
}
