package cmd

import (
	"context"
	"path/filepath"

	"timekeeper/internal/adapters/notify"
	"timekeeper/internal/adapters/remote"
	adapterstorage "timekeeper/internal/adapters/storage"
	"timekeeper/internal/config"
	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/ports"
	"timekeeper/internal/services"
)

// Container holds all dependencies for the application
type Container struct {
	// Services
	Aggregator *services.Aggregator
	Corrector  *services.Corrector
	Effects    *services.EffectsWorker
	Guard      *services.GuardScheduler
	SyncEngine *services.SyncEngine
	Tracker    *services.Tracker

	// Adapters
	Notifier ports.Notifier
	Store    ports.Store

	Tuning config.Tuning

	settings *config.Settings
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer(settings *config.Settings) (*Container, error) {
	dbPath := settings.DBPath
	if dbPath == "" {
		dbPath = config.GetDBPath()
	}
	store, err := adapterstorage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, err
	}

	tuning := settings.Tuning()
	notifier := notify.NewLogNotifier(filepath.Join(config.GetHome(), "notifications.log"))
	remoteStore := remote.NewHTTPRemoteStore(remote.ClientOptions{
		BaseURL: settings.SyncURL,
		Token:   settings.SyncToken,
	})

	normalizer := services.NewNormalizer(store)
	tracker := services.NewTracker(store, store, store, normalizer, tuning)
	effects := services.NewEffectsWorker(store, tuning)
	corrector := services.NewCorrector(store, store, effects)
	aggregator := services.NewAggregator(store, store, store, tuning)
	syncEngine := services.NewSyncEngine(store, store, store, store, remoteStore)
	guard := services.NewGuardScheduler(store, tuning.GuardDuration, tracker.AutoCloseSession)

	c := &Container{
		Aggregator: aggregator,
		Corrector:  corrector,
		Effects:    effects,
		Guard:      guard,
		Notifier:   notifier,
		Store:      store,
		SyncEngine: syncEngine,
		Tracker:    tracker,
		Tuning:     tuning,
		settings:   settings,
	}
	c.registerEffectHandlers()
	return c, nil
}

// registerEffectHandlers binds every effect type to its executor. This is
// the only place the queue learns what effects mean.
func (c *Container) registerEffectHandlers() {
	notifyHandler := func(kind domain.EffectType) services.EffectHandler {
		return func(ctx context.Context, payload domain.EffectPayload) error {
			return c.Notifier.Notify(ctx, payload.UserID, kind, notify.Message(kind, payload.LocationName))
		}
	}
	for _, kind := range []domain.EffectType{
		domain.EffectNotifyArrival,
		domain.EffectNotifyDeparture,
		domain.EffectNotifyForgotten,
		domain.EffectNotifyPaused,
		domain.EffectNotifyResumed,
	} {
		c.Effects.Register(kind, notifyHandler(kind))
	}

	c.Effects.Register(domain.EffectRebuildDaySummary, func(ctx context.Context, payload domain.EffectPayload) error {
		return c.Aggregator.RebuildDaySummary(ctx, payload.UserID, payload.Date)
	})
	c.Effects.Register(domain.EffectStartSessionGuard, c.Guard.HandleStart)
	c.Effects.Register(domain.EffectCancelSessionGuard, c.Guard.HandleCancel)
	c.Effects.Register(domain.EffectSyncNow, func(ctx context.Context, payload domain.EffectPayload) error {
		if c.settings.SyncURL == "" {
			// Offline-only install: sessions and summaries stay local
			logging.Logger.Debug("Sync skipped, no backend configured", "user_id", payload.UserID)
			return nil
		}
		_, err := c.SyncEngine.Sync(ctx, payload.UserID)
		return err
	})
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}
