package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/api"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/backend"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/cache"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/config"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/events"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/journal"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/metadata"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/metrics"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/storage"
)

// app holds the wired components for one CLI invocation.
type app struct {
	cfg     config.Config
	backend *backend.Backend
	journal journal.Manager
	closers []func() error
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var session backend.Session
	if cfg.API.Offline {
		log.Println("[main] offline mode, no requests will be sent")
		session = api.NewOffline(nil)
	} else {
		session = api.NewSession(api.Config{
			BaseURL:           cfg.API.URL,
			Credentials:       credentials(cfg.API),
			RequestsPerSecond: cfg.API.RequestsPerSecond,
			Burst:             cfg.API.Burst,
			Timeout:           cfg.API.Timeout,
			RetryInterval:     cfg.API.RetryInterval,
		})
	}

	jm, err := journal.NewManager(journal.Config{Enabled: cfg.Journal.Enabled, Dir: cfg.Journal.Dir})
	if err != nil {
		slog.Warn("failed to create journal, handles will not be recorded", "error", err)
		jm, _ = journal.NewManager(journal.Config{})
	}
	a.journal = jm

	resultCache, err := a.newCache()
	if err != nil {
		a.Close()
		return nil, err
	}

	catalog, err := metadata.NewCatalog(cfg.Catalog)
	if err != nil {
		slog.Warn("failed to open job catalog, continuing without it", "error", err)
		catalog = metadata.NoopCatalog{}
	}
	a.closers = append(a.closers, catalog.Close)

	emitter := events.NewEmitter(cfg.Events)
	a.closers = append(a.closers, emitter.Close)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.Init("")
		go func() {
			log.Printf("[metrics] serving on %s", cfg.Metrics.Addr)
			if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
				log.Printf("[metrics] server stopped: %v", err)
			}
		}()
	}

	a.backend = backend.New(session, backend.ConfigFrom(cfg.Backend),
		backend.WithCache(resultCache),
		backend.WithJournal(jm),
		backend.WithCatalog(catalog),
		backend.WithEmitter(emitter),
		backend.WithMetrics(m),
	)
	return a, nil
}

// newCache returns a result cache backed by the configured store, or a
// memory-only cache when no store is configured.
func (a *app) newCache() (*cache.Cache, error) {
	sc := a.cfg.Storage
	if sc.Backend == "" {
		return cache.New(), nil
	}
	store, err := storage.NewResultStore(storage.StorageConfig{
		Backend:    sc.Backend,
		LocalDir:   sc.LocalDir,
		GCSBucket:  sc.Bucket,
		S3Bucket:   sc.Bucket,
		S3Endpoint: sc.S3Endpoint,
		S3Region:   sc.S3Region,
		Prefix:     sc.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("create result store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	codec, err := storage.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("create codec: %w", err)
	}
	a.closers = append(a.closers, func() error { codec.Close(); return nil })

	log.Printf("[main] persisting results to %s", store.URI(sc.Prefix))
	return cache.New(cache.WithStore(store, codec, sc.Prefix)), nil
}

// Close releases everything newApp opened, most recent first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func credentials(cfg config.APIConfig) api.CredentialsFunc {
	return func(context.Context) (string, string, error) {
		if cfg.User == "" || cfg.Password == "" {
			return "", "", fmt.Errorf("set QUANTUM_USER and QUANTUM_PASSWORD: %w", api.ErrNoCredentials)
		}
		return cfg.User, cfg.Password, nil
	}
}
