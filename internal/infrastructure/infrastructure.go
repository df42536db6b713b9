// Package infrastructure assembles the process-wide systems: lifecycle,
// logging, metrics, the three store dialers, the coordinator and the sweeper.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/blob"
	"github.com/JaimeStill/doc-gateway/internal/config"
	"github.com/JaimeStill/doc-gateway/internal/coordinator"
	"github.com/JaimeStill/doc-gateway/internal/relational"
	"github.com/JaimeStill/doc-gateway/internal/sweeper"
	"github.com/JaimeStill/doc-gateway/internal/vector"
	"github.com/JaimeStill/doc-gateway/pkg/lifecycle"
	"github.com/JaimeStill/doc-gateway/pkg/logging"
	"github.com/JaimeStill/doc-gateway/pkg/metrics"
)

// Infrastructure holds the systems shared by every command.
type Infrastructure struct {
	Lifecycle   *lifecycle.Coordinator
	Logger      *slog.Logger
	Metrics     metrics.Recorder
	Exporter    http.Handler
	Coordinator *coordinator.Coordinator
	Sweeper     *sweeper.Sweeper

	retryInterval time.Duration
}

// New builds the infrastructure without contacting any backend.
func New(cfg *config.Config) (*Infrastructure, error) {
	logger := logging.New(&cfg.Logging)

	var rec metrics.Recorder = metrics.Nop{}
	var exporter http.Handler
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus(cfg.Metrics.Namespace)
		rec = prom
		exporter = prom.Handler()
	}

	coord := coordinator.New(Dialers(cfg, logger), cfg.Sessions, logger, coordinator.WithMetrics(rec))

	sw, err := sweeper.New(coord, cfg.Sessions.SweepSchedule, time.Minute, logger)
	if err != nil {
		return nil, fmt.Errorf("sweeper init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle:     lifecycle.New(),
		Logger:        logger,
		Metrics:       rec,
		Exporter:      exporter,
		Coordinator:   coord,
		Sweeper:       sw,
		retryInterval: 10 * time.Second,
	}, nil
}

// Dialers opens the stores described by cfg.
func Dialers(cfg *config.Config, logger *slog.Logger) coordinator.Dialers {
	return coordinator.Dialers{
		Blob: func(ctx context.Context) (coordinator.BlobStore, error) {
			if cfg.Blob.Provider == blob.ProviderFilesystem {
				fs, err := blob.OpenFilesystem(&cfg.Blob, logger)
				if err != nil {
					return nil, err
				}
				return fs, nil
			}
			m, err := blob.DialMinIO(ctx, &cfg.Blob, logger)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		Vector: func(ctx context.Context) (coordinator.VectorStore, error) {
			q, err := vector.Dial(ctx, &cfg.Vector, logger)
			if err != nil {
				return nil, err
			}
			return q, nil
		},
		Relational: func(ctx context.Context) (coordinator.RelationalStore, error) {
			pg, err := relational.Dial(ctx, &cfg.Database, cfg.API.Pagination, logger)
			if err != nil {
				return nil, err
			}
			return pg, nil
		},
	}
}

// Start initializes the coordinator and schedules the sweep. A failed
// initialization is retried in the background so the process can come up
// before its backends do.
func (i *Infrastructure) Start() error {
	lc := i.Lifecycle

	lc.OnStartup(func() {
		if err := i.Coordinator.Initialize(lc.Context()); err != nil {
			i.Logger.Warn("coordinator not ready, retrying", "interval", i.retryInterval, "error", err)
			go i.retry(lc.Context())
		}
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := i.Coordinator.Shutdown(context.Background()); err != nil {
			i.Logger.Error("coordinator shutdown error", "error", err)
		}
	})

	i.Sweeper.Start(lc)
	return nil
}

func (i *Infrastructure) retry(ctx context.Context) {
	ticker := time.NewTicker(i.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := i.Coordinator.Initialize(ctx); err != nil {
				i.Logger.Warn("coordinator initialize retry failed", "error", err)
				continue
			}
			return
		}
	}
}

// Ready reports whether startup finished and the stores are connected.
func (i *Infrastructure) Ready() bool {
	return i.Lifecycle.Ready() && i.Coordinator.Ready()
}
