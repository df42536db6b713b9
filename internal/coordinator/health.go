package coordinator

import (
	"context"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"golang.org/x/sync/errgroup"
)

// IsHealthy pings the three stores concurrently. It never fails: an
// unreachable store, or a coordinator that is not ready, reports false.
func (c *Coordinator) IsHealthy(ctx context.Context) domain.Health {
	s, err := c.acquire("health")
	if err != nil {
		return domain.ComposeHealth(false, false, false)
	}

	var blobUp, vectorUp, relationalUp bool
	probe := func(backend domain.Backend, ping func(context.Context) error, up *bool) func() error {
		return func() error {
			start := c.now()
			err := ping(ctx)
			c.observe("health", backend, start, 0, err)
			*up = err == nil
			c.metrics.SetBackendUp(string(backend), *up)
			if err != nil {
				c.logger.Warn("health probe failed", "backend", backend, "error", err)
			}
			return nil
		}
	}

	var g errgroup.Group
	g.Go(probe(domain.BackendBlob, s.blob.Ping, &blobUp))
	g.Go(probe(domain.BackendVector, s.vector.Ping, &vectorUp))
	g.Go(probe(domain.BackendRelational, s.relational.Ping, &relationalUp))
	_ = g.Wait()

	return domain.ComposeHealth(blobUp, vectorUp, relationalUp)
}
