package coordinator

import (
	"context"

	"github.com/JaimeStill/doc-gateway/internal/domain"
)

// SystemStats gathers health, default collection figures and relational
// counts. A store that cannot report is named in Errors.
func (c *Coordinator) SystemStats(ctx context.Context) (*domain.SystemStats, error) {
	s, err := c.acquire("system_stats")
	if err != nil {
		return nil, err
	}

	stats := &domain.SystemStats{
		Health: c.IsHealthy(ctx),
		Errors: make(map[domain.Backend]string),
	}

	start := c.now()
	coll, err := s.vector.CollectionStats(ctx, s.vector.DefaultCollection())
	c.observe("system_stats", domain.BackendVector, start, 0, err)
	if err != nil {
		stats.Errors[domain.BackendVector] = err.Error()
	} else {
		stats.Collection = coll
	}

	start = c.now()
	rel, err := s.relational.Stats(ctx)
	c.observe("system_stats", domain.BackendRelational, start, 0, err)
	if err != nil {
		stats.Errors[domain.BackendRelational] = err.Error()
	} else {
		stats.Relational = rel
	}

	if len(stats.Errors) == 0 {
		stats.Errors = nil
	}
	return stats, nil
}
