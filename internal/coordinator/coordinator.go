// Package coordinator presents the blob, vector and relational stores as one
// gateway. Each logical operation runs as a fixed sequence of store calls;
// partial failures are aggregated into results rather than hidden.
//
// A Coordinator moves through uninitialized, initializing, ready and failed.
// Every operation other than Initialize, Shutdown and IsHealthy requires
// ready and otherwise fails with a KindNotInitialized error.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/blob"
	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/metrics"
)

// State is the initialization state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

type stores struct {
	blob       BlobStore
	vector     VectorStore
	relational RelationalStore
	digest     blob.DigestFinder
}

// Coordinator orchestrates the three stores.
type Coordinator struct {
	dialers Dialers
	cfg     Config
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	state  State
	stores *stores
	gen    uint64
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithMetrics sets the operation recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Coordinator) {
		c.metrics = r
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates an uninitialized Coordinator.
func New(dialers Dialers, cfg Config, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		dialers: dialers,
		cfg:     cfg,
		metrics: metrics.Nop{},
		logger:  logger.With("system", "coordinator"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current initialization state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ready reports whether the coordinator accepts operations.
func (c *Coordinator) Ready() bool {
	return c.State() == StateReady
}

// Initialize dials blob, vector and relational stores in that order. If one
// fails, the stores already opened are closed and a KindConnection error
// naming the failed backend is returned. Calling Initialize when ready is a
// no-op; calling it while another Initialize is dialing is a KindConflict.
//
// The lock is not held while dialing, so State, Ready and every operation
// answer immediately during a slow connect.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateReady:
		c.mu.Unlock()
		return nil
	case StateInitializing:
		c.mu.Unlock()
		return domain.NewError(domain.KindConflict, domain.BackendSystem, "initialize",
			errors.New("initialize already in progress"))
	}
	c.state = StateInitializing
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	start := c.now()
	s, backend, err := c.dial(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		if s != nil {
			if cerr := s.close(); cerr != nil {
				c.logger.Warn("close after superseded initialize", "error", cerr)
			}
		}
		return domain.NewError(domain.KindNotInitialized, domain.BackendSystem, "initialize",
			errors.New("shut down during initialize"))
	}

	if err != nil {
		c.state = StateFailed
		c.metrics.SetBackendUp(string(backend), false)
		c.record("initialize", backend, statusOf(err), start, 0)
		c.logger.Error("initialize failed", "backend", backend, "error", err)
		return domain.Unavailable(backend, "initialize", err)
	}

	c.stores = s
	c.state = StateReady
	c.record("initialize", domain.BackendSystem, string(domain.StatusSuccess), start, 0)
	c.logger.Info("coordinator ready", "duration", time.Since(start))
	return nil
}

// dial opens each store in order. On failure the stores already opened are
// closed and the failing backend is returned with the error.
func (c *Coordinator) dial(ctx context.Context) (*stores, domain.Backend, error) {
	s := &stores{}

	fail := func(backend domain.Backend, err error) (*stores, domain.Backend, error) {
		if cerr := s.close(); cerr != nil {
			c.logger.Warn("teardown after failed initialize", "error", cerr)
		}
		return nil, backend, err
	}

	b, err := c.dialers.Blob(ctx)
	if err != nil {
		return fail(domain.BackendBlob, err)
	}
	s.blob = b
	c.metrics.SetBackendUp(string(domain.BackendBlob), true)

	v, err := c.dialers.Vector(ctx)
	if err != nil {
		return fail(domain.BackendVector, err)
	}
	s.vector = v
	c.metrics.SetBackendUp(string(domain.BackendVector), true)

	r, err := c.dialers.Relational(ctx)
	if err != nil {
		return fail(domain.BackendRelational, err)
	}
	s.relational = r
	c.metrics.SetBackendUp(string(domain.BackendRelational), true)

	s.digest = s.blob
	if c.cfg.DigestLookup == blob.DigestLookupRelational {
		s.digest = s.relational
	}
	return s, "", nil
}

// close releases the opened stores in reverse dial order.
func (s *stores) close() error {
	var errs []error
	if s.relational != nil {
		if err := s.relational.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", domain.BackendRelational, err))
		}
	}
	if s.vector != nil {
		if err := s.vector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", domain.BackendVector, err))
		}
	}
	if s.blob != nil {
		if err := s.blob.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", domain.BackendBlob, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown closes every store and returns to uninitialized. An Initialize
// still dialing is superseded and closes what it opened.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stores
	c.stores = nil
	c.state = StateUninitialized
	c.gen++
	if s == nil {
		return nil
	}

	err := s.close()
	for _, b := range domain.Backends {
		c.metrics.SetBackendUp(string(b), false)
	}

	c.logger.Info("coordinator shut down")
	return err
}

// acquire returns the live stores or a KindNotInitialized error.
func (c *Coordinator) acquire(op string) (*stores, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateReady || c.stores == nil {
		return nil, domain.NewError(domain.KindNotInitialized, domain.BackendSystem, op,
			fmt.Errorf("coordinator is %s", c.state))
	}
	return c.stores, nil
}

func (c *Coordinator) record(op string, backend domain.Backend, status string, start time.Time, items int) {
	c.metrics.RecordOperation(metrics.Operation{
		Name:     op,
		Backend:  string(backend),
		Status:   status,
		Duration: c.now().Sub(start),
		Items:    items,
	})
}

// observe records a single-backend call keyed by its error outcome.
func (c *Coordinator) observe(op string, backend domain.Backend, start time.Time, items int, err error) {
	c.record(op, backend, statusOf(err), start, items)
}

func statusOf(err error) string {
	if err == nil {
		return string(domain.StatusSuccess)
	}
	return domain.KindOf(err).String()
}
