package sweeper_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/internal/sweeper"
	"github.com/JaimeStill/doc-gateway/pkg/lifecycle"
)

type expirer struct {
	runs atomic.Int32
	n    int64
	err  error
}

func (e *expirer) ExpireOldSessions(ctx context.Context) (int64, error) {
	e.runs.Add(1)
	return e.n, e.err
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		enabled  bool
		wantErr  bool
	}{
		{"descriptor", "@every 5m", true, false},
		{"standard", "*/10 * * * *", true, false},
		{"off", sweeper.Disabled, false, false},
		{"garbage", "every so often", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := sweeper.New(&expirer{}, tt.schedule, 0, discard)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if s.Enabled() != tt.enabled {
				t.Errorf("Enabled = %v, want %v", s.Enabled(), tt.enabled)
			}
		})
	}
}

func TestRunOnce(t *testing.T) {
	exp := &expirer{n: 3}
	s, err := sweeper.New(exp, sweeper.Disabled, time.Second, discard)
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.RunOnce(context.Background())
	if err != nil || n != 3 {
		t.Errorf("RunOnce = %d, %v; want 3", n, err)
	}

	exp.err = domain.NewError(domain.KindNotInitialized, domain.BackendSystem, "expire_sessions", errors.New("coordinator is uninitialized"))
	if _, err := s.RunOnce(context.Background()); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("err = %v", err)
	}
}

func TestScheduledRunsStopOnShutdown(t *testing.T) {
	exp := &expirer{}
	s, err := sweeper.New(exp, "@every 1s", time.Second, discard)
	if err != nil {
		t.Fatal(err)
	}

	lc := lifecycle.New()
	s.Start(lc)

	deadline := time.Now().Add(5 * time.Second)
	for exp.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if exp.runs.Load() == 0 {
		t.Fatal("sweep never ran")
	}

	if err := lc.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
