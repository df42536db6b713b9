package lifecycle_test

import (
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/doc-gateway/pkg/lifecycle"
)

func TestStartupReadiness(t *testing.T) {
	lc := lifecycle.New()
	var checker lifecycle.ReadinessChecker = lc

	release := make(chan struct{})
	var mu sync.Mutex
	var started []string

	for _, name := range []string{"blob", "vector", "relational"} {
		lc.OnStartup(func() {
			<-release
			mu.Lock()
			started = append(started, name)
			mu.Unlock()
		})
	}

	if checker.Ready() {
		t.Fatal("ready before startup hooks returned")
	}

	close(release)
	lc.WaitForStartup()

	if !checker.Ready() {
		t.Error("not ready after WaitForStartup")
	}
	if len(started) != 3 {
		t.Errorf("started = %v", started)
	}
}

func TestShutdown(t *testing.T) {
	tests := []struct {
		name    string
		hold    time.Duration
		timeout time.Duration
		wantErr bool
	}{
		{"hooks finish", 0, time.Second, false},
		{"hook overruns", 500 * time.Millisecond, 50 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := lifecycle.New()
			lc.WaitForStartup()

			closed := make(chan struct{})
			lc.OnShutdown(func() {
				<-lc.Context().Done()
				time.Sleep(tt.hold)
				close(closed)
			})

			err := lc.Shutdown(tt.timeout)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Shutdown() error = %v, wantErr %v", err, tt.wantErr)
			}
			if lc.Ready() {
				t.Error("still ready after Shutdown")
			}
			if lc.Context().Err() == nil {
				t.Error("context not cancelled")
			}
			if !tt.wantErr {
				select {
				case <-closed:
				default:
					t.Error("shutdown hook did not complete")
				}
			}
		})
	}
}
