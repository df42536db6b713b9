// Package metrics records operation outcomes for backend calls.
//
// Recording is fire-and-forget: callers never read values back, so a
// Recorder must not block or fail.
package metrics

import "time"

// Operation describes one completed backend call.
type Operation struct {
	Name     string
	Backend  string
	Status   string
	Duration time.Duration
	Items    int
}

// Recorder receives operation outcomes and backend liveness.
type Recorder interface {
	RecordOperation(op Operation)
	SetBackendUp(backend string, up bool)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOperation(Operation) {}
func (Nop) SetBackendUp(string, bool) {}
