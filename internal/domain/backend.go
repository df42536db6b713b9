// Package domain holds the entities shared by the store adapters and the
// coordinator: documents, chunks, sessions, their filters and results, and
// the tagged error type used to report failures.
package domain

// Backend names one of the external stores.
type Backend string

const (
	BackendBlob       Backend = "minio"
	BackendVector     Backend = "qdrant"
	BackendRelational Backend = "postgres"
	BackendSystem     Backend = "system"
)

// Backends lists the three stores in initialization order.
var Backends = []Backend{BackendBlob, BackendVector, BackendRelational}

// Status is the overall outcome of a batch or multi-backend operation.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
	StatusFailed         Status = "failed"
	StatusNotFound       Status = "not_found"
)

// ItemFailure reports one rejected item of a batch.
type ItemFailure struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}
