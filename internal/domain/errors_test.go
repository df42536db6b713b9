package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/JaimeStill/doc-gateway/internal/domain"
)

func TestError_IsMatchesKind(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("put object: %w", domain.Unavailable(domain.BackendBlob, "put", cause))

	tests := []struct {
		name   string
		target error
		want   bool
	}{
		{"connection", domain.ErrConnection, true},
		{"connection for minio", &domain.Error{Kind: domain.KindConnection, Backend: domain.BackendBlob}, true},
		{"connection for qdrant", &domain.Error{Kind: domain.KindConnection, Backend: domain.BackendVector}, false},
		{"not found", domain.ErrNotFound, false},
		{"cause", cause, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Payload(t *testing.T) {
	err := domain.NotFound(domain.BackendRelational, "get_session", "abc").With("user_id", "u1")

	var de *domain.Error
	if !errors.As(fmt.Errorf("wrapped: %w", err), &de) {
		t.Fatal("errors.As() failed")
	}
	if de.Context["id"] != "abc" || de.Context["user_id"] != "u1" {
		t.Errorf("Context = %v", de.Context)
	}
	if domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("KindOf() = %v", domain.KindOf(err))
	}
	if domain.BackendOf(err) != domain.BackendRelational {
		t.Errorf("BackendOf() = %v", domain.BackendOf(err))
	}
	if got, want := err.Error(), `postgres: get_session: not_found: "abc" not found`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_WithDoesNotMutate(t *testing.T) {
	base := domain.Invalid(domain.BackendBlob, "put", "bad extension")
	_ = base.With("filename", "a.exe")

	if len(base.Context) != 0 {
		t.Errorf("base context mutated: %v", base.Context)
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if domain.KindOf(errors.New("boom")) != domain.KindInternal {
		t.Error("plain errors should be internal")
	}
}

func TestComposeHealth(t *testing.T) {
	tests := []struct {
		blob, vector, relational bool
		want                     bool
	}{
		{true, true, true, true},
		{true, false, true, false},
		{false, true, true, false},
		{true, true, false, false},
	}

	for _, tt := range tests {
		h := domain.ComposeHealth(tt.blob, tt.vector, tt.relational)
		if h.Overall != tt.want {
			t.Errorf("ComposeHealth(%v, %v, %v).Overall = %v, want %v", tt.blob, tt.vector, tt.relational, h.Overall, tt.want)
		}
	}
}

func TestMergeMetadata(t *testing.T) {
	base := map[string]any{"a": 1, "b": 2}
	got := domain.MergeMetadata(base, map[string]any{"b": 3, "c": 4})

	if got["a"] != 1 || got["b"] != 3 || got["c"] != 4 || len(got) != 3 {
		t.Errorf("MergeMetadata() = %v", got)
	}
	if base["b"] != 2 {
		t.Error("base should not be mutated")
	}
}
