package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/doc-gateway/pkg/handlers"
)

func TestRespondJSON(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.RespondJSON(w, http.StatusCreated, map[string]string{"session_id": "abc"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["session_id"] != "abc" {
		t.Errorf("body = %v", body)
	}
}

func TestRespondError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	w := httptest.NewRecorder()
	handlers.RespondError(w, logger, http.StatusServiceUnavailable, errors.New("qdrant unavailable"))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error":"qdrant unavailable"`) {
		t.Errorf("body = %q", w.Body.String())
	}
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		UserID string `json:"user_id"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"user_id":"u1"}`, false},
		{"unknown field", `{"user":"u1"}`, true},
		{"trailing data", `{"user_id":"u1"} {}`, true},
		{"too large", `{"user_id":"` + strings.Repeat("x", 64) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := handlers.DecodeJSON(req, 48, &p)

			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, handlers.ErrInvalidBody) {
				t.Errorf("error should wrap ErrInvalidBody: %v", err)
			}
		})
	}
}
