package query_test

import (
	"testing"

	"github.com/JaimeStill/doc-gateway/pkg/query"
)

func TestNewProjectionMap(t *testing.T) {
	pm := query.NewProjectionMap("public", "sessions", "s")

	if pm.Alias() != "s" {
		t.Errorf("Alias() = %q, want %q", pm.Alias(), "s")
	}
	if pm.Table() != "public.sessions s" {
		t.Errorf("Table() = %q, want %q", pm.Table(), "public.sessions s")
	}
}

func TestProjectionMap_Column(t *testing.T) {
	pm := query.NewProjectionMap("public", "sessions", "s").
		Project("session_id", "SessionID").
		Project("expires_at", "ExpiresAt")

	tests := []struct {
		view string
		want string
	}{
		{"SessionID", "s.session_id"},
		{"ExpiresAt", "s.expires_at"},
		{"Unknown", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			if got := pm.Column(tt.view); got != tt.want {
				t.Errorf("Column(%q) = %q, want %q", tt.view, got, tt.want)
			}
		})
	}
}

func TestProjectionMap_Columns(t *testing.T) {
	pm := query.NewProjectionMap("public", "sessions", "s").
		Project("session_id", "SessionID").
		Project("user_id", "UserID")

	if got, want := pm.Columns(), "s.session_id, s.user_id"; got != want {
		t.Errorf("Columns() = %q, want %q", got, want)
	}

	list := pm.ColumnList()
	list[0] = "mutated"
	if pm.ColumnList()[0] != "s.session_id" {
		t.Error("ColumnList() should return a copy")
	}
}

func TestParseSortFields(t *testing.T) {
	got := query.ParseSortFields(" -CreatedAt , Filename,,-")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), got)
	}
	if got[0].Field != "CreatedAt" || !got[0].Descending {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Field != "Filename" || got[1].Descending {
		t.Errorf("got[1] = %+v", got[1])
	}
	if query.ParseSortFields("") != nil {
		t.Error("empty input should return nil")
	}
}
