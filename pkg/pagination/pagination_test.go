package pagination_test

import (
	"net/url"
	"testing"

	"github.com/JaimeStill/doc-gateway/pkg/pagination"
)

func TestPageRequest_Normalize(t *testing.T) {
	cfg := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

	tests := []struct {
		name         string
		request      pagination.PageRequest
		wantPage     int
		wantPageSize int
	}{
		{"valid values unchanged", pagination.PageRequest{Page: 2, PageSize: 25}, 2, 25},
		{"zero page becomes 1", pagination.PageRequest{Page: 0, PageSize: 25}, 1, 25},
		{"negative page size gets default", pagination.PageRequest{Page: 1, PageSize: -10}, 1, 20},
		{"page size exceeding max gets capped", pagination.PageRequest{Page: 1, PageSize: 200}, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.request.Normalize(cfg)

			if tt.request.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", tt.request.Page, tt.wantPage)
			}
			if tt.request.PageSize != tt.wantPageSize {
				t.Errorf("PageSize = %d, want %d", tt.request.PageSize, tt.wantPageSize)
			}
		})
	}
}

func TestPageRequest_Offset(t *testing.T) {
	r := pagination.PageRequest{Page: 3, PageSize: 25}
	if got := r.Offset(); got != 50 {
		t.Errorf("Offset() = %d, want 50", got)
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	cfg := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
	values := url.Values{
		"page":      {"2"},
		"page_size": {"500"},
		"search":    {"report"},
		"sort":      {"-CreatedAt"},
	}

	req := pagination.PageRequestFromQuery(values, cfg)

	if req.Page != 2 || req.PageSize != 100 {
		t.Errorf("Page/PageSize = %d/%d, want 2/100", req.Page, req.PageSize)
	}
	if req.Search == nil || *req.Search != "report" {
		t.Errorf("Search = %v, want report", req.Search)
	}
	if len(req.Sort) != 1 || req.Sort[0].Field != "CreatedAt" || !req.Sort[0].Descending {
		t.Errorf("Sort = %+v", req.Sort)
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		wantPages int
	}{
		{"exact", 40, 20, 2},
		{"remainder", 41, 20, 3},
		{"empty", 0, 20, 1},
		{"zero page size", 7, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pagination.NewPageResult[string](nil, tt.total, 1, tt.pageSize)
			if r.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", r.TotalPages, tt.wantPages)
			}
			if r.Data == nil {
				t.Error("Data should be non-nil")
			}
			if r.HasMore != (tt.wantPages > 1) {
				t.Errorf("HasMore = %v on page 1 of %d", r.HasMore, tt.wantPages)
			}
		})
	}
}

func TestWindowFromQuery(t *testing.T) {
	cfg := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

	tests := []struct {
		name   string
		values url.Values
		want   pagination.Window
	}{
		{"defaults", url.Values{}, pagination.Window{Offset: 0, Limit: 20}},
		{"explicit", url.Values{"offset": {"40"}, "limit": {"10"}}, pagination.Window{Offset: 40, Limit: 10}},
		{"clamped", url.Values{"offset": {"-5"}, "limit": {"1000"}}, pagination.Window{Offset: 0, Limit: 100}},
		{"garbage", url.Values{"offset": {"x"}, "limit": {"y"}}, pagination.Window{Offset: 0, Limit: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pagination.WindowFromQuery(tt.values, cfg); got != tt.want {
				t.Errorf("WindowFromQuery() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfig_Finalize(t *testing.T) {
	t.Setenv("TEST_PAGINATION_MAX", "50")

	cfg := &pagination.Config{}
	err := cfg.Finalize(&pagination.Env{MaxPageSize: "TEST_PAGINATION_MAX"})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if cfg.DefaultPageSize != 20 || cfg.MaxPageSize != 50 {
		t.Errorf("config = %+v", cfg)
	}

	bad := &pagination.Config{DefaultPageSize: 200, MaxPageSize: 100}
	if err := bad.Finalize(nil); err == nil {
		t.Error("Finalize() should reject default above max")
	}
}
