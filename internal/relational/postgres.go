// Package relational keeps document metadata rows and session records in
// Postgres. Statements go through database/sql with the pgx driver, and the
// schema ships as embedded golang-migrate migrations.
package relational

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/database"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
)

// Postgres is the relational store.
type Postgres struct {
	db         *sql.DB
	pagination pagination.Config
	logger     *slog.Logger
}

// Dial opens the connection pool and verifies it with a trivial query.
func Dial(ctx context.Context, cfg *database.Config, page pagination.Config, logger *slog.Logger) (*Postgres, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, domain.Unavailable(domain.BackendRelational, "connect", err)
	}

	p := New(db, page, logger)
	if err := p.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	p.logger.Info("postgres connected", "host", cfg.Host, "database", cfg.Name)
	return p, nil
}

// New wraps an open pool.
func New(db *sql.DB, page pagination.Config, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:         db,
		pagination: page,
		logger:     logger.With("system", "relational"),
	}
}

// Ping runs SELECT 1.
func (p *Postgres) Ping(ctx context.Context) error {
	var one int
	if err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return domain.Unavailable(domain.BackendRelational, "ping", err)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Stats counts documents and sessions.
func (p *Postgres) Stats(ctx context.Context) (*domain.RelationalStats, error) {
	stats := &domain.RelationalStats{
		DocumentsByStatus: map[string]int{},
		Sessions:          domain.SessionStats{ByStatus: map[string]int{}},
	}

	byStatus := func(q string, into map[string]int) (int, error) {
		rows, err := p.db.QueryContext(ctx, q)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		total := 0
		for rows.Next() {
			var status string
			var n int
			if err := rows.Scan(&status, &n); err != nil {
				return 0, err
			}
			into[status] = n
			total += n
		}
		return total, rows.Err()
	}

	total, err := byStatus("SELECT processing_status, COUNT(*) FROM documents GROUP BY processing_status", stats.DocumentsByStatus)
	if err != nil {
		return nil, classify("stats", "", err)
	}
	stats.Documents = total

	total, err = byStatus("SELECT status, COUNT(*) FROM sessions GROUP BY status", stats.Sessions.ByStatus)
	if err != nil {
		return nil, classify("stats", "", err)
	}
	stats.Sessions.Total = total

	return stats, nil
}

// encodeMetadata renders a JSONB parameter as text.
func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(data []byte) (map[string]any, error) {
	m := map[string]any{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
