// Package api exposes the coordinator over HTTP. Handlers translate requests
// into coordinator calls and results or errors into status codes; they hold
// no storage logic of their own.
package api

import (
	"log/slog"

	"github.com/JaimeStill/doc-gateway/pkg/pagination"
	"github.com/JaimeStill/doc-gateway/pkg/routes"
)

// Gateway is the full coordinator surface used by the HTTP layer.
type Gateway interface {
	Documents
	Chunks
	Sessions
	System
}

// Options configures the handlers.
type Options struct {
	BasePath      string
	Pagination    pagination.Config
	MaxUploadSize int64
	MaxBatchFiles int
	MaxBodyBytes  int64
}

func (o *Options) defaults() {
	if o.MaxBatchFiles <= 0 {
		o.MaxBatchFiles = 20
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 32 << 20
	}
	if o.Pagination.MaxPageSize <= 0 {
		o.Pagination = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
	}
}

// Register mounts every handler group on sys under opts.BasePath.
func Register(sys routes.System, gw Gateway, opts Options, logger *slog.Logger) {
	opts.defaults()
	logger = logger.With("module", "api")

	groups := []routes.Group{
		NewDocumentHandler(gw, logger, opts).Routes(),
		NewChunkHandler(gw, logger, opts).Routes(),
		NewSessionHandler(gw, logger, opts).Routes(),
		NewSystemHandler(gw, logger).Routes(),
	}

	for _, g := range groups {
		g.Prefix = opts.BasePath + g.Prefix
		sys.RegisterGroup(g)
	}
}
