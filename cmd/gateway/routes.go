package main

import (
	"net/http"

	"github.com/JaimeStill/doc-gateway/internal/api"
	"github.com/JaimeStill/doc-gateway/internal/config"
	"github.com/JaimeStill/doc-gateway/internal/infrastructure"
	"github.com/JaimeStill/doc-gateway/pkg/middleware"
	"github.com/JaimeStill/doc-gateway/pkg/routes"
)

// buildHandler wires the API and metrics behind the middleware stack.
// Liveness and readiness are served by internal/server.
func buildHandler(cfg *config.Config, infra *infrastructure.Infrastructure) http.Handler {
	r := routes.New()

	api.Register(r, infra.Coordinator, api.Options{
		BasePath:      cfg.API.BasePath,
		Pagination:    cfg.API.Pagination,
		MaxUploadSize: cfg.Blob.MaxFileSizeBytes(),
		MaxBatchFiles: cfg.API.MaxBatchFiles,
		MaxBodyBytes:  cfg.API.MaxBodyBytes(),
	}, infra.Logger)

	if infra.Exporter != nil {
		r.Handle(cfg.Metrics.Path, infra.Exporter)
	}

	mw := middleware.New()
	mw.Use(middleware.TrimSlash())
	mw.Use(middleware.CORS(&cfg.API.CORS))
	mw.Use(middleware.Logger(infra.Logger))
	return mw.Apply(r.Build())
}
