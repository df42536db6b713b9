package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/doc-gateway/pkg/middleware"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
	"github.com/docker/go-units"
)

// APIConfig contains HTTP API settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxBatchFiles int                   `toml:"max_batch_files"`
	MaxBodySize   string                `toml:"max_body_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	maxBodyVal    int64
}

// MaxBodyBytes returns the parsed JSON body ceiling. Valid after Finalize.
func (c *APIConfig) MaxBodyBytes() int64 {
	return c.maxBodyVal
}

func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	size, err := units.FromHumanSize(c.MaxBodySize)
	if err != nil {
		return fmt.Errorf("invalid max_body_size: %w", err)
	}
	c.maxBodyVal = size
	if c.MaxBatchFiles < 1 {
		return fmt.Errorf("max_batch_files must be positive")
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBatchFiles != 0 {
		c.MaxBatchFiles = overlay.MaxBatchFiles
	}
	if overlay.MaxBodySize != "" {
		c.MaxBodySize = overlay.MaxBodySize
	}
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBatchFiles == 0 {
		c.MaxBatchFiles = 20
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "32MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
}
