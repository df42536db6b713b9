package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
	Path      string `toml:"path"`
}

func (c *MetricsConfig) Finalize() error {
	if c.Namespace == "" {
		c.Namespace = "doc_gateway"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path %q must start with /", c.Path)
	}
	return nil
}

// Merge applies values from overlay configuration. An overlay can enable
// metrics but not disable them; use METRICS_ENABLED for that.
func (c *MetricsConfig) Merge(overlay *MetricsConfig) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Namespace != "" {
		c.Namespace = overlay.Namespace
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
}
