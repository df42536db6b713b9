package coordinator

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// Env maps environment variable names for session configuration.
type Env struct {
	DefaultTTLHours string
	SweepSchedule   string
}

// Config holds the session policy consumed by the coordinator.
type Config struct {
	DefaultTTLHours  int    `toml:"default_ttl_hours"`
	MinTTLHours      int    `toml:"min_ttl_hours"`
	MaxTTLHours      int    `toml:"max_ttl_hours"`
	CollectionPrefix string `toml:"collection_prefix"`
	SweepSchedule    string `toml:"sweep_schedule"`
	DigestLookup     string `toml:"-"`
}

// Finalize applies defaults, loads environment overrides, and validates the configuration.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *Config) Merge(overlay *Config) {
	if overlay.DefaultTTLHours != 0 {
		c.DefaultTTLHours = overlay.DefaultTTLHours
	}
	if overlay.MinTTLHours != 0 {
		c.MinTTLHours = overlay.MinTTLHours
	}
	if overlay.MaxTTLHours != 0 {
		c.MaxTTLHours = overlay.MaxTTLHours
	}
	if overlay.CollectionPrefix != "" {
		c.CollectionPrefix = overlay.CollectionPrefix
	}
	if overlay.SweepSchedule != "" {
		c.SweepSchedule = overlay.SweepSchedule
	}
}

// CollectionName returns the temporary collection name for a session.
func (c *Config) CollectionName(sessionID string) string {
	return c.CollectionPrefix + strings.ReplaceAll(sessionID, "-", "")
}

func (c *Config) loadDefaults() {
	if c.DefaultTTLHours == 0 {
		c.DefaultTTLHours = 24
	}
	if c.MinTTLHours == 0 {
		c.MinTTLHours = 1
	}
	if c.MaxTTLHours == 0 {
		c.MaxTTLHours = 168
	}
	if c.CollectionPrefix == "" {
		c.CollectionPrefix = "session_"
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = "@every 5m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.DefaultTTLHours != "" {
		if v := os.Getenv(env.DefaultTTLHours); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.DefaultTTLHours = n
			}
		}
	}
	if env.SweepSchedule != "" {
		if v := os.Getenv(env.SweepSchedule); v != "" {
			c.SweepSchedule = v
		}
	}
}

func (c *Config) validate() error {
	if c.MinTTLHours < 1 {
		return fmt.Errorf("min_ttl_hours must be at least 1")
	}
	if c.MaxTTLHours < c.MinTTLHours {
		return fmt.Errorf("max_ttl_hours %d is below min_ttl_hours %d", c.MaxTTLHours, c.MinTTLHours)
	}
	if c.DefaultTTLHours < c.MinTTLHours || c.DefaultTTLHours > c.MaxTTLHours {
		return fmt.Errorf("default_ttl_hours %d outside [%d, %d]", c.DefaultTTLHours, c.MinTTLHours, c.MaxTTLHours)
	}
	if c.SweepSchedule != "off" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep_schedule: %w", err)
		}
	}
	return nil
}
