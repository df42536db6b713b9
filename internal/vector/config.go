package vector

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Distance metrics accepted in configuration.
const (
	DistanceCosine    = "cosine"
	DistanceDot       = "dot"
	DistanceEuclid    = "euclid"
	DistanceManhattan = "manhattan"
)

// Env maps environment variable names for vector store configuration.
type Env struct {
	Host           string
	Port           string
	APIKey         string
	UseTLS         string
	Collection     string
	Dimension      string
	ConnectTimeout string
}

// Config contains Qdrant connection and collection defaults.
type Config struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	APIKey         string `toml:"api_key"`
	UseTLS         bool   `toml:"use_tls"`
	Collection     string `toml:"collection"`
	Dimension      uint64 `toml:"dimension"`
	Distance       string `toml:"distance"`
	DefaultLimit   int    `toml:"default_limit"`
	MaxLimit       int    `toml:"max_limit"`
	ConnectTimeout string `toml:"connect_timeout"`
}

// ConnectTimeoutDuration parses ConnectTimeout. Valid after Finalize.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnectTimeout)
	return d
}

// Limit normalises a requested search limit into [1, MaxLimit].
func (c *Config) Limit(n int) int {
	if n <= 0 {
		return c.DefaultLimit
	}
	if n > c.MaxLimit {
		return c.MaxLimit
	}
	return n
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
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.UseTLS {
		c.UseTLS = true
	}
	if overlay.Collection != "" {
		c.Collection = overlay.Collection
	}
	if overlay.Dimension != 0 {
		c.Dimension = overlay.Dimension
	}
	if overlay.Distance != "" {
		c.Distance = overlay.Distance
	}
	if overlay.DefaultLimit != 0 {
		c.DefaultLimit = overlay.DefaultLimit
	}
	if overlay.MaxLimit != 0 {
		c.MaxLimit = overlay.MaxLimit
	}
	if overlay.ConnectTimeout != "" {
		c.ConnectTimeout = overlay.ConnectTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "document_chunks"
	}
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.Distance == "" {
		c.Distance = DistanceCosine
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = 100
	}
	if c.ConnectTimeout == "" {
		c.ConnectTimeout = "10s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Host != "" {
		if v := os.Getenv(env.Host); v != "" {
			c.Host = v
		}
	}
	if env.Port != "" {
		if v := os.Getenv(env.Port); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				c.Port = port
			}
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.UseTLS != "" {
		if v := os.Getenv(env.UseTLS); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.UseTLS = b
			}
		}
	}
	if env.Collection != "" {
		if v := os.Getenv(env.Collection); v != "" {
			c.Collection = v
		}
	}
	if env.Dimension != "" {
		if v := os.Getenv(env.Dimension); v != "" {
			if dim, err := strconv.ParseUint(v, 10, 64); err == nil {
				c.Dimension = dim
			}
		}
	}
	if env.ConnectTimeout != "" {
		if v := os.Getenv(env.ConnectTimeout); v != "" {
			c.ConnectTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("host required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("collection required")
	}
	if _, err := parseDistance(c.Distance); err != nil {
		return err
	}
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be positive")
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit %d is below default_limit %d", c.MaxLimit, c.DefaultLimit)
	}
	if _, err := time.ParseDuration(c.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid connect_timeout: %w", err)
	}
	return nil
}
