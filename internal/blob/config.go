package blob

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/docker/go-units"
)

// Providers.
const (
	ProviderMinIO      = "minio"
	ProviderFilesystem = "filesystem"
)

// Digest lookup strategies.
const (
	DigestLookupBlob       = "blob"
	DigestLookupRelational = "relational"
)

// Env maps environment variable names for blob configuration.
type Env struct {
	Provider     string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       string
	Region       string
	Bucket       string
	BaseURL      string
	BasePath     string
	MaxFileSize  string
	DigestLookup string
}

// Config contains blob store configuration.
type Config struct {
	Provider          string   `toml:"provider"`
	Endpoint          string   `toml:"endpoint"`
	AccessKey         string   `toml:"access_key"`
	SecretKey         string   `toml:"secret_key"`
	UseSSL            bool     `toml:"use_ssl"`
	Region            string   `toml:"region"`
	Bucket            string   `toml:"bucket"`
	BaseURL           string   `toml:"base_url"`
	BasePath          string   `toml:"base_path"`
	MaxFileSize       string   `toml:"max_file_size"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	DigestLookup      string   `toml:"digest_lookup"`
	maxFileSizeVal    int64
}

// MaxFileSizeBytes returns the parsed size ceiling. Valid after Finalize.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.maxFileSizeVal
}

// Policy returns the upload policy described by the configuration.
func (c *Config) Policy() Policy {
	return Policy{
		AllowedExtensions: c.AllowedExtensions,
		MaxSize:           c.maxFileSizeVal,
	}
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
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.AccessKey != "" {
		c.AccessKey = overlay.AccessKey
	}
	if overlay.SecretKey != "" {
		c.SecretKey = overlay.SecretKey
	}
	if overlay.UseSSL {
		c.UseSSL = true
	}
	if overlay.Region != "" {
		c.Region = overlay.Region
	}
	if overlay.Bucket != "" {
		c.Bucket = overlay.Bucket
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxFileSize != "" {
		c.MaxFileSize = overlay.MaxFileSize
	}
	if overlay.AllowedExtensions != nil {
		c.AllowedExtensions = overlay.AllowedExtensions
	}
	if overlay.DigestLookup != "" {
		c.DigestLookup = overlay.DigestLookup
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderMinIO
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:9000"
	}
	if c.Bucket == "" {
		c.Bucket = "documents"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://minio/bucket"
	}
	if c.BasePath == "" {
		c.BasePath = ".data/blobs"
	}
	if c.MaxFileSize == "" {
		c.MaxFileSize = "50MB"
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{"pdf", "docx", "txt", "md", "rtf"}
	}
	if c.DigestLookup == "" {
		c.DigestLookup = DigestLookupBlob
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.Provider, &c.Provider)
	set(env.Endpoint, &c.Endpoint)
	set(env.AccessKey, &c.AccessKey)
	set(env.SecretKey, &c.SecretKey)
	set(env.Region, &c.Region)
	set(env.Bucket, &c.Bucket)
	set(env.BaseURL, &c.BaseURL)
	set(env.BasePath, &c.BasePath)
	set(env.MaxFileSize, &c.MaxFileSize)
	set(env.DigestLookup, &c.DigestLookup)

	if env.UseSSL != "" {
		if v := os.Getenv(env.UseSSL); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.UseSSL = b
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderMinIO:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint required")
		}
	case ProviderFilesystem:
		if c.BasePath == "" {
			return fmt.Errorf("base_path required")
		}
	default:
		return fmt.Errorf("invalid provider: %s (must be minio or filesystem)", c.Provider)
	}

	if c.Bucket == "" {
		return fmt.Errorf("bucket required")
	}

	switch c.DigestLookup {
	case DigestLookupBlob, DigestLookupRelational:
	default:
		return fmt.Errorf("invalid digest_lookup: %s (must be blob or relational)", c.DigestLookup)
	}

	size, err := units.FromHumanSize(c.MaxFileSize)
	if err != nil {
		return fmt.Errorf("invalid max_file_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	c.maxFileSizeVal = size

	exts := make([]string, 0, len(c.AllowedExtensions))
	for _, ext := range c.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" && !slices.Contains(exts, ext) {
			exts = append(exts, ext)
		}
	}
	if len(exts) == 0 {
		return fmt.Errorf("allowed_extensions required")
	}
	c.AllowedExtensions = exts

	return nil
}
