package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/blob"
	"github.com/JaimeStill/doc-gateway/internal/config"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func setDatabaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_NAME", "gateway")
	t.Setenv("DATABASE_USER", "gateway")
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	base := write(t, dir, "config.toml", `
shutdown_timeout = "20s"

[server]
port = 8080

[database]
name = "docs"
user = "svc"

[blob]
bucket = "docs"
max_file_size = "10MB"

[vector]
collection = "chunks"
dimension = 384

[sessions]
default_ttl_hours = 12
`)
	write(t, dir, "config.staging.toml", `
[server]
port = 9090

[blob]
provider = "filesystem"
digest_lookup = "relational"
`)
	t.Setenv(config.EnvServiceEnv, "staging")

	cfg, err := config.Load(base)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want overlay 9090", cfg.Server.Port)
	}
	if cfg.Blob.Bucket != "docs" || cfg.Blob.Provider != blob.ProviderFilesystem {
		t.Errorf("blob = %+v", cfg.Blob)
	}
	if cfg.Blob.MaxFileSizeBytes() != 10_000_000 {
		t.Errorf("max file size = %d", cfg.Blob.MaxFileSizeBytes())
	}
	if cfg.Vector.Collection != "chunks" || cfg.Vector.Dimension != 384 {
		t.Errorf("vector = %+v", cfg.Vector)
	}
	if cfg.Sessions.DefaultTTLHours != 12 {
		t.Errorf("default ttl = %d", cfg.Sessions.DefaultTTLHours)
	}
	if cfg.Sessions.DigestLookup != blob.DigestLookupRelational {
		t.Errorf("digest lookup = %q, want relational", cfg.Sessions.DigestLookup)
	}
	if cfg.ShutdownTimeoutDuration() != 20*time.Second {
		t.Errorf("shutdown = %s", cfg.ShutdownTimeoutDuration())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	setDatabaseEnv(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:8000" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.API.BasePath != "/api" || cfg.API.MaxBodyBytes() != 32_000_000 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Vector.Port != 6334 || cfg.Vector.Collection != "document_chunks" {
		t.Errorf("vector = %+v", cfg.Vector)
	}
	if cfg.Sessions.SweepSchedule != "@every 5m" || cfg.Sessions.MaxTTLHours != 168 {
		t.Errorf("sessions = %+v", cfg.Sessions)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics path = %q", cfg.Metrics.Path)
	}
}

func TestLoadParseError(t *testing.T) {
	p := write(t, t.TempDir(), "config.toml", "[server\nport = ")
	if _, err := config.Load(p); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	setDatabaseEnv(t)
	t.Setenv(config.EnvServiceShutdownTimeout, "45s")
	t.Setenv(config.EnvServerPort, "7000")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("MINIO_BUCKET", "uploads")
	t.Setenv("SESSION_SWEEP_SCHEDULE", "off")

	cfg := &config.Config{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.ShutdownTimeoutDuration() != 45*time.Second {
		t.Errorf("shutdown = %s", cfg.ShutdownTimeoutDuration())
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Vector.Host != "qdrant.internal" || cfg.Blob.Bucket != "uploads" {
		t.Errorf("host = %q, bucket = %q", cfg.Vector.Host, cfg.Blob.Bucket)
	}
	if cfg.Sessions.SweepSchedule != "off" {
		t.Errorf("sweep = %q", cfg.Sessions.SweepSchedule)
	}
}

func TestFinalizeInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"shutdown timeout", config.Config{ShutdownTimeout: "soon"}},
		{"server port", config.Config{Server: config.ServerConfig{Port: 70000}}},
		{"body size", config.Config{API: config.APIConfig{MaxBodySize: "lots"}}},
		{"metrics path", config.Config{Metrics: config.MetricsConfig{Path: "metrics"}}},
	}

	setDatabaseEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestServerConfigMerge(t *testing.T) {
	base := &config.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: "30s", WriteTimeout: "30s"}
	base.Merge(&config.ServerConfig{Port: 9090, WriteTimeout: "60s"})

	if base.Host != "localhost" || base.Port != 9090 || base.ReadTimeout != "30s" || base.WriteTimeout != "60s" {
		t.Errorf("merged = %+v", base)
	}
}
