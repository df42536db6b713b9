package blob_test

import (
	"slices"
	"testing"

	"github.com/JaimeStill/doc-gateway/internal/blob"
)

func TestConfig_Finalize_Defaults(t *testing.T) {
	cfg := &blob.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}

	if cfg.Provider != blob.ProviderMinIO {
		t.Errorf("Provider = %q, want %q", cfg.Provider, blob.ProviderMinIO)
	}
	if cfg.Bucket != "documents" {
		t.Errorf("Bucket = %q, want documents", cfg.Bucket)
	}
	if cfg.MaxFileSizeBytes() != 50*1000*1000 {
		t.Errorf("MaxFileSizeBytes() = %d, want %d", cfg.MaxFileSizeBytes(), 50*1000*1000)
	}
	want := []string{"pdf", "docx", "txt", "md", "rtf"}
	if !slices.Equal(cfg.AllowedExtensions, want) {
		t.Errorf("AllowedExtensions = %v, want %v", cfg.AllowedExtensions, want)
	}
	if cfg.DigestLookup != blob.DigestLookupBlob {
		t.Errorf("DigestLookup = %q, want %q", cfg.DigestLookup, blob.DigestLookupBlob)
	}
}

func TestConfig_Finalize_NormalizesExtensions(t *testing.T) {
	cfg := &blob.Config{AllowedExtensions: []string{".PDF", " txt", "pdf", ""}}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}

	want := []string{"pdf", "txt"}
	if !slices.Equal(cfg.AllowedExtensions, want) {
		t.Errorf("AllowedExtensions = %v, want %v", cfg.AllowedExtensions, want)
	}
}

func TestConfig_Finalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  blob.Config
	}{
		{"provider", blob.Config{Provider: "s3"}},
		{"size", blob.Config{MaxFileSize: "lots"}},
		{"digest lookup", blob.Config{DigestLookup: "index"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if err := cfg.Finalize(nil); err == nil {
				t.Error("Finalize() succeeded, want error")
			}
		})
	}
}

func TestConfig_Finalize_Env(t *testing.T) {
	t.Setenv("TEST_BLOB_PROVIDER", "filesystem")
	t.Setenv("TEST_BLOB_MAX_SIZE", "1KB")
	t.Setenv("TEST_BLOB_SSL", "true")

	cfg := &blob.Config{}
	env := &blob.Env{
		Provider:    "TEST_BLOB_PROVIDER",
		MaxFileSize: "TEST_BLOB_MAX_SIZE",
		UseSSL:      "TEST_BLOB_SSL",
	}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}

	if cfg.Provider != blob.ProviderFilesystem {
		t.Errorf("Provider = %q, want filesystem", cfg.Provider)
	}
	if cfg.MaxFileSizeBytes() != 1000 {
		t.Errorf("MaxFileSizeBytes() = %d, want 1000", cfg.MaxFileSizeBytes())
	}
	if !cfg.UseSSL {
		t.Error("UseSSL = false, want true")
	}
}

func TestConfig_Merge(t *testing.T) {
	base := &blob.Config{Bucket: "documents", Endpoint: "localhost:9000"}
	base.Merge(&blob.Config{Bucket: "archive"})

	if base.Bucket != "archive" {
		t.Errorf("Bucket = %q, want archive", base.Bucket)
	}
	if base.Endpoint != "localhost:9000" {
		t.Errorf("Endpoint = %q, want unchanged", base.Endpoint)
	}
}
