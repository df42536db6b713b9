package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/docker/go-units"
)

// Policy is the per-bucket upload policy.
type Policy struct {
	AllowedExtensions []string
	MaxSize           int64
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Check validates one upload against the policy. Failures are KindValidation.
func (p Policy) Check(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return domain.Invalid(domain.BackendBlob, "put", "filename required")
	}

	ext := Extension(filename)
	if !slices.Contains(p.AllowedExtensions, ext) {
		return domain.Invalid(domain.BackendBlob, "put",
			"extension %q not allowed (allowed: %s)", ext, strings.Join(p.AllowedExtensions, ", ")).
			With("filename", filename)
	}

	if size <= 0 {
		return domain.Invalid(domain.BackendBlob, "put", "empty file").With("filename", filename)
	}

	if p.MaxSize > 0 && size > p.MaxSize {
		return domain.Invalid(domain.BackendBlob, "put",
			"file size %s exceeds limit %s", units.HumanSize(float64(size)), units.HumanSize(float64(p.MaxSize))).
			With("filename", filename).
			With("file_size", size)
	}

	return nil
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileURL builds the public URL of an object.
func FileURL(baseURL, bucket, documentID string) string {
	return strings.TrimRight(baseURL, "/") + "/" + bucket + "/" + documentID
}
