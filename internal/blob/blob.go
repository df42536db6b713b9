// Package blob stores raw document bytes keyed by document id, with a small
// set of side metadata on every object. Two stores are provided: MinIO for
// deployments and a filesystem store for local development and tests.
package blob

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/domain"
)

// Side metadata keys stored with every object.
const (
	MetaOriginalFilename = "original_filename"
	MetaFileHash         = "file_hash"
	MetaUploadTime       = "upload_time"
	MetaFileSize         = "file_size"
)

// PutObject is one write request. DocumentID is the object key.
type PutObject struct {
	DocumentID  string
	Filename    string
	ContentType string
	Digest      string
	Data        []byte
}

// PutResult reports a batch write. Validation failures never abort siblings.
type PutResult struct {
	Objects  []domain.Object      `json:"objects"`
	Failures []domain.ItemFailure `json:"failures"`
}

// DigestFinder locates an object by content digest.
// The blob stores implement it by scanning; other implementations may index.
type DigestFinder interface {
	FindByDigest(ctx context.Context, digest string) (*domain.Object, error)
}

// sideMetadata renders the side metadata for an object. The filename is
// path-escaped so non-ASCII names survive HTTP header transport.
func sideMetadata(p PutObject, size int64, now time.Time) map[string]string {
	return map[string]string{
		MetaOriginalFilename: url.PathEscape(p.Filename),
		MetaFileHash:         p.Digest,
		MetaUploadTime:       now.UTC().Format(time.RFC3339),
		MetaFileSize:         strconv.FormatInt(size, 10),
	}
}

// normalizeKey maps "X-Amz-Meta-Original_filename" and similar forms to "original_filename".
func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.TrimPrefix(k, "x-amz-meta-")
	return strings.ReplaceAll(k, "-", "_")
}

func normalizeMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[normalizeKey(k)] = v
	}
	return out
}

// applyMetadata fills obj from normalized side metadata.
func applyMetadata(obj *domain.Object, meta map[string]string) {
	if v, ok := meta[MetaOriginalFilename]; ok {
		if name, err := url.PathUnescape(v); err == nil {
			obj.Filename = name
		} else {
			obj.Filename = v
		}
	}
	if v, ok := meta[MetaFileHash]; ok {
		obj.FileHash = v
	}
	if v, ok := meta[MetaUploadTime]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			obj.UploadedAt = t
		}
	}
}

func matchesFilter(obj domain.Object, f domain.ObjectFilter) bool {
	if f.DocumentID != "" && obj.DocumentID != f.DocumentID {
		return false
	}
	if f.Filename != "" && !strings.Contains(strings.ToLower(obj.Filename), strings.ToLower(f.Filename)) {
		return false
	}
	return true
}

// page applies offset and limit to a filtered listing.
func page(objs []domain.Object, offset, limit int) []domain.Object {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(objs) {
		return []domain.Object{}
	}
	objs = objs[offset:]
	if limit > 0 && limit < len(objs) {
		objs = objs[:limit]
	}
	return objs
}

func validKey(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return domain.Invalid(domain.BackendBlob, "key", "invalid document id %q", id)
	}
	return nil
}
