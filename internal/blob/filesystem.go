package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/domain"
)

const sidecarSuffix = ".meta.json"

type sidecar struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata"`
}

// Filesystem stores objects as files under base_path/bucket, with side
// metadata in a JSON sidecar next to each object.
type Filesystem struct {
	root    string
	bucket  string
	baseURL string
	policy  Policy
	logger  *slog.Logger
	now     func() time.Time
}

// OpenFilesystem resolves the bucket directory and creates it if needed.
func OpenFilesystem(cfg *Config, logger *slog.Logger) (*Filesystem, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("base_path required")
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base_path: %w", err)
	}

	f := &Filesystem{
		root:    filepath.Join(absPath, cfg.Bucket),
		bucket:  cfg.Bucket,
		baseURL: cfg.BaseURL,
		policy:  cfg.Policy(),
		logger:  logger.With("system", "blob", "provider", ProviderFilesystem),
		now:     time.Now,
	}

	if err := os.MkdirAll(f.root, 0755); err != nil {
		return nil, domain.Unavailable(domain.BackendBlob, "connect", fmt.Errorf("create bucket directory: %w", err))
	}

	f.logger.Info("filesystem blob store ready", "path", f.root)
	return f, nil
}

// Bucket returns the container name.
func (f *Filesystem) Bucket() string {
	return f.bucket
}

// Ping checks that the bucket directory is still present.
func (f *Filesystem) Ping(ctx context.Context) error {
	info, err := os.Stat(f.root)
	if err != nil {
		return domain.Unavailable(domain.BackendBlob, "ping", err)
	}
	if !info.IsDir() {
		return domain.Unavailable(domain.BackendBlob, "ping", fmt.Errorf("%s is not a directory", f.root))
	}
	return nil
}

// Put validates and writes one object atomically.
func (f *Filesystem) Put(ctx context.Context, p PutObject) (*domain.Object, error) {
	path, err := f.fullPath(p.DocumentID)
	if err != nil {
		return nil, err
	}
	size := int64(len(p.Data))
	if err := f.policy.Check(p.Filename, size); err != nil {
		return nil, err
	}
	if p.Digest == "" {
		p.Digest = Digest(p.Data)
	}

	now := f.now()
	meta := sidecar{ContentType: p.ContentType, Metadata: sideMetadata(p, size, now)}

	if err := writeAtomic(path, p.Data); err != nil {
		return nil, domain.NewError(domain.KindInternal, domain.BackendBlob, "put", err)
	}
	if err := f.writeSidecar(path, meta); err != nil {
		os.Remove(path)
		return nil, domain.NewError(domain.KindInternal, domain.BackendBlob, "put", err)
	}

	return &domain.Object{
		DocumentID:  p.DocumentID,
		Filename:    p.Filename,
		ContentType: p.ContentType,
		Size:        size,
		FileHash:    p.Digest,
		FileURL:     FileURL(f.baseURL, f.bucket, p.DocumentID),
		UploadedAt:  now.UTC(),
		ModifiedAt:  now.UTC(),
	}, nil
}

// PutMany writes each item independently, collecting validation failures.
func (f *Filesystem) PutMany(ctx context.Context, items []PutObject) (*PutResult, error) {
	return putMany(ctx, items, f.Put)
}

// Get returns the object bytes and metadata.
func (f *Filesystem) Get(ctx context.Context, documentID string) ([]byte, *domain.Object, error) {
	obj, err := f.Stat(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	path, _ := f.fullPath(documentID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, f.mapErr("get", documentID, err)
	}
	return data, obj, nil
}

// Stat returns object metadata.
func (f *Filesystem) Stat(ctx context.Context, documentID string) (*domain.Object, error) {
	path, err := f.fullPath(documentID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, f.mapErr("stat", documentID, err)
	}

	obj := domain.Object{
		DocumentID: documentID,
		Filename:   documentID,
		Size:       info.Size(),
		FileURL:    FileURL(f.baseURL, f.bucket, documentID),
		UploadedAt: info.ModTime().UTC(),
		ModifiedAt: info.ModTime().UTC(),
	}

	if meta, err := f.readSidecar(path); err == nil {
		obj.ContentType = meta.ContentType
		applyMetadata(&obj, normalizeMetadata(meta.Metadata))
	} else if !errors.Is(err, fs.ErrNotExist) {
		f.logger.Warn("unreadable sidecar", "document_id", documentID, "error", err)
	}

	return &obj, nil
}

// List returns objects matching the filter ordered by document id.
func (f *Filesystem) List(ctx context.Context, filter domain.ObjectFilter) ([]domain.Object, error) {
	var out []domain.Object
	err := f.scan(ctx, func(obj domain.Object) bool {
		if matchesFilter(obj, filter) {
			out = append(out, obj)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return page(out, filter.Offset, filter.Limit), nil
}

// Delete removes the object and its sidecar. A missing object is reported as not found.
func (f *Filesystem) Delete(ctx context.Context, documentID string) error {
	path, err := f.fullPath(documentID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return f.mapErr("delete", documentID, err)
	}
	if err := os.Remove(path + sidecarSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.logger.Warn("failed to remove sidecar", "document_id", documentID, "error", err)
	}
	return nil
}

// FindByDigest scans the bucket for an object whose file_hash matches digest.
func (f *Filesystem) FindByDigest(ctx context.Context, digest string) (*domain.Object, error) {
	var found *domain.Object
	err := f.scan(ctx, func(obj domain.Object) bool {
		if obj.FileHash == digest {
			found = &obj
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// UpdateMetadata merges meta into the object's sidecar.
func (f *Filesystem) UpdateMetadata(ctx context.Context, documentID string, meta map[string]string) error {
	path, err := f.fullPath(documentID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return f.mapErr("update_metadata", documentID, err)
	}

	current, err := f.readSidecar(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.NewError(domain.KindInternal, domain.BackendBlob, "update_metadata", err)
	}
	merged := normalizeMetadata(current.Metadata)
	for k, v := range meta {
		merged[normalizeKey(k)] = v
	}
	current.Metadata = merged

	if err := f.writeSidecar(path, current); err != nil {
		return domain.NewError(domain.KindInternal, domain.BackendBlob, "update_metadata", err)
	}
	return nil
}

// Close is a no-op for the filesystem store.
func (f *Filesystem) Close() error {
	return nil
}

func (f *Filesystem) scan(ctx context.Context, fn func(domain.Object) bool) error {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return domain.Unavailable(domain.BackendBlob, "list", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, sidecarSuffix) || strings.HasSuffix(name, ".tmp") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return domain.Unavailable(domain.BackendBlob, "list", err)
		}
		obj, err := f.Stat(ctx, name)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				continue
			}
			return err
		}
		if !fn(*obj) {
			return nil
		}
	}
	return nil
}

func (f *Filesystem) readSidecar(path string) (sidecar, error) {
	var meta sidecar
	data, err := os.ReadFile(path + sidecarSuffix)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode sidecar: %w", err)
	}
	return meta, nil
}

func (f *Filesystem) writeSidecar(path string, meta sidecar) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	return writeAtomic(path+sidecarSuffix, data)
}

func (f *Filesystem) mapErr(op, documentID string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NotFound(domain.BackendBlob, op, documentID)
	}
	if errors.Is(err, fs.ErrPermission) {
		return domain.Unavailable(domain.BackendBlob, op, err)
	}
	return domain.NewError(domain.KindInternal, domain.BackendBlob, op, err)
}

func (f *Filesystem) fullPath(documentID string) (string, error) {
	if err := validKey(documentID); err != nil {
		return "", err
	}

	fullPath := filepath.Join(f.root, filepath.Clean(documentID))
	if filepath.Dir(fullPath) != f.root {
		return "", domain.Invalid(domain.BackendBlob, "key", "invalid document id %q", documentID)
	}
	return fullPath, nil
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
