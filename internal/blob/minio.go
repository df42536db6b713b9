package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectAPI is the subset of *minio.Client used by the store.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
}

type objectReader func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

// MinIO is the blob store backed by a MinIO (or S3 compatible) bucket.
type MinIO struct {
	api     objectAPI
	read    objectReader
	bucket  string
	region  string
	baseURL string
	policy  Policy
	logger  *slog.Logger
	now     func() time.Time
}

// DialMinIO creates a MinIO client and makes sure the configured bucket exists.
func DialMinIO(ctx context.Context, cfg *Config, logger *slog.Logger) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, domain.Unavailable(domain.BackendBlob, "connect", fmt.Errorf("create client: %w", err))
	}

	read := func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
		return client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	}

	store := newMinIO(client, read, cfg, logger)
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	store.logger.Info("minio connected", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return store, nil
}

func newMinIO(api objectAPI, read objectReader, cfg *Config, logger *slog.Logger) *MinIO {
	return &MinIO{
		api:     api,
		read:    read,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: cfg.BaseURL,
		policy:  cfg.Policy(),
		logger:  logger.With("system", "blob", "provider", ProviderMinIO),
		now:     time.Now,
	}
}

// Bucket returns the container name.
func (m *MinIO) Bucket() string {
	return m.bucket
}

// EnsureBucket creates the bucket if it does not exist.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.api.BucketExists(ctx, m.bucket)
	if err != nil {
		return classify("ensure_bucket", m.bucket, err)
	}
	if exists {
		return nil
	}

	if err := m.api.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists" {
			return nil
		}
		return classify("ensure_bucket", m.bucket, err)
	}

	m.logger.Info("bucket created", "bucket", m.bucket)
	return nil
}

// Ping checks the bucket is reachable.
func (m *MinIO) Ping(ctx context.Context) error {
	exists, err := m.api.BucketExists(ctx, m.bucket)
	if err != nil {
		return classify("ping", m.bucket, err)
	}
	if !exists {
		return domain.Unavailable(domain.BackendBlob, "ping", fmt.Errorf("bucket %q missing", m.bucket))
	}
	return nil
}

// Put validates and writes one object keyed by its document id.
func (m *MinIO) Put(ctx context.Context, p PutObject) (*domain.Object, error) {
	if err := validKey(p.DocumentID); err != nil {
		return nil, err
	}
	size := int64(len(p.Data))
	if err := m.policy.Check(p.Filename, size); err != nil {
		return nil, err
	}
	if p.Digest == "" {
		p.Digest = Digest(p.Data)
	}

	now := m.now()
	info, err := m.api.PutObject(ctx, m.bucket, p.DocumentID, bytes.NewReader(p.Data), size, minio.PutObjectOptions{
		ContentType:  p.ContentType,
		UserMetadata: sideMetadata(p, size, now),
	})
	if err != nil {
		return nil, classify("put", p.DocumentID, err)
	}

	m.logger.Debug("object stored", "document_id", p.DocumentID, "size", size)

	return &domain.Object{
		DocumentID:  p.DocumentID,
		Filename:    p.Filename,
		ContentType: p.ContentType,
		Size:        size,
		FileHash:    p.Digest,
		FileURL:     FileURL(m.baseURL, m.bucket, p.DocumentID),
		UploadedAt:  now.UTC(),
		ModifiedAt:  now.UTC(),
		ETag:        info.ETag,
	}, nil
}

// PutMany writes each item independently. Validation failures are collected;
// a connection failure stops the batch and is returned with the partial result.
func (m *MinIO) PutMany(ctx context.Context, items []PutObject) (*PutResult, error) {
	return putMany(ctx, items, m.Put)
}

// Get returns the object bytes and metadata.
func (m *MinIO) Get(ctx context.Context, documentID string) ([]byte, *domain.Object, error) {
	obj, err := m.Stat(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := m.read(ctx, m.bucket, documentID)
	if err != nil {
		return nil, nil, classify("get", documentID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, classify("get", documentID, err)
	}
	return data, obj, nil
}

// Stat returns object metadata.
func (m *MinIO) Stat(ctx context.Context, documentID string) (*domain.Object, error) {
	if err := validKey(documentID); err != nil {
		return nil, err
	}
	info, err := m.api.StatObject(ctx, m.bucket, documentID, minio.StatObjectOptions{})
	if err != nil {
		return nil, classify("stat", documentID, err)
	}
	obj := m.toObject(info)
	return &obj, nil
}

// List returns objects matching the filter, ordered as the bucket lists them.
func (m *MinIO) List(ctx context.Context, f domain.ObjectFilter) ([]domain.Object, error) {
	var out []domain.Object
	err := m.scan(ctx, func(obj domain.Object) bool {
		if matchesFilter(obj, f) {
			out = append(out, obj)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return page(out, f.Offset, f.Limit), nil
}

// Delete removes the object. A missing object is reported as not found.
func (m *MinIO) Delete(ctx context.Context, documentID string) error {
	if _, err := m.Stat(ctx, documentID); err != nil {
		return err
	}
	if err := m.api.RemoveObject(ctx, m.bucket, documentID, minio.RemoveObjectOptions{}); err != nil {
		return classify("delete", documentID, err)
	}
	m.logger.Debug("object deleted", "document_id", documentID)
	return nil
}

// FindByDigest scans the bucket for an object whose file_hash matches digest.
// It returns nil without error when nothing matches.
func (m *MinIO) FindByDigest(ctx context.Context, digest string) (*domain.Object, error) {
	var found *domain.Object
	err := m.scan(ctx, func(obj domain.Object) bool {
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

// UpdateMetadata merges meta into the object's side metadata with a server-side copy.
func (m *MinIO) UpdateMetadata(ctx context.Context, documentID string, meta map[string]string) error {
	info, err := m.api.StatObject(ctx, m.bucket, documentID, minio.StatObjectOptions{})
	if err != nil {
		return classify("update_metadata", documentID, err)
	}

	merged := normalizeMetadata(info.UserMetadata)
	for k, v := range meta {
		merged[normalizeKey(k)] = v
	}
	// A replacing copy resets the content type unless it is sent again.
	if info.ContentType != "" {
		merged["Content-Type"] = info.ContentType
	}

	_, err = m.api.CopyObject(ctx,
		minio.CopyDestOptions{
			Bucket:          m.bucket,
			Object:          documentID,
			UserMetadata:    merged,
			ReplaceMetadata: true,
		},
		minio.CopySrcOptions{Bucket: m.bucket, Object: documentID},
	)
	if err != nil {
		return classify("update_metadata", documentID, err)
	}
	return nil
}

// Close releases nothing; the MinIO client holds no persistent connection.
func (m *MinIO) Close() error {
	return nil
}

// scan walks the bucket with metadata, stopping when fn returns false.
// Objects listed without user metadata are completed with a stat call.
func (m *MinIO) scan(ctx context.Context, fn func(domain.Object) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for info := range m.api.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Recursive: true, WithMetadata: true}) {
		if info.Err != nil {
			return classify("list", m.bucket, info.Err)
		}
		if len(info.UserMetadata) == 0 {
			full, err := m.api.StatObject(ctx, m.bucket, info.Key, minio.StatObjectOptions{})
			if err != nil {
				if domain.KindOf(classify("stat", info.Key, err)) == domain.KindNotFound {
					continue
				}
				return classify("stat", info.Key, err)
			}
			info = full
		}
		if !fn(m.toObject(info)) {
			return nil
		}
	}
	return nil
}

func (m *MinIO) toObject(info minio.ObjectInfo) domain.Object {
	obj := domain.Object{
		DocumentID:  info.Key,
		Filename:    info.Key,
		ContentType: info.ContentType,
		Size:        info.Size,
		FileURL:     FileURL(m.baseURL, m.bucket, info.Key),
		UploadedAt:  info.LastModified,
		ModifiedAt:  info.LastModified,
		ETag:        info.ETag,
	}
	applyMetadata(&obj, normalizeMetadata(info.UserMetadata))
	return obj
}

// classify maps MinIO errors onto domain kinds.
func classify(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Unavailable(domain.BackendBlob, op, err).With("key", key)
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject":
		return domain.NotFound(domain.BackendBlob, op, key)
	case "NoSuchBucket":
		return domain.Unavailable(domain.BackendBlob, op, err).With("bucket_missing", true)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return domain.Unavailable(domain.BackendBlob, op, err).With("key", key)
	case "":
		return domain.Unavailable(domain.BackendBlob, op, err).With("key", key)
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.NotFound(domain.BackendBlob, op, key)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.Unavailable(domain.BackendBlob, op, err).With("key", key)
	}
	return domain.NewError(domain.KindInternal, domain.BackendBlob, op, err).With("key", key)
}

func putMany(ctx context.Context, items []PutObject, put func(context.Context, PutObject) (*domain.Object, error)) (*PutResult, error) {
	result := &PutResult{
		Objects:  make([]domain.Object, 0, len(items)),
		Failures: make([]domain.ItemFailure, 0),
	}

	for i, item := range items {
		obj, err := put(ctx, item)
		if err == nil {
			result.Objects = append(result.Objects, *obj)
			continue
		}
		if domain.KindOf(err) != domain.KindValidation {
			return result, err
		}
		result.Failures = append(result.Failures, domain.ItemFailure{
			Index:  i,
			ID:     item.DocumentID,
			Name:   item.Filename,
			Reason: err.Error(),
		})
	}
	return result, nil
}
