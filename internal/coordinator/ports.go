package coordinator

import (
	"context"

	"github.com/JaimeStill/doc-gateway/internal/blob"
	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
)

// BlobStore holds raw document bytes keyed by document id.
type BlobStore interface {
	blob.DigestFinder
	Ping(ctx context.Context) error
	Put(ctx context.Context, p blob.PutObject) (*domain.Object, error)
	PutMany(ctx context.Context, items []blob.PutObject) (*blob.PutResult, error)
	Get(ctx context.Context, documentID string) ([]byte, *domain.Object, error)
	Stat(ctx context.Context, documentID string) (*domain.Object, error)
	List(ctx context.Context, filter domain.ObjectFilter) ([]domain.Object, error)
	Delete(ctx context.Context, documentID string) error
	UpdateMetadata(ctx context.Context, documentID string, meta map[string]string) error
	Close() error
}

// VectorStore holds embedded chunks in named collections.
type VectorStore interface {
	Ping(ctx context.Context) error
	DefaultCollection() string
	EnsureCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, chunks []domain.Chunk) (*domain.UpsertResult, error)
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.ScoredChunk, error)
	DeleteByIDs(ctx context.Context, collection string, ids []string) error
	DeleteByDocumentIDs(ctx context.Context, collection string, documentIDs []string) error
	CountByDocument(ctx context.Context, collection, documentID string) (uint64, error)
	ScrollByDocument(ctx context.Context, collection, documentID string, limit int) ([]domain.Chunk, error)
	CollectionStats(ctx context.Context, collection string) (*domain.CollectionStats, error)
	DeleteCollection(ctx context.Context, name string) error
	Close() error
}

// RelationalStore holds document metadata rows and session records.
type RelationalStore interface {
	blob.DigestFinder
	Ping(ctx context.Context) error
	InsertDocuments(ctx context.Context, docs []domain.Document) ([]domain.Document, error)
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
	UpdateDocument(ctx context.Context, documentID string, patch domain.DocumentPatch) (*domain.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
	QueryDocuments(ctx context.Context, filter domain.DocumentFilter, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error)
	QuerySessionDocuments(ctx context.Context, sessionID string, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error)
	CreateSession(ctx context.Context, s domain.Session) (*domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	QueryUserSessions(ctx context.Context, userID string, status *string, page pagination.PageRequest) (*pagination.PageResult[domain.Session], error)
	UpdateSession(ctx context.Context, sessionID string, u domain.SessionUpdate) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	SweepExpiredSessions(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*domain.RelationalStats, error)
	Close() error
}

// Dialers open the three stores. They are called on every Initialize so the
// coordinator can be re-initialized after Shutdown.
type Dialers struct {
	Blob       func(ctx context.Context) (BlobStore, error)
	Vector     func(ctx context.Context) (VectorStore, error)
	Relational func(ctx context.Context) (RelationalStore, error)
}
