// Package vector stores embedded chunks in Qdrant collections over gRPC.
// Every point carries the fixed chunk payload; document_id, user_id,
// session_id and page are indexed for exact-match filtering.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// pointsAPI is the subset of *qdrant.Client used by the store.
type pointsAPI interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error)
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error)
	Scroll(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

var indexedFields = []struct {
	name string
	kind qdrant.FieldType
}{
	{FieldDocumentID, qdrant.FieldType_FieldTypeKeyword},
	{FieldUserID, qdrant.FieldType_FieldTypeKeyword},
	{FieldSessionID, qdrant.FieldType_FieldTypeKeyword},
	{FieldPage, qdrant.FieldType_FieldTypeInteger},
}

// Qdrant is the vector store.
type Qdrant struct {
	api      pointsAPI
	cfg      Config
	distance qdrant.Distance
	dims     sync.Map
	logger   *slog.Logger
	now      func() time.Time
}

// Dial connects to Qdrant, checks liveness, and ensures the default collection.
func Dial(ctx context.Context, cfg *Config, logger *slog.Logger) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, domain.Unavailable(domain.BackendVector, "connect", fmt.Errorf("create client: %w", err))
	}

	store, err := newQdrant(client, cfg, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeoutDuration())
	defer cancel()

	if err := store.Ping(dialCtx); err != nil {
		client.Close()
		return nil, err
	}
	if err := store.EnsureCollection(dialCtx, cfg.Collection); err != nil {
		client.Close()
		return nil, err
	}

	store.logger.Info("qdrant connected", "host", cfg.Host, "port", cfg.Port, "collection", cfg.Collection)
	return store, nil
}

func newQdrant(api pointsAPI, cfg *Config, logger *slog.Logger) (*Qdrant, error) {
	distance, err := parseDistance(cfg.Distance)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, domain.BackendVector, "connect", err)
	}
	return &Qdrant{
		api:      api,
		cfg:      *cfg,
		distance: distance,
		logger:   logger.With("system", "vector"),
		now:      time.Now,
	}, nil
}

// DefaultCollection returns the configured collection name.
func (q *Qdrant) DefaultCollection() string {
	return q.cfg.Collection
}

// Ping performs the gRPC health check.
func (q *Qdrant) Ping(ctx context.Context) error {
	if _, err := q.api.HealthCheck(ctx); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

// EnsureCollection creates the collection with the configured dimension and
// distance if it does not exist, then ensures the payload indexes.
func (q *Qdrant) EnsureCollection(ctx context.Context, name string) error {
	exists, err := q.api.CollectionExists(ctx, name)
	if err != nil {
		return classify("ensure_collection", name, err)
	}

	if !exists {
		err := q.api.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     q.cfg.Dimension,
				Distance: q.distance,
			}),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return classify("ensure_collection", name, err)
		}
		q.dims.Store(name, q.cfg.Dimension)
		q.logger.Info("collection created", "collection", name, "dimension", q.cfg.Dimension)
	}

	for _, f := range indexedFields {
		_, err := q.api.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			FieldName:      f.name,
			FieldType:      f.kind.Enum(),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return classify("ensure_collection", name, err)
		}
	}
	return nil
}

// dimension returns the vector size of a collection, reading it from the
// store on first use.
func (q *Qdrant) dimension(ctx context.Context, name string) (uint64, error) {
	if v, ok := q.dims.Load(name); ok {
		return v.(uint64), nil
	}
	info, err := q.api.GetCollectionInfo(ctx, name)
	if err != nil {
		return 0, classify("collection_info", name, err)
	}
	dim := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if dim > 0 {
		q.dims.Store(name, dim)
	}
	return dim, nil
}

// Upsert validates each chunk and writes the valid ones in one request.
// Invalid chunks are reported in FailedItems and never block the rest.
func (q *Qdrant) Upsert(ctx context.Context, collection string, chunks []domain.Chunk) (*domain.UpsertResult, error) {
	collection = q.collection(collection)
	result := &domain.UpsertResult{
		Status:      domain.StatusSuccess,
		Collection:  collection,
		IDs:         make([]string, 0, len(chunks)),
		FailedItems: make([]domain.ItemFailure, 0),
	}
	if len(chunks) == 0 {
		return result, nil
	}

	dim, err := q.dimension(ctx, collection)
	if err != nil {
		return nil, err
	}

	now := q.now().UTC()
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		id, err := validateChunk(c, dim)
		if err != nil {
			result.FailedItems = append(result.FailedItems, domain.ItemFailure{
				Index:  i,
				ID:     c.ID,
				Reason: err.Error(),
			})
			q.logger.Warn("chunk rejected", "collection", collection, "index", i, "reason", err.Error())
			continue
		}

		payload := c.Payload
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: toPayload(payload),
		})
		result.IDs = append(result.IDs, id)
	}

	if len(points) > 0 {
		_, err := q.api.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return nil, classify("upsert", collection, err)
		}
	}

	result.ProcessedCount = len(points)
	if len(result.FailedItems) > 0 {
		result.Status = domain.StatusPartialFailure
	}
	return result, nil
}

// Search returns the nearest chunks with the store's native scores.
func (q *Qdrant) Search(ctx context.Context, req domain.SearchRequest) ([]domain.ScoredChunk, error) {
	collection := q.collection(req.Collection)
	if len(req.Vector) == 0 {
		return nil, domain.Invalid(domain.BackendVector, "search", "query vector required")
	}

	limit := uint64(q.cfg.Limit(req.Limit))
	points, err := q.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Filter:         buildFilter(req.Filter),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, classify("search", collection, err)
	}

	hits := make([]domain.ScoredChunk, 0, len(points))
	for _, p := range points {
		hits = append(hits, domain.ScoredChunk{
			ID:      pointID(p.GetId()),
			Score:   p.GetScore(),
			Payload: fromPayload(p.GetPayload()),
		})
	}
	return hits, nil
}

// DeleteByIDs removes points by id. Ids must be UUIDs.
func (q *Qdrant) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	collection = q.collection(collection)
	if len(ids) == 0 {
		return nil
	}

	pids := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pid, err := parseID(id)
		if err != nil {
			return domain.Invalid(domain.BackendVector, "delete", "%v", err).With("id", id)
		}
		pids = append(pids, qdrant.NewIDUUID(pid))
	}

	_, err := q.api.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pids...),
	})
	if err != nil {
		return classify("delete", collection, err)
	}
	return nil
}

// DeleteByDocumentIDs removes every point whose document_id is in documentIDs.
func (q *Qdrant) DeleteByDocumentIDs(ctx context.Context, collection string, documentIDs []string) error {
	collection = q.collection(collection)
	if len(documentIDs) == 0 {
		return nil
	}

	_, err := q.api.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentIDs...)),
	})
	if err != nil {
		return classify("delete_by_document", collection, err)
	}
	return nil
}

// CountByDocument returns the exact number of points for a document.
func (q *Qdrant) CountByDocument(ctx context.Context, collection, documentID string) (uint64, error) {
	collection = q.collection(collection)
	n, err := q.api.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         documentFilter(documentID),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, classify("count", collection, err)
	}
	return n, nil
}

// ScrollByDocument returns up to limit chunks of a document without vectors.
func (q *Qdrant) ScrollByDocument(ctx context.Context, collection, documentID string, limit int) ([]domain.Chunk, error) {
	collection = q.collection(collection)
	n := uint32(q.cfg.Limit(limit))

	points, err := q.api.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         documentFilter(documentID),
		Limit:          &n,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, classify("scroll", collection, err)
	}

	chunks := make([]domain.Chunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, domain.Chunk{
			ID:      pointID(p.GetId()),
			Payload: fromPayload(p.GetPayload()),
		})
	}
	return chunks, nil
}

// CollectionStats reports point count, status and vector parameters.
func (q *Qdrant) CollectionStats(ctx context.Context, collection string) (*domain.CollectionStats, error) {
	collection = q.collection(collection)
	info, err := q.api.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, classify("collection_stats", collection, err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	return &domain.CollectionStats{
		Name:        collection,
		PointsCount: info.GetPointsCount(),
		Status:      strings.ToLower(info.GetStatus().String()),
		Dimension:   params.GetSize(),
		Distance:    strings.ToLower(params.GetDistance().String()),
	}, nil
}

// DeleteCollection drops a collection. The default collection is refused.
func (q *Qdrant) DeleteCollection(ctx context.Context, name string) error {
	if name == "" || name == q.cfg.Collection {
		return domain.Invalid(domain.BackendVector, "delete_collection", "refusing to drop collection %q", name)
	}
	if err := q.api.DeleteCollection(ctx, name); err != nil {
		return classify("delete_collection", name, err)
	}
	q.dims.Delete(name)
	q.logger.Info("collection dropped", "collection", name)
	return nil
}

// Close closes the gRPC connection.
func (q *Qdrant) Close() error {
	return q.api.Close()
}

func (q *Qdrant) collection(name string) string {
	if name == "" {
		return q.cfg.Collection
	}
	return name
}

// classify maps gRPC status codes onto domain kinds.
func classify(op, collection string, err error) error {
	wrap := func(e *domain.Error) error {
		if collection != "" {
			return e.With("collection", collection)
		}
		return e
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrap(domain.Unavailable(domain.BackendVector, op, err))
	}

	st, ok := status.FromError(err)
	if !ok {
		return wrap(domain.Unavailable(domain.BackendVector, op, err))
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled,
		codes.Unauthenticated, codes.PermissionDenied, codes.ResourceExhausted:
		return wrap(domain.Unavailable(domain.BackendVector, op, err))
	case codes.NotFound:
		return wrap(domain.NewError(domain.KindNotFound, domain.BackendVector, op, err))
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return wrap(domain.NewError(domain.KindValidation, domain.BackendVector, op, err))
	case codes.AlreadyExists:
		return wrap(domain.NewError(domain.KindConflict, domain.BackendVector, op, err))
	default:
		return wrap(domain.NewError(domain.KindInternal, domain.BackendVector, op, err))
	}
}
