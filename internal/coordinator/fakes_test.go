package coordinator_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/blob"
	"github.com/JaimeStill/doc-gateway/internal/coordinator"
	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type calls struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *calls) hit(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = map[string]int{}
	}
	c.n[name]++
}

func (c *calls) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[name]
}

type fakeBlob struct {
	calls
	mu      sync.Mutex
	objects map[string]domain.Object
	data    map[string][]byte
	meta    map[string]map[string]string
	putErr  error
	failOn  string
	delErr  error
	pingErr error
	closed  bool
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		objects: map[string]domain.Object{},
		data:    map[string][]byte{},
		meta:    map[string]map[string]string{},
	}
}

func (f *fakeBlob) Ping(ctx context.Context) error {
	f.hit("ping")
	return f.pingErr
}

func (f *fakeBlob) Put(ctx context.Context, p blob.PutObject) (*domain.Object, error) {
	f.hit("put")
	if f.putErr != nil && (f.failOn == "" || f.failOn == p.Filename) {
		return nil, f.putErr
	}
	obj := domain.Object{
		DocumentID:  p.DocumentID,
		Filename:    p.Filename,
		ContentType: p.ContentType,
		Size:        int64(len(p.Data)),
		FileHash:    p.Digest,
		FileURL:     "documents/" + p.DocumentID,
		UploadedAt:  fixedNow,
		ModifiedAt:  fixedNow,
	}
	f.mu.Lock()
	f.objects[p.DocumentID] = obj
	f.data[p.DocumentID] = p.Data
	f.mu.Unlock()
	return &obj, nil
}

func (f *fakeBlob) PutMany(ctx context.Context, items []blob.PutObject) (*blob.PutResult, error) {
	result := &blob.PutResult{}
	for i, p := range items {
		obj, err := f.Put(ctx, p)
		if err != nil {
			if domain.KindOf(err) == domain.KindConnection {
				return result, err
			}
			result.Failures = append(result.Failures, domain.ItemFailure{
				Index: i, ID: p.DocumentID, Name: p.Filename, Reason: err.Error(),
			})
			continue
		}
		result.Objects = append(result.Objects, *obj)
	}
	return result, nil
}

func (f *fakeBlob) Get(ctx context.Context, id string) ([]byte, *domain.Object, error) {
	f.hit("get")
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[id]
	if !ok {
		return nil, nil, domain.NotFound(domain.BackendBlob, "get", id)
	}
	return f.data[id], &obj, nil
}

func (f *fakeBlob) Stat(ctx context.Context, id string) (*domain.Object, error) {
	f.hit("stat")
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[id]
	if !ok {
		return nil, domain.NotFound(domain.BackendBlob, "stat", id)
	}
	return &obj, nil
}

func (f *fakeBlob) List(ctx context.Context, filter domain.ObjectFilter) ([]domain.Object, error) {
	f.hit("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Object, 0, len(f.objects))
	for _, o := range f.objects {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeBlob) Delete(ctx context.Context, id string) error {
	f.hit("delete")
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[id]; !ok {
		return domain.NotFound(domain.BackendBlob, "delete", id)
	}
	delete(f.objects, id)
	delete(f.data, id)
	return nil
}

func (f *fakeBlob) FindByDigest(ctx context.Context, digest string) (*domain.Object, error) {
	f.hit("find_by_digest")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.objects {
		if o.FileHash == digest {
			return &o, nil
		}
	}
	return nil, nil
}

func (f *fakeBlob) UpdateMetadata(ctx context.Context, id string, meta map[string]string) error {
	f.hit("update_metadata")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[id] = meta
	return nil
}

func (f *fakeBlob) Close() error {
	f.closed = true
	return nil
}

type fakeVector struct {
	calls
	mu          sync.Mutex
	chunks      map[string]int
	stored      map[string][]domain.Chunk
	collections map[string]bool
	upsertErr   error
	statsErr    error
	pingErr     error
	closed      bool
}

func newFakeVector() *fakeVector {
	return &fakeVector{chunks: map[string]int{}, stored: map[string][]domain.Chunk{}, collections: map[string]bool{"document_chunks": true}}
}

func (f *fakeVector) Ping(ctx context.Context) error {
	f.hit("ping")
	return f.pingErr
}

func (f *fakeVector) DefaultCollection() string { return "document_chunks" }

func (f *fakeVector) EnsureCollection(ctx context.Context, name string) error {
	f.hit("ensure")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[name] = true
	return nil
}

func (f *fakeVector) Upsert(ctx context.Context, collection string, chunks []domain.Chunk) (*domain.UpsertResult, error) {
	f.hit("upsert")
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	result := &domain.UpsertResult{
		Status:      domain.StatusSuccess,
		Collection:  collection,
		IDs:         []string{},
		FailedItems: []domain.ItemFailure{},
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ch := range chunks {
		if len(ch.Vector) == 0 {
			result.FailedItems = append(result.FailedItems, domain.ItemFailure{Index: i, Reason: "vector required"})
			continue
		}
		f.chunks[ch.Payload.DocumentID]++
		f.stored[ch.Payload.DocumentID] = append(f.stored[ch.Payload.DocumentID], ch)
		result.IDs = append(result.IDs, ch.ID)
		result.ProcessedCount++
	}
	if len(result.FailedItems) > 0 {
		result.Status = domain.StatusPartialFailure
	}
	return result, nil
}

func (f *fakeVector) Search(ctx context.Context, req domain.SearchRequest) ([]domain.ScoredChunk, error) {
	f.hit("search")
	return []domain.ScoredChunk{{ID: "hit", Score: 0.87}}, nil
}

func (f *fakeVector) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	f.hit("delete_ids")
	return nil
}

func (f *fakeVector) DeleteByDocumentIDs(ctx context.Context, collection string, ids []string) error {
	f.hit("delete_documents")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.chunks, id)
		delete(f.stored, id)
	}
	return nil
}

func (f *fakeVector) CountByDocument(ctx context.Context, collection, id string) (uint64, error) {
	f.hit("count")
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(f.chunks[id]), nil
}

func (f *fakeVector) ScrollByDocument(ctx context.Context, collection, id string, limit int) ([]domain.Chunk, error) {
	f.hit("scroll")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.stored[id]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return slices.Clone(out), nil
}

func (f *fakeVector) CollectionStats(ctx context.Context, collection string) (*domain.CollectionStats, error) {
	f.hit("stats")
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &domain.CollectionStats{Name: collection, PointsCount: 3, Status: "green"}, nil
}

func (f *fakeVector) DeleteCollection(ctx context.Context, name string) error {
	f.hit("drop")
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.collections[name] {
		return domain.NotFound(domain.BackendVector, "delete_collection", name)
	}
	delete(f.collections, name)
	return nil
}

func (f *fakeVector) Close() error {
	f.closed = true
	return nil
}

type fakeRelational struct {
	calls
	mu        sync.Mutex
	docs      map[string]domain.Document
	sessions  map[string]domain.Session
	insertErr error
	createErr error
	getErr    error
	pingErr   error
	closed    bool
}

func newFakeRelational() *fakeRelational {
	return &fakeRelational{docs: map[string]domain.Document{}, sessions: map[string]domain.Session{}}
}

func (f *fakeRelational) Ping(ctx context.Context) error {
	f.hit("ping")
	return f.pingErr
}

func (f *fakeRelational) InsertDocuments(ctx context.Context, docs []domain.Document) ([]domain.Document, error) {
	f.hit("insert")
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		d.CreatedAt, d.UpdatedAt = fixedNow, fixedNow
		f.docs[d.DocumentID] = d
		out[i] = d
	}
	return out, nil
}

func (f *fakeRelational) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	f.hit("get_document")
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.NotFound(domain.BackendRelational, "get_document", id)
	}
	return &d, nil
}

func (f *fakeRelational) UpdateDocument(ctx context.Context, id string, patch domain.DocumentPatch) (*domain.Document, error) {
	f.hit("update_document")
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.NotFound(domain.BackendRelational, "update_document", id)
	}
	if patch.ProcessingStatus != nil {
		d.ProcessingStatus = *patch.ProcessingStatus
	}
	d.Metadata = domain.MergeMetadata(d.Metadata, patch.Metadata)
	d.UpdatedAt = fixedNow
	f.docs[id] = d
	return &d, nil
}

func (f *fakeRelational) DeleteDocument(ctx context.Context, id string) error {
	f.hit("delete_document")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.NotFound(domain.BackendRelational, "delete_document", id)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeRelational) QueryDocuments(ctx context.Context, filter domain.DocumentFilter, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error) {
	f.hit("query_documents")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, d := range f.docs {
		if filter.UserID == nil || d.UserID == *filter.UserID {
			out = append(out, d)
		}
	}
	r := pagination.NewPageResult(out, len(out), 1, len(out))
	return &r, nil
}

func (f *fakeRelational) QuerySessionDocuments(ctx context.Context, sessionID string, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error) {
	f.hit("query_session_documents")
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Document
	for _, d := range f.docs {
		if d.SessionID == sessionID {
			all = append(all, d)
		}
	}
	slices.SortFunc(all, func(a, b domain.Document) int {
		if a.DocumentID < b.DocumentID {
			return -1
		}
		return 1
	})
	offset := page.Offset()
	end := min(offset+page.PageSize, len(all))
	var data []domain.Document
	if offset < len(all) {
		data = all[offset:end]
	}
	r := pagination.NewPageResult(data, len(all), page.Page, page.PageSize)
	return &r, nil
}

func (f *fakeRelational) CreateSession(ctx context.Context, s domain.Session) (*domain.Session, error) {
	f.hit("create_session")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s.UpdatedAt = s.CreatedAt
	f.sessions[s.SessionID] = s
	return &s, nil
}

func (f *fakeRelational) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	f.hit("get_session")
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.NotFound(domain.BackendRelational, "get_session", id)
	}
	return &s, nil
}

func (f *fakeRelational) QueryUserSessions(ctx context.Context, userID string, status *string, page pagination.PageRequest) (*pagination.PageResult[domain.Session], error) {
	f.hit("query_user_sessions")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Session
	for _, s := range f.sessions {
		if s.UserID == userID && (status == nil || s.Status == *status) {
			out = append(out, s)
		}
	}
	r := pagination.NewPageResult(out, len(out), 1, max(len(out), 1))
	return &r, nil
}

func (f *fakeRelational) UpdateSession(ctx context.Context, id string, u domain.SessionUpdate) (*domain.Session, error) {
	f.hit("update_session")
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.NotFound(domain.BackendRelational, "update_session", id)
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.TempCollectionName != nil {
		s.TempCollectionName = *u.TempCollectionName
	}
	s.Metadata = domain.MergeMetadata(s.Metadata, u.Metadata)
	s.ExpiresAt = s.ExpiresAt.Add(u.ExtendBy)
	f.sessions[id] = s
	return &s, nil
}

func (f *fakeRelational) DeleteSession(ctx context.Context, id string) error {
	f.hit("delete_session")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return domain.NotFound(domain.BackendRelational, "delete_session", id)
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeRelational) SweepExpiredSessions(ctx context.Context) (int64, error) {
	f.hit("sweep")
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.Status != domain.SessionExpired && s.ExpiresAt.Before(fixedNow) {
			s.Status = domain.SessionExpired
			f.sessions[id] = s
			n++
		}
	}
	return n, nil
}

func (f *fakeRelational) FindByDigest(ctx context.Context, digest string) (*domain.Object, error) {
	f.hit("find_by_digest")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.FileHash == digest {
			return &domain.Object{DocumentID: d.DocumentID, Filename: d.Filename, FileHash: d.FileHash}, nil
		}
	}
	return nil, nil
}

func (f *fakeRelational) Stats(ctx context.Context) (*domain.RelationalStats, error) {
	f.hit("stats")
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.RelationalStats{Documents: len(f.docs), Sessions: domain.SessionStats{Total: len(f.sessions)}}, nil
}

func (f *fakeRelational) Close() error {
	f.closed = true
	return nil
}

type harness struct {
	blob       *fakeBlob
	vector     *fakeVector
	relational *fakeRelational
	dialed     calls
	vectorErr  error
	blobGate   chan struct{}
	c          *coordinator.Coordinator
}

func newHarness(t *testing.T, mutate ...func(*coordinator.Config)) *harness {
	t.Helper()
	h := &harness{blob: newFakeBlob(), vector: newFakeVector(), relational: newFakeRelational()}

	cfg := coordinator.Config{}
	for _, m := range mutate {
		m(&cfg)
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.c = coordinator.New(h.dialers(), cfg, logger, coordinator.WithClock(func() time.Time { return fixedNow }))
	return h
}

func (h *harness) dialers() coordinator.Dialers {
	return coordinator.Dialers{
		Blob: func(ctx context.Context) (coordinator.BlobStore, error) {
			h.dialed.hit("blob")
			if h.blobGate != nil {
				select {
				case <-h.blobGate:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return h.blob, nil
		},
		Vector: func(ctx context.Context) (coordinator.VectorStore, error) {
			h.dialed.hit("vector")
			if h.vectorErr != nil {
				return nil, h.vectorErr
			}
			return h.vector, nil
		},
		Relational: func(ctx context.Context) (coordinator.RelationalStore, error) {
			h.dialed.hit("relational")
			return h.relational, nil
		},
	}
}

func ready(t *testing.T, mutate ...func(*coordinator.Config)) *harness {
	t.Helper()
	h := newHarness(t, mutate...)
	if err := h.c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return h
}

func connErr(backend domain.Backend) error {
	return domain.Unavailable(backend, "test", fmt.Errorf("connection refused"))
}
