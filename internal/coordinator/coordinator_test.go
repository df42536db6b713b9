package coordinator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/coordinator"
	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/metrics"
)

type recorder struct {
	mu  sync.Mutex
	ops []metrics.Operation
	up  map[string]bool
}

func (r *recorder) RecordOperation(op metrics.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recorder) SetBackendUp(backend string, up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.up == nil {
		r.up = map[string]bool{}
	}
	r.up[backend] = up
}

func TestOperationsRequireInitialize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["get_document"] = h.c.GetDocument(ctx, "x")
	_, checks["create_document"] = h.c.CreateDocument(ctx, domain.Upload{Filename: "a.pdf"})
	_, checks["delete_document"] = h.c.DeleteDocument(ctx, "x")
	_, checks["search_chunks"] = h.c.SearchChunks(ctx, domain.SearchRequest{})
	_, checks["create_session"] = h.c.CreateSession(ctx, coordinator.CreateSessionRequest{UserID: "u"})
	_, checks["expire_sessions"] = h.c.ExpireOldSessions(ctx)
	_, checks["system_stats"] = h.c.SystemStats(ctx)

	for op, err := range checks {
		if !errors.Is(err, domain.ErrNotInitialized) {
			t.Errorf("%s: err = %v, want not initialized", op, err)
		}
	}

	health := h.c.IsHealthy(ctx)
	if health.Blob || health.Vector || health.Relational || health.Overall {
		t.Errorf("health = %+v, want all false", health)
	}
	if n := h.blob.count("ping"); n != 0 {
		t.Errorf("blob pinged %d times before initialize", n)
	}
}

// waitState polls until the coordinator reaches want or the deadline passes.
func waitState(t *testing.T, c *coordinator.Coordinator, want coordinator.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", c.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInitializeDoesNotBlockOperations(t *testing.T) {
	h := newHarness(t)
	h.blobGate = make(chan struct{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.c.Initialize(ctx) }()
	waitState(t, h.c, coordinator.StateInitializing)

	answered := make(chan error, 1)
	go func() {
		_, err := h.c.GetSession(ctx, "s-1")
		answered <- err
	}()
	select {
	case err := <-answered:
		if !errors.Is(err, domain.ErrNotInitialized) {
			t.Errorf("GetSession err = %v, want not initialized", err)
		}
	case <-time.After(time.Second):
		t.Fatal("GetSession blocked while initialize was dialing")
	}

	if h.c.Ready() {
		t.Error("ready while dialing")
	}
	if err := h.c.Initialize(ctx); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("concurrent Initialize err = %v, want conflict", err)
	}

	close(h.blobGate)
	if err := <-done; err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !h.c.Ready() {
		t.Errorf("state = %s, want ready", h.c.State())
	}
	if n := h.dialed.count("blob"); n != 1 {
		t.Errorf("blob dialed %d times, want 1", n)
	}
}

func TestShutdownSupersedesInitialize(t *testing.T) {
	h := newHarness(t)
	h.blobGate = make(chan struct{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.c.Initialize(ctx) }()
	waitState(t, h.c, coordinator.StateInitializing)

	if err := h.c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	close(h.blobGate)

	if err := <-done; !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("Initialize err = %v, want not initialized", err)
	}
	if got := h.c.State(); got != coordinator.StateUninitialized {
		t.Errorf("state = %s, want uninitialized", got)
	}
	if !h.blob.closed || !h.relational.closed {
		t.Error("stores opened by superseded initialize left open")
	}
}

func TestInitializeFailureTearsDown(t *testing.T) {
	h := newHarness(t)
	h.vectorErr = errors.New("dial tcp 127.0.0.1:6334: connect: connection refused")
	ctx := context.Background()

	err := h.c.Initialize(ctx)
	if domain.KindOf(err) != domain.KindConnection {
		t.Fatalf("kind = %s, want connection", domain.KindOf(err))
	}
	if b := domain.BackendOf(err); b != domain.BackendVector {
		t.Errorf("backend = %s, want %s", b, domain.BackendVector)
	}
	if !h.blob.closed {
		t.Error("blob store left open after failed initialize")
	}
	if n := h.dialed.count("relational"); n != 0 {
		t.Errorf("relational dialed %d times after vector failure", n)
	}
	if s := h.c.State(); s != coordinator.StateFailed {
		t.Errorf("state = %s, want failed", s)
	}

	h.vectorErr = nil
	h.blob.closed = false
	if err := h.c.Initialize(ctx); err != nil {
		t.Fatalf("retry Initialize: %v", err)
	}
	if !h.c.Ready() {
		t.Error("not ready after retry")
	}
	if n := h.dialed.count("blob"); n != 2 {
		t.Errorf("blob dialed %d times, want 2", n)
	}
}

func TestShutdownAndReinitialize(t *testing.T) {
	h := ready(t)
	ctx := context.Background()

	if err := h.c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !h.blob.closed || !h.vector.closed || !h.relational.closed {
		t.Error("Shutdown left a store open")
	}
	if s := h.c.State(); s != coordinator.StateUninitialized {
		t.Errorf("state = %s, want uninitialized", s)
	}
	if _, err := h.c.GetDocument(ctx, "x"); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("err after shutdown = %v", err)
	}

	if err := h.c.Initialize(ctx); err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	if err := h.c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize when ready: %v", err)
	}
	if n := h.dialed.count("relational"); n != 2 {
		t.Errorf("relational dialed %d times, want 2", n)
	}
}

func TestIsHealthy(t *testing.T) {
	h := ready(t)
	h.vector.pingErr = connErr(domain.BackendVector)

	health := h.c.IsHealthy(context.Background())
	want := domain.Health{Blob: true, Vector: false, Relational: true, Overall: false}
	if health != want {
		t.Errorf("health = %+v, want %+v", health, want)
	}

	h.vector.pingErr = nil
	if !h.c.IsHealthy(context.Background()).Overall {
		t.Error("overall false with all stores up")
	}
}

func TestMetricsRecorded(t *testing.T) {
	rec := &recorder{}
	h := newHarness(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := coordinator.New(h.dialers(), coordinator.Config{DefaultTTLHours: 24, MinTTLHours: 1, MaxTTLHours: 168},
		logger, coordinator.WithMetrics(rec))
	ctx := context.Background()

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	h.relational.getErr = connErr(domain.BackendRelational)
	c.GetDocument(ctx, "11111111-1111-1111-1111-111111111111")

	var found bool
	for _, op := range rec.ops {
		if op.Name == "get_document" && op.Backend == "postgres" && op.Status == "connection" {
			found = true
		}
	}
	if !found {
		t.Errorf("no get_document connection record in %+v", rec.ops)
	}
	for _, b := range domain.Backends {
		if !rec.up[string(b)] {
			t.Errorf("backend %s not marked up", b)
		}
	}
}

func TestSystemStats(t *testing.T) {
	h := ready(t)
	h.vector.statsErr = connErr(domain.BackendVector)

	stats, err := h.c.SystemStats(context.Background())
	if err != nil {
		t.Fatalf("SystemStats: %v", err)
	}
	if stats.Collection != nil {
		t.Error("collection stats set despite failure")
	}
	if _, ok := stats.Errors[domain.BackendVector]; !ok {
		t.Errorf("errors = %v, want qdrant entry", stats.Errors)
	}
	if stats.Relational == nil {
		t.Error("relational stats missing")
	}
	if !stats.Health.Overall {
		t.Error("health overall false")
	}
}

func TestUpdateChunksRejectsMissingIDs(t *testing.T) {
	h := ready(t)
	vec := []float32{0.1, 0.2}
	chunks := []domain.Chunk{
		{Vector: vec, Payload: domain.ChunkPayload{DocumentID: "d"}},
		{ID: "a", Payload: domain.ChunkPayload{DocumentID: "d"}},
		{ID: "b", Vector: vec, Payload: domain.ChunkPayload{DocumentID: "d"}},
	}

	result, err := h.c.UpdateChunks(context.Background(), "", chunks)
	if err != nil {
		t.Fatalf("UpdateChunks: %v", err)
	}
	if result.Status != domain.StatusPartialFailure {
		t.Errorf("status = %s, want partial_failure", result.Status)
	}
	if result.ProcessedCount != 1 {
		t.Errorf("processed = %d, want 1", result.ProcessedCount)
	}
	if len(result.FailedItems) != 2 || result.FailedItems[0].Index != 0 || result.FailedItems[1].Index != 1 {
		t.Errorf("failed items = %+v, want indexes 0 and 1", result.FailedItems)
	}
}

func TestPartialUpsertStoresOnlyValidChunks(t *testing.T) {
	h := ready(t)
	ctx := context.Background()
	vec := []float32{0.1, 0.2}
	chunks := []domain.Chunk{
		{ID: "c0", Vector: vec, Payload: domain.ChunkPayload{DocumentID: "d", Page: 1}},
		{Vector: vec, Payload: domain.ChunkPayload{DocumentID: "d", Page: 2}},
		{ID: "c2", Vector: vec, Payload: domain.ChunkPayload{DocumentID: "d", Page: 3}},
		{ID: "c3", Payload: domain.ChunkPayload{DocumentID: "d", Page: 4}},
		{ID: "c4", Vector: vec, Payload: domain.ChunkPayload{DocumentID: "d", Page: 5}},
	}

	result, err := h.c.UpdateChunks(ctx, "", chunks)
	if err != nil {
		t.Fatalf("UpdateChunks: %v", err)
	}
	if result.ProcessedCount != 3 || len(result.FailedItems) != 2 {
		t.Fatalf("processed = %d, failed = %+v; want 3 and 2", result.ProcessedCount, result.FailedItems)
	}

	stored, err := h.c.GetDocumentChunks(ctx, "", "d", 0)
	if err != nil {
		t.Fatalf("GetDocumentChunks: %v", err)
	}
	var ids []string
	for _, ch := range stored {
		ids = append(ids, ch.ID)
	}
	if want := []string{"c0", "c2", "c4"}; !slices.Equal(ids, want) {
		t.Errorf("stored ids = %v, want %v", ids, want)
	}
	if !slices.Equal(ids, result.IDs) {
		t.Errorf("stored ids = %v, result ids = %v", ids, result.IDs)
	}
}

func TestCreateChunksCollections(t *testing.T) {
	h := ready(t)
	ctx := context.Background()
	chunk := []domain.Chunk{{Vector: []float32{1}, Payload: domain.ChunkPayload{DocumentID: "d"}}}

	if _, err := h.c.CreateChunks(ctx, "", chunk); err != nil {
		t.Fatalf("CreateChunks default: %v", err)
	}
	if n := h.vector.count("ensure"); n != 0 {
		t.Errorf("ensure called %d times for default collection", n)
	}

	if _, err := h.c.CreateChunks(ctx, "session_abc", chunk); err != nil {
		t.Fatalf("CreateChunks session: %v", err)
	}
	if !h.vector.collections["session_abc"] {
		t.Error("session collection not created")
	}

	h.vector.upsertErr = connErr(domain.BackendVector)
	result, err := h.c.CreateChunks(ctx, "", chunk)
	if result != nil || domain.KindOf(err) != domain.KindConnection {
		t.Errorf("result = %v, err = %v, want nil and connection", result, err)
	}
}

func TestSearchChunksScoreUnchanged(t *testing.T) {
	h := ready(t)
	hits, err := h.c.SearchChunks(context.Background(), domain.SearchRequest{Vector: []float32{1}})
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(hits) != 1 || hits[0].Score != 0.87 {
		t.Errorf("hits = %+v", hits)
	}
}
