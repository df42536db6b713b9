package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/handlers"
	"github.com/JaimeStill/doc-gateway/pkg/routes"
)

// Chunks is the vector surface of the coordinator.
type Chunks interface {
	CreateChunks(ctx context.Context, collection string, chunks []domain.Chunk) (*domain.UpsertResult, error)
	UpdateChunks(ctx context.Context, collection string, chunks []domain.Chunk) (*domain.UpsertResult, error)
	SearchChunks(ctx context.Context, req domain.SearchRequest) ([]domain.ScoredChunk, error)
	DeleteChunks(ctx context.Context, collection string, ids []string) error
	DeleteDocumentChunks(ctx context.Context, collection string, documentIDs []string) error
	CollectionStats(ctx context.Context, collection string) (*domain.CollectionStats, error)
}

type chunkBatch struct {
	Collection string         `json:"collection"`
	Chunks     []domain.Chunk `json:"chunks"`
}

type chunkDeletion struct {
	Collection  string   `json:"collection"`
	IDs         []string `json:"ids"`
	DocumentIDs []string `json:"document_ids"`
}

// ChunkHandler serves chunk upsert, search and deletion.
type ChunkHandler struct {
	sys    Chunks
	logger *slog.Logger
	opts   Options
}

func NewChunkHandler(sys Chunks, logger *slog.Logger, opts Options) *ChunkHandler {
	opts.defaults()
	return &ChunkHandler{
		sys:    sys,
		logger: logger.With("handler", "chunks"),
		opts:   opts,
	}
}

func (h *ChunkHandler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/chunks",
		Tags:        []string{"Chunks"},
		Description: "Embedded chunk storage and similarity search",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "PUT", Pattern: "", Handler: h.Update},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "POST", Pattern: "/delete", Handler: h.Delete},
			{Method: "GET", Pattern: "/collections", Handler: h.Collection},
			{Method: "GET", Pattern: "/collections/{name}", Handler: h.Collection},
		},
	}
}

func (h *ChunkHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, h.sys.CreateChunks)
}

func (h *ChunkHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, h.sys.UpdateChunks)
}

type upsertFunc func(ctx context.Context, collection string, chunks []domain.Chunk) (*domain.UpsertResult, error)

// upsert answers 200 when every chunk was stored and 207 otherwise.
func (h *ChunkHandler) upsert(w http.ResponseWriter, r *http.Request, fn upsertFunc) {
	var body chunkBatch
	if err := handlers.DecodeJSON(r, h.opts.MaxBodyBytes, &body); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if len(body.Chunks) == 0 {
		respondError(w, h.logger, fmt.Errorf("%w: chunks", ErrMissingParam))
		return
	}

	result, err := fn(r.Context(), body.Collection, body.Chunks)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, batchStatus(result.Status, http.StatusOK), result)
}

func (h *ChunkHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := handlers.DecodeJSON(r, h.opts.MaxBodyBytes, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	hits, err := h.sys.SearchChunks(r.Context(), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, map[string]any{"results": hits, "count": len(hits)})
}

// Delete removes chunks either by id or by owning document, never both.
func (h *ChunkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req chunkDeletion
	if err := handlers.DecodeJSON(r, h.opts.MaxBodyBytes, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	var err error
	switch {
	case len(req.IDs) > 0 && len(req.DocumentIDs) > 0:
		err = fmt.Errorf("%w: ids and document_ids are exclusive", handlers.ErrInvalidBody)
	case len(req.IDs) > 0:
		err = h.sys.DeleteChunks(r.Context(), req.Collection, req.IDs)
	case len(req.DocumentIDs) > 0:
		err = h.sys.DeleteDocumentChunks(r.Context(), req.Collection, req.DocumentIDs)
	default:
		err = fmt.Errorf("%w: ids or document_ids", ErrMissingParam)
	}
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": string(domain.StatusSuccess)})
}

func (h *ChunkHandler) Collection(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sys.CollectionStats(r.Context(), r.PathValue("name"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, stats)
}
