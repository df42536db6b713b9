package coordinator

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/JaimeStill/doc-gateway/internal/domain"
)

// CreateChunks upserts a batch into collection, creating the collection
// first when it is not the default. Invalid items are reported in
// FailedItems; the status is partial_failure when any item failed.
func (c *Coordinator) CreateChunks(ctx context.Context, collection string, chunks []domain.Chunk) (*domain.UpsertResult, error) {
	s, err := c.acquire("create_chunks")
	if err != nil {
		return nil, err
	}
	return c.upsertChunks(ctx, s, "create_chunks", collection, chunks, nil)
}

// UpdateChunks upserts chunks that already carry an id. Items without an id
// fail individually.
func (c *Coordinator) UpdateChunks(ctx context.Context, collection string, chunks []domain.Chunk) (*domain.UpsertResult, error) {
	s, err := c.acquire("update_chunks")
	if err != nil {
		return nil, err
	}

	var rejected []domain.ItemFailure
	for i, ch := range chunks {
		if ch.ID == "" {
			rejected = append(rejected, domain.ItemFailure{Index: i, Reason: "id required for update"})
		}
	}
	return c.upsertChunks(ctx, s, "update_chunks", collection, chunks, rejected)
}

func (c *Coordinator) upsertChunks(ctx context.Context, s *stores, op, collection string, chunks []domain.Chunk, rejected []domain.ItemFailure) (*domain.UpsertResult, error) {
	if err := c.ensureCollection(ctx, s, op, collection); err != nil {
		return nil, err
	}

	skip := make(map[int]bool, len(rejected))
	for _, f := range rejected {
		skip[f.Index] = true
	}

	index := make([]int, 0, len(chunks))
	batch := make([]domain.Chunk, 0, len(chunks))
	for i, ch := range chunks {
		if !skip[i] {
			index = append(index, i)
			batch = append(batch, ch)
		}
	}

	start := c.now()
	result, err := s.vector.Upsert(ctx, collection, batch)
	if err != nil {
		c.observe(op, domain.BackendVector, start, 0, err)
		return nil, err
	}

	for k := range result.FailedItems {
		result.FailedItems[k].Index = index[result.FailedItems[k].Index]
	}
	result.FailedItems = append(rejected, result.FailedItems...)
	if result.FailedItems == nil {
		result.FailedItems = []domain.ItemFailure{}
	}
	slices.SortFunc(result.FailedItems, func(a, b domain.ItemFailure) int {
		return cmp.Compare(a.Index, b.Index)
	})
	if len(result.FailedItems) > 0 {
		result.Status = domain.StatusPartialFailure
	}

	c.record(op, domain.BackendVector, string(result.Status), start, result.ProcessedCount)
	c.logger.Info("chunks upserted",
		"collection", result.Collection, "processed", result.ProcessedCount, "failed", len(result.FailedItems))
	return result, nil
}

func (c *Coordinator) ensureCollection(ctx context.Context, s *stores, op, collection string) error {
	if collection == "" || collection == s.vector.DefaultCollection() {
		return nil
	}
	start := c.now()
	err := s.vector.EnsureCollection(ctx, collection)
	c.observe(op, domain.BackendVector, start, 0, err)
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", collection, err)
	}
	return nil
}

// SearchChunks runs a similarity query. Scores are returned as the store
// computed them.
func (c *Coordinator) SearchChunks(ctx context.Context, req domain.SearchRequest) ([]domain.ScoredChunk, error) {
	s, err := c.acquire("search_chunks")
	if err != nil {
		return nil, err
	}

	start := c.now()
	hits, err := s.vector.Search(ctx, req)
	c.observe("search_chunks", domain.BackendVector, start, len(hits), err)
	return hits, err
}

// DeleteChunks removes chunks by id.
func (c *Coordinator) DeleteChunks(ctx context.Context, collection string, ids []string) error {
	s, err := c.acquire("delete_chunks")
	if err != nil {
		return err
	}

	start := c.now()
	err = s.vector.DeleteByIDs(ctx, collection, ids)
	c.observe("delete_chunks", domain.BackendVector, start, len(ids), err)
	return err
}

// DeleteDocumentChunks removes every chunk of the given documents.
func (c *Coordinator) DeleteDocumentChunks(ctx context.Context, collection string, documentIDs []string) error {
	s, err := c.acquire("delete_document_chunks")
	if err != nil {
		return err
	}

	start := c.now()
	err = s.vector.DeleteByDocumentIDs(ctx, collection, documentIDs)
	c.observe("delete_document_chunks", domain.BackendVector, start, len(documentIDs), err)
	return err
}

// GetDocumentChunks returns up to limit chunks of one document.
func (c *Coordinator) GetDocumentChunks(ctx context.Context, collection, documentID string, limit int) ([]domain.Chunk, error) {
	s, err := c.acquire("get_document_chunks")
	if err != nil {
		return nil, err
	}

	start := c.now()
	chunks, err := s.vector.ScrollByDocument(ctx, collection, documentID, limit)
	c.observe("get_document_chunks", domain.BackendVector, start, len(chunks), err)
	return chunks, err
}

// CollectionStats reports on one collection; empty means the default.
func (c *Coordinator) CollectionStats(ctx context.Context, collection string) (*domain.CollectionStats, error) {
	s, err := c.acquire("collection_stats")
	if err != nil {
		return nil, err
	}

	start := c.now()
	stats, err := s.vector.CollectionStats(ctx, collection)
	c.observe("collection_stats", domain.BackendVector, start, 1, err)
	return stats, err
}
