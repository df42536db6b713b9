package domain

import "time"

// Chunk is one embedded passage stored in a vector collection.
type Chunk struct {
	ID      string       `json:"id,omitempty"`
	Vector  []float32    `json:"vector"`
	Payload ChunkPayload `json:"payload"`
}

// ChunkPayload is the fixed payload schema stored with every point.
type ChunkPayload struct {
	DocumentID   string    `json:"document_id"`
	DocTitle     string    `json:"doc_title"`
	Page         int       `json:"page"`
	ChunkContent string    `json:"chunk_content"`
	FileURL      string    `json:"file_url"`
	UserID       string    `json:"user_id,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChunkFilter is an exact-match conjunction over indexed payload fields.
type ChunkFilter struct {
	DocumentID string `json:"document_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Page       *int   `json:"page,omitempty"`
}

// Empty reports whether no condition is set.
func (f ChunkFilter) Empty() bool {
	return f.DocumentID == "" && f.UserID == "" && f.SessionID == "" && f.Page == nil
}

// ScoredChunk is a search hit. Score is the store's native similarity.
type ScoredChunk struct {
	ID      string       `json:"id"`
	Score   float32      `json:"score"`
	Payload ChunkPayload `json:"payload"`
}

// SearchRequest describes a similarity query.
type SearchRequest struct {
	Collection string      `json:"collection,omitempty"`
	Vector     []float32   `json:"vector"`
	Limit      int         `json:"limit,omitempty"`
	Filter     ChunkFilter `json:"filter"`
}

// UpsertResult reports a chunk batch.
type UpsertResult struct {
	Status         Status        `json:"status"`
	Collection     string        `json:"collection"`
	ProcessedCount int           `json:"processed_count"`
	IDs            []string      `json:"ids"`
	FailedItems    []ItemFailure `json:"failed_items"`
}

// CollectionStats summarises a vector collection.
type CollectionStats struct {
	Name        string `json:"name"`
	PointsCount uint64 `json:"points_count"`
	Status      string `json:"status"`
	Dimension   uint64 `json:"dimension"`
	Distance    string `json:"distance"`
}
