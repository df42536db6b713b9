package domain

import (
	"maps"
	"time"
)

// Processing states written by the gateway. Callers may use others.
const (
	DocumentUploaded   = "uploaded"
	DocumentProcessing = "processing"
	DocumentProcessed  = "processed"
	DocumentStored     = "stored"
)

// Document is the relational metadata row for one uploaded file.
type Document struct {
	DocumentID       string         `json:"document_id"`
	UserID           string         `json:"user_id,omitempty"`
	SessionID        string         `json:"session_id,omitempty"`
	Filename         string         `json:"filename"`
	FileType         string         `json:"file_type"`
	FileSize         int64          `json:"file_size"`
	ContentType      string         `json:"content_type"`
	FileHash         string         `json:"file_hash"`
	FileURL          string         `json:"file_url"`
	ChunksCount      int            `json:"chunks_count"`
	ProcessingStatus string         `json:"processing_status"`
	Metadata         map[string]any `json:"metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// DocumentPatch carries independently optional updates. Metadata is merged.
type DocumentPatch struct {
	ProcessingStatus *string        `json:"processing_status,omitempty"`
	ChunksCount      *int           `json:"chunks_count,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Empty reports whether the patch changes nothing but updated_at.
func (p DocumentPatch) Empty() bool {
	return p.ProcessingStatus == nil && p.ChunksCount == nil && len(p.Metadata) == 0
}

// DocumentFilter narrows document queries. Nil fields are ignored.
type DocumentFilter struct {
	DocumentID *string
	UserID     *string
	SessionID  *string
	Filename   *string
	Status     *string
	FileType   *string

	UploadedAfter  time.Time
	UploadedBefore time.Time
	// Metadata matches rows whose metadata contains every given key/value.
	Metadata map[string]any
}

// Upload is one file handed to the gateway.
type Upload struct {
	DocumentID  string
	UserID      string
	SessionID   string
	Filename    string
	ContentType string
	Data        []byte
	Metadata    map[string]any
}

// Object describes a stored blob.
type Object struct {
	DocumentID  string    `json:"document_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	FileHash    string    `json:"file_hash"`
	FileURL     string    `json:"file_url"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	ETag        string    `json:"etag,omitempty"`
}

// ObjectFilter narrows blob listings. Empty fields are ignored.
type ObjectFilter struct {
	DocumentID string
	Filename   string
	Offset     int
	Limit      int
}

// MergeMetadata returns a shallow union of base and patch; patch wins.
func MergeMetadata(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	maps.Copy(out, base)
	maps.Copy(out, patch)
	return out
}
