package vector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload field names. The first four carry payload indexes.
const (
	FieldDocumentID   = "document_id"
	FieldUserID       = "user_id"
	FieldSessionID    = "session_id"
	FieldPage         = "page"
	FieldDocTitle     = "doc_title"
	FieldChunkContent = "chunk_content"
	FieldFileURL      = "file_url"
	FieldCreatedAt    = "created_at"
	FieldUpdatedAt    = "updated_at"
)

func parseDistance(s string) (qdrant.Distance, error) {
	switch strings.ToLower(s) {
	case DistanceCosine:
		return qdrant.Distance_Cosine, nil
	case DistanceDot:
		return qdrant.Distance_Dot, nil
	case DistanceEuclid:
		return qdrant.Distance_Euclid, nil
	case DistanceManhattan:
		return qdrant.Distance_Manhattan, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("invalid distance: %s (must be cosine, dot, euclid, or manhattan)", s)
	}
}

// validateChunk returns the point id to use, or a reason the chunk is rejected.
func validateChunk(c domain.Chunk, dimension uint64) (string, error) {
	if len(c.Vector) == 0 {
		return "", fmt.Errorf("vector required")
	}
	if dimension > 0 && uint64(len(c.Vector)) != dimension {
		return "", fmt.Errorf("vector dimension %d does not match collection dimension %d", len(c.Vector), dimension)
	}
	if strings.TrimSpace(c.Payload.DocumentID) == "" {
		return "", fmt.Errorf("document_id required")
	}
	if strings.TrimSpace(c.Payload.ChunkContent) == "" {
		return "", fmt.Errorf("chunk_content required")
	}
	if c.Payload.Page < 0 {
		return "", fmt.Errorf("page must be non-negative")
	}

	if c.ID == "" {
		return uuid.NewString(), nil
	}
	return parseID(c.ID)
}

func parseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("chunk id %q is not a UUID", id)
	}
	return u.String(), nil
}

func toPayload(p domain.ChunkPayload) map[string]*qdrant.Value {
	out := map[string]*qdrant.Value{
		FieldDocumentID:   qdrant.NewValueString(p.DocumentID),
		FieldDocTitle:     qdrant.NewValueString(p.DocTitle),
		FieldPage:         qdrant.NewValueInt(int64(p.Page)),
		FieldChunkContent: qdrant.NewValueString(p.ChunkContent),
		FieldFileURL:      qdrant.NewValueString(p.FileURL),
		FieldCreatedAt:    qdrant.NewValueString(p.CreatedAt.UTC().Format(time.RFC3339Nano)),
		FieldUpdatedAt:    qdrant.NewValueString(p.UpdatedAt.UTC().Format(time.RFC3339Nano)),
	}
	if p.UserID != "" {
		out[FieldUserID] = qdrant.NewValueString(p.UserID)
	}
	if p.SessionID != "" {
		out[FieldSessionID] = qdrant.NewValueString(p.SessionID)
	}
	return out
}

func fromPayload(m map[string]*qdrant.Value) domain.ChunkPayload {
	p := domain.ChunkPayload{
		DocumentID:   m[FieldDocumentID].GetStringValue(),
		DocTitle:     m[FieldDocTitle].GetStringValue(),
		ChunkContent: m[FieldChunkContent].GetStringValue(),
		FileURL:      m[FieldFileURL].GetStringValue(),
		UserID:       m[FieldUserID].GetStringValue(),
		SessionID:    m[FieldSessionID].GetStringValue(),
		Page:         int(m[FieldPage].GetIntegerValue()),
	}
	if t, err := time.Parse(time.RFC3339Nano, m[FieldCreatedAt].GetStringValue()); err == nil {
		p.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, m[FieldUpdatedAt].GetStringValue()); err == nil {
		p.UpdatedAt = t
	}
	return p
}

// buildFilter turns a ChunkFilter into a conjunction of exact matches. It
// returns nil when no condition is set.
func buildFilter(f domain.ChunkFilter) *qdrant.Filter {
	if f.Empty() {
		return nil
	}

	var must []*qdrant.Condition
	if f.DocumentID != "" {
		must = append(must, qdrant.NewMatch(FieldDocumentID, f.DocumentID))
	}
	if f.UserID != "" {
		must = append(must, qdrant.NewMatch(FieldUserID, f.UserID))
	}
	if f.SessionID != "" {
		must = append(must, qdrant.NewMatch(FieldSessionID, f.SessionID))
	}
	if f.Page != nil {
		must = append(must, qdrant.NewMatchInt(FieldPage, int64(*f.Page)))
	}
	return &qdrant.Filter{Must: must}
}

func documentFilter(documentIDs ...string) *qdrant.Filter {
	if len(documentIDs) == 1 {
		return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(FieldDocumentID, documentIDs[0])}}
	}
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatchKeywords(FieldDocumentID, documentIDs...)}}
}

func pointID(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
