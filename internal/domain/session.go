package domain

import "time"

// Session statuses written by the gateway.
const (
	SessionActive    = "active"
	SessionExpired   = "expired"
	SessionFinalized = "finalized"
)

// Session is a time-bounded workspace for one user's documents and chunks.
type Session struct {
	SessionID          string         `json:"session_id"`
	UserID             string         `json:"user_id"`
	Status             string         `json:"status"`
	TempCollectionName string         `json:"temp_collection_name,omitempty"`
	Metadata           map[string]any `json:"metadata"`
	CreatedAt          time.Time      `json:"created_at"`
	ExpiresAt          time.Time      `json:"expires_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Expired reports whether the session's expiry has passed at now,
// independent of whether the sweep has flipped its status yet.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionUpdate carries independently optional updates for the relational store.
// ExtendBy is added to the stored expires_at; ExpiresAt replaces it.
type SessionUpdate struct {
	Status             *string
	Metadata           map[string]any
	TempCollectionName *string
	ExtendBy           time.Duration
	ExpiresAt          *time.Time
}

// Empty reports whether the update changes nothing but updated_at.
func (u SessionUpdate) Empty() bool {
	return u.Status == nil && len(u.Metadata) == 0 && u.TempCollectionName == nil &&
		u.ExtendBy == 0 && u.ExpiresAt == nil
}

// SessionStats counts sessions by status.
type SessionStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}
