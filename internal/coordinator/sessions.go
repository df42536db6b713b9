package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Finalize types.
const (
	FinalizeNormal  = "normal"
	FinalizeForce   = "force"
	FinalizeCleanup = "cleanup"
)

// CreateSessionRequest describes a new session. ExpiresInHours of zero uses
// the configured default.
type CreateSessionRequest struct {
	UserID         string         `json:"user_id"`
	ExpiresInHours int            `json:"expires_in_hours"`
	Metadata       map[string]any `json:"metadata"`
	TempCollection bool           `json:"temp_collection"`
}

// SessionPatch describes a session update. ExtendHours is added to the
// stored expiry.
type SessionPatch struct {
	Status             *string        `json:"status,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	TempCollectionName *string        `json:"temp_collection_name,omitempty"`
	ExtendHours        int            `json:"extend_hours,omitempty"`
}

// FinalizeRequest closes a session.
type FinalizeRequest struct {
	Type              string `json:"type"`
	PreserveDocuments bool   `json:"preserve_documents"`
}

// FinalizeResult reports what finalization removed.
type FinalizeResult struct {
	Session           *domain.Session `json:"session"`
	DeletedDocuments  int             `json:"deleted_documents"`
	Deletions         []DeleteResult  `json:"deletions,omitempty"`
	CollectionDropped bool            `json:"collection_dropped"`
}

func (c *Coordinator) checkTTL(op, field string, hours int) error {
	if hours < c.cfg.MinTTLHours || hours > c.cfg.MaxTTLHours {
		return domain.Invalid(domain.BackendSystem, op, "%s must be between %d and %d, got %d",
			field, c.cfg.MinTTLHours, c.cfg.MaxTTLHours, hours)
	}
	return nil
}

// CreateSession creates an active session expiring ExpiresInHours from now.
// With TempCollection set, a session-scoped vector collection is created first.
func (c *Coordinator) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	s, err := c.acquire("create_session")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.Invalid(domain.BackendSystem, "create_session", "user_id required")
	}
	hours := req.ExpiresInHours
	if hours == 0 {
		hours = c.cfg.DefaultTTLHours
	}
	if err := c.checkTTL("create_session", "expires_in_hours", hours); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	sess := domain.Session{
		SessionID: uuid.NewString(),
		UserID:    req.UserID,
		Status:    domain.SessionActive,
		Metadata:  req.Metadata,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(hours) * time.Hour),
	}

	if req.TempCollection {
		sess.TempCollectionName = c.cfg.CollectionName(sess.SessionID)
		if err := c.ensureCollection(ctx, s, "create_session", sess.TempCollectionName); err != nil {
			return nil, err
		}
	}

	start := c.now()
	created, err := s.relational.CreateSession(ctx, sess)
	c.observe("create_session", domain.BackendRelational, start, 1, err)
	if err != nil {
		if sess.TempCollectionName != "" {
			c.dropCollection(ctx, s, sess.TempCollectionName)
		}
		return nil, err
	}
	return created, nil
}

// GetSession returns a session. Expiry is not evaluated here; a session past
// expires_at keeps its status until the sweep runs.
func (c *Coordinator) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := c.acquire("get_session")
	if err != nil {
		return nil, err
	}

	start := c.now()
	sess, err := s.relational.GetSession(ctx, sessionID)
	c.observe("get_session", domain.BackendRelational, start, 1, err)
	return sess, err
}

// QueryUserSessions pages a user's sessions.
func (c *Coordinator) QueryUserSessions(ctx context.Context, userID string, status *string, page pagination.PageRequest) (*pagination.PageResult[domain.Session], error) {
	s, err := c.acquire("query_user_sessions")
	if err != nil {
		return nil, err
	}

	start := c.now()
	result, err := s.relational.QueryUserSessions(ctx, userID, status, page)
	items := 0
	if result != nil {
		items = len(result.Data)
	}
	c.observe("query_user_sessions", domain.BackendRelational, start, items, err)
	return result, err
}

// UpdateSession applies a patch. ExtendHours must lie within the TTL bounds
// and moves expires_at forward from its stored value.
func (c *Coordinator) UpdateSession(ctx context.Context, sessionID string, patch SessionPatch) (*domain.Session, error) {
	s, err := c.acquire("update_session")
	if err != nil {
		return nil, err
	}

	u := domain.SessionUpdate{
		Status:             patch.Status,
		Metadata:           patch.Metadata,
		TempCollectionName: patch.TempCollectionName,
	}
	if patch.ExtendHours != 0 {
		if err := c.checkTTL("update_session", "extend_hours", patch.ExtendHours); err != nil {
			return nil, err
		}
		u.ExtendBy = time.Duration(patch.ExtendHours) * time.Hour
	}

	start := c.now()
	sess, err := s.relational.UpdateSession(ctx, sessionID, u)
	c.observe("update_session", domain.BackendRelational, start, 1, err)
	return sess, err
}

// DeleteSession removes the session row and drops its temporary collection.
// Documents uploaded under the session are kept.
func (c *Coordinator) DeleteSession(ctx context.Context, sessionID string) error {
	s, err := c.acquire("delete_session")
	if err != nil {
		return err
	}

	start := c.now()
	sess, err := s.relational.GetSession(ctx, sessionID)
	if err != nil {
		c.observe("delete_session", domain.BackendRelational, start, 1, err)
		return err
	}

	err = s.relational.DeleteSession(ctx, sessionID)
	c.observe("delete_session", domain.BackendRelational, start, 1, err)
	if err != nil {
		return err
	}

	if sess.TempCollectionName != "" {
		c.dropCollection(ctx, s, sess.TempCollectionName)
	}
	return nil
}

// ExpireOldSessions marks every overdue session expired and returns the count.
// A second run with nothing newly overdue returns zero.
func (c *Coordinator) ExpireOldSessions(ctx context.Context) (int64, error) {
	s, err := c.acquire("expire_sessions")
	if err != nil {
		return 0, err
	}

	start := c.now()
	n, err := s.relational.SweepExpiredSessions(ctx)
	c.observe("expire_sessions", domain.BackendRelational, start, int(n), err)
	return n, err
}

// QuerySessionDocuments pages the documents uploaded under a session.
func (c *Coordinator) QuerySessionDocuments(ctx context.Context, sessionID string, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error) {
	s, err := c.acquire("query_session_documents")
	if err != nil {
		return nil, err
	}

	start := c.now()
	result, err := s.relational.QuerySessionDocuments(ctx, sessionID, page)
	items := 0
	if result != nil {
		items = len(result.Data)
	}
	c.observe("query_session_documents", domain.BackendRelational, start, items, err)
	return result, err
}

// FinalizeSession marks a session finalized. For force and cleanup without
// PreserveDocuments, every session document is deleted from all stores and
// the temporary collection is dropped.
func (c *Coordinator) FinalizeSession(ctx context.Context, sessionID string, req FinalizeRequest) (*FinalizeResult, error) {
	s, err := c.acquire("finalize_session")
	if err != nil {
		return nil, err
	}

	if req.Type == "" {
		req.Type = FinalizeNormal
	}
	switch req.Type {
	case FinalizeNormal, FinalizeForce, FinalizeCleanup:
	default:
		return nil, domain.Invalid(domain.BackendSystem, "finalize_session",
			"invalid finalize type %q (must be normal, force, or cleanup)", req.Type)
	}

	sess, err := s.relational.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.SessionFinalized {
		return nil, domain.NewError(domain.KindConflict, domain.BackendSystem, "finalize_session",
			fmt.Errorf("session %s already finalized", sessionID))
	}

	result := &FinalizeResult{}
	if req.Type != FinalizeNormal && !req.PreserveDocuments {
		deletions, err := c.purgeSessionDocuments(ctx, s, sessionID)
		if err != nil {
			return nil, err
		}
		result.Deletions = deletions
		for _, d := range deletions {
			if d.Status == domain.StatusSuccess || d.Status == domain.StatusNotFound {
				result.DeletedDocuments++
			}
		}
		if sess.TempCollectionName != "" {
			result.CollectionDropped = c.dropCollection(ctx, s, sess.TempCollectionName)
		}
	}

	status := domain.SessionFinalized
	start := c.now()
	updated, err := s.relational.UpdateSession(ctx, sessionID, domain.SessionUpdate{
		Status: &status,
		Metadata: map[string]any{
			"finalized_at":       c.now().UTC().Format(time.RFC3339),
			"finalize_type":      req.Type,
			"preserve_documents": req.PreserveDocuments,
		},
	})
	c.observe("finalize_session", domain.BackendRelational, start, 1, err)
	if err != nil {
		return nil, err
	}

	result.Session = updated
	c.logger.Info("session finalized",
		"session_id", sessionID, "type", req.Type, "deleted_documents", result.DeletedDocuments)
	return result, nil
}

const purgeConcurrency = 4

// purgeSessionDocuments deletes every document of a session from all stores.
func (c *Coordinator) purgeSessionDocuments(ctx context.Context, s *stores, sessionID string) ([]DeleteResult, error) {
	var ids []string
	page := pagination.PageRequest{Page: 1, PageSize: 100}
	for {
		docs, err := s.relational.QuerySessionDocuments(ctx, sessionID, page)
		if err != nil {
			return nil, err
		}
		for _, d := range docs.Data {
			ids = append(ids, d.DocumentID)
		}
		if page.Page >= docs.TotalPages || len(docs.Data) == 0 {
			break
		}
		page.Page++
	}

	results := make([]DeleteResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(purgeConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = *c.deleteDocument(gctx, s, id)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// dropCollection removes a session collection, logging instead of failing.
func (c *Coordinator) dropCollection(ctx context.Context, s *stores, name string) bool {
	start := c.now()
	err := s.vector.DeleteCollection(ctx, name)
	c.observe("drop_collection", domain.BackendVector, start, 0, err)
	if err != nil {
		c.logger.Warn("collection drop failed", "collection", name, "error", err)
		return false
	}
	return true
}
