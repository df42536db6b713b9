package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
	"github.com/JaimeStill/doc-gateway/pkg/query"
	"github.com/JaimeStill/doc-gateway/pkg/repository"
)

var sessionProjection = query.NewProjectionMap("public", "sessions", "s").
	Project("session_id", "SessionID").
	Project("user_id", "UserID").
	Project("status", "Status").
	Project("temp_collection_name", "TempCollectionName").
	Project("metadata", "Metadata").
	Project("created_at", "CreatedAt").
	Project("expires_at", "ExpiresAt").
	Project("updated_at", "UpdatedAt")

var sessionSort = query.SortField{Field: "CreatedAt", Descending: true}

// sweepSQL expires every session whose expiry has passed, whatever its
// current status.
const sweepSQL = `UPDATE sessions SET status = 'expired', updated_at = NOW()
	WHERE status <> 'expired' AND expires_at < NOW()`

func scanSession(s repository.Scanner) (domain.Session, error) {
	var (
		sess     domain.Session
		metadata []byte
	)
	err := s.Scan(
		&sess.SessionID,
		&sess.UserID,
		&sess.Status,
		&sess.TempCollectionName,
		&metadata,
		&sess.CreatedAt,
		&sess.ExpiresAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		return sess, err
	}
	sess.Metadata, err = decodeMetadata(metadata)
	return sess, err
}

// CreateSession inserts a session row.
func (p *Postgres) CreateSession(ctx context.Context, s domain.Session) (*domain.Session, error) {
	const op = "create_session"
	if err := validUUID(op, "session_id", s.SessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.UserID) == "" {
		return nil, domain.Invalid(domain.BackendRelational, op, "user_id required")
	}
	if s.ExpiresAt.IsZero() {
		return nil, domain.Invalid(domain.BackendRelational, op, "expires_at required")
	}
	if s.Status == "" {
		s.Status = domain.SessionActive
	}
	meta, err := encodeMetadata(s.Metadata)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, domain.BackendRelational, op, err)
	}

	q := fmt.Sprintf(`INSERT INTO public.sessions AS s
		(session_id, user_id, status, temp_collection_name, metadata, expires_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING %s`, sessionProjection.Columns())

	sess, err := repository.QueryOne(ctx, p.db, q,
		[]any{s.SessionID, s.UserID, s.Status, s.TempCollectionName, meta, s.ExpiresAt},
		scanSession)
	if err != nil {
		return nil, classify(op, s.SessionID, err)
	}

	p.logger.Info("session created", "session_id", sess.SessionID, "user_id", sess.UserID, "expires_at", sess.ExpiresAt)
	return &sess, nil
}

// GetSession returns one session.
func (p *Postgres) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if err := validUUID("get_session", "session_id", sessionID); err != nil {
		return nil, err
	}

	q, args := query.NewBuilder(sessionProjection, sessionSort).BuildSingle("SessionID", sessionID)
	sess, err := repository.QueryOne(ctx, p.db, q, args, scanSession)
	if err != nil {
		return nil, classify("get_session", sessionID, err)
	}
	return &sess, nil
}

// QueryUserSessions pages a user's sessions, optionally narrowed to one status.
func (p *Postgres) QueryUserSessions(ctx context.Context, userID string, status *string, page pagination.PageRequest) (*pagination.PageResult[domain.Session], error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid(domain.BackendRelational, "query_user_sessions", "user_id required")
	}
	page.Normalize(p.pagination)

	qb := query.NewBuilder(sessionProjection, sessionSort).WhereEquals("UserID", userID)
	if status != nil && *status != "" {
		qb.WhereEquals("Status", *status)
	}
	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	return queryPage(ctx, p.db, qb, page, scanSession, "query_user_sessions")
}

// buildSessionUpdate renders the UPDATE for a session. ExtendBy is added to
// the stored expires_at (or to ExpiresAt when both are set), never to NOW().
func buildSessionUpdate(sessionID string, u domain.SessionUpdate) (string, []any, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 5)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if u.Status != nil {
		if strings.TrimSpace(*u.Status) == "" {
			return "", nil, domain.Invalid(domain.BackendRelational, "update_session", "status must not be empty")
		}
		sets = append(sets, "status = "+next(*u.Status))
	}
	if len(u.Metadata) > 0 {
		meta, err := encodeMetadata(u.Metadata)
		if err != nil {
			return "", nil, domain.NewError(domain.KindValidation, domain.BackendRelational, "update_session", err)
		}
		sets = append(sets, "metadata = s.metadata || "+next(meta)+"::jsonb")
	}
	if u.TempCollectionName != nil {
		sets = append(sets, "temp_collection_name = "+next(*u.TempCollectionName))
	}

	base := "s.expires_at"
	if u.ExpiresAt != nil {
		base = next(*u.ExpiresAt) + "::timestamptz"
	}
	switch {
	case u.ExtendBy < 0:
		return "", nil, domain.Invalid(domain.BackendRelational, "update_session", "extension must be positive")
	case u.ExtendBy > 0:
		sets = append(sets, fmt.Sprintf("expires_at = %s + make_interval(secs => %s)", base, next(u.ExtendBy.Seconds())))
	case u.ExpiresAt != nil:
		sets = append(sets, "expires_at = "+base)
	}

	sets = append(sets, "updated_at = NOW()")

	q := fmt.Sprintf("UPDATE %s SET %s WHERE s.session_id = %s RETURNING %s",
		sessionProjection.Table(),
		strings.Join(sets, ", "),
		next(sessionID),
		sessionProjection.Columns(),
	)
	return q, args, nil
}

// UpdateSession applies independently optional changes in one statement.
func (p *Postgres) UpdateSession(ctx context.Context, sessionID string, u domain.SessionUpdate) (*domain.Session, error) {
	if err := validUUID("update_session", "session_id", sessionID); err != nil {
		return nil, err
	}

	q, args, err := buildSessionUpdate(sessionID, u)
	if err != nil {
		return nil, err
	}

	sess, err := repository.QueryOne(ctx, p.db, q, args, scanSession)
	if err != nil {
		return nil, classify("update_session", sessionID, err)
	}

	p.logger.Info("session updated", "session_id", sessionID, "status", sess.Status, "expires_at", sess.ExpiresAt)
	return &sess, nil
}

// DeleteSession removes a session row. Its documents are left in place.
func (p *Postgres) DeleteSession(ctx context.Context, sessionID string) error {
	if err := validUUID("delete_session", "session_id", sessionID); err != nil {
		return err
	}

	if err := repository.ExecExpectOne(ctx, p.db, "DELETE FROM sessions WHERE session_id = $1", sessionID); err != nil {
		return classify("delete_session", sessionID, err)
	}

	p.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// SweepExpiredSessions marks overdue sessions expired and returns how many changed.
func (p *Postgres) SweepExpiredSessions(ctx context.Context) (int64, error) {
	result, err := p.db.ExecContext(ctx, sweepSQL)
	if err != nil {
		return 0, classify("sweep_sessions", "", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, classify("sweep_sessions", "", err)
	}

	if n > 0 {
		p.logger.Info("sessions expired", "count", n)
	}
	return n, nil
}
