package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/doc-gateway/internal/coordinator"
	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/handlers"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
	"github.com/JaimeStill/doc-gateway/pkg/routes"
)

// Sessions is the session surface of the coordinator.
type Sessions interface {
	CreateSession(ctx context.Context, req coordinator.CreateSessionRequest) (*domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	QueryUserSessions(ctx context.Context, userID string, status *string, page pagination.PageRequest) (*pagination.PageResult[domain.Session], error)
	UpdateSession(ctx context.Context, sessionID string, patch coordinator.SessionPatch) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	FinalizeSession(ctx context.Context, sessionID string, req coordinator.FinalizeRequest) (*coordinator.FinalizeResult, error)
	ExpireOldSessions(ctx context.Context) (int64, error)
	QuerySessionDocuments(ctx context.Context, sessionID string, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error)
}

// SessionHandler serves session lifecycle endpoints.
type SessionHandler struct {
	sys    Sessions
	logger *slog.Logger
	opts   Options
}

func NewSessionHandler(sys Sessions, logger *slog.Logger, opts Options) *SessionHandler {
	opts.defaults()
	return &SessionHandler{
		sys:    sys,
		logger: logger.With("handler", "sessions"),
		opts:   opts,
	}
}

func (h *SessionHandler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/sessions",
		Tags:        []string{"Sessions"},
		Description: "Time-bounded user workspaces",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "/expire", Handler: h.Expire},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PATCH", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/finalize", Handler: h.Finalize},
			{Method: "GET", Pattern: "/{id}/documents", Handler: h.Documents},
		},
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req coordinator.CreateSessionRequest
	if err := handlers.DecodeJSON(r, h.opts.MaxBodyBytes, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	sess, err := h.sys.CreateSession(r.Context(), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		respondError(w, h.logger, fmt.Errorf("%w: user_id", ErrMissingParam))
		return
	}

	var status *string
	if v := q.Get("status"); v != "" {
		status = &v
	}

	page := pagination.PageRequestFromQuery(q, h.opts.Pagination)
	result, err := h.sys.QueryUserSessions(r.Context(), userID, status, page)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) Find(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sys.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch coordinator.SessionPatch
	if err := handlers.DecodeJSON(r, h.opts.MaxBodyBytes, &patch); err != nil {
		respondError(w, h.logger, err)
		return
	}

	sess, err := h.sys.UpdateSession(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sys.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req coordinator.FinalizeRequest
	if r.ContentLength != 0 {
		if err := handlers.DecodeJSON(r, h.opts.MaxBodyBytes, &req); err != nil {
			respondError(w, h.logger, err)
			return
		}
	}

	result, err := h.sys.FinalizeSession(r.Context(), r.PathValue("id"), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) Expire(w http.ResponseWriter, r *http.Request) {
	n, err := h.sys.ExpireOldSessions(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, map[string]int64{"expired": n})
}

func (h *SessionHandler) Documents(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.opts.Pagination)
	result, err := h.sys.QuerySessionDocuments(r.Context(), r.PathValue("id"), page)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}
