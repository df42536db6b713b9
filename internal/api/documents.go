package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/coordinator"
	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/handlers"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
	"github.com/JaimeStill/doc-gateway/pkg/routes"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Documents is the document surface of the coordinator.
type Documents interface {
	CreateDocument(ctx context.Context, up domain.Upload) (*coordinator.DocumentResult, error)
	CreateDocuments(ctx context.Context, uploads []domain.Upload) (*coordinator.BatchResult, error)
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
	DownloadDocument(ctx context.Context, documentID string) ([]byte, *domain.Object, error)
	ListDocuments(ctx context.Context, filter domain.DocumentFilter, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error)
	ListObjects(ctx context.Context, filter domain.ObjectFilter) ([]domain.Object, error)
	UpdateDocument(ctx context.Context, documentID string, patch domain.DocumentPatch) (*domain.Document, error)
	CheckDuplicate(ctx context.Context, digest string) (*domain.Object, error)
	DeleteDocument(ctx context.Context, documentID string) (*coordinator.DeleteResult, error)
	GetDocumentChunks(ctx context.Context, collection, documentID string, limit int) ([]domain.Chunk, error)
}

// DocumentHandler serves document upload, lookup and removal.
type DocumentHandler struct {
	sys    Documents
	logger *slog.Logger
	opts   Options
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(sys Documents, logger *slog.Logger, opts Options) *DocumentHandler {
	opts.defaults()
	return &DocumentHandler{
		sys:    sys,
		logger: logger.With("handler", "documents"),
		opts:   opts,
	}
}

// Routes returns the document route group.
func (h *DocumentHandler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/documents",
		Tags:        []string{"Documents"},
		Description: "Document upload and management across blob and relational stores",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Upload},
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/objects", Handler: h.Objects},
			{Method: "GET", Pattern: "/duplicate", Handler: h.Duplicate},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/content", Handler: h.Download},
			{Method: "GET", Pattern: "/{id}/chunks", Handler: h.Chunks},
			{Method: "PATCH", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
		},
	}
}

// Upload accepts one file in "file" or several in "files". Optional form
// fields user_id, session_id and metadata (a JSON object) apply to every file.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.opts.MaxUploadSize*int64(h.opts.MaxBatchFiles) + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, h.logger, ErrRequestTooLarge)
			return
		}
		respondError(w, h.logger, fmt.Errorf("%w: %v", ErrInvalidFile, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var meta map[string]any
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			respondError(w, h.logger, fmt.Errorf("%w: metadata: %v", handlers.ErrInvalidBody, err))
			return
		}
	}

	files := r.MultipartForm.File["files"]
	batch := len(files) > 0
	if !batch {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		respondError(w, h.logger, ErrNoFiles)
		return
	}
	if len(files) > h.opts.MaxBatchFiles {
		respondError(w, h.logger, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(files), h.opts.MaxBatchFiles))
		return
	}

	uploads := make([]domain.Upload, 0, len(files))
	for _, fh := range files {
		up, err := h.readUpload(fh, meta)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		up.UserID = r.FormValue("user_id")
		up.SessionID = r.FormValue("session_id")
		if !batch {
			up.DocumentID = r.FormValue("document_id")
		}
		uploads = append(uploads, up)
	}

	if !batch {
		result, err := h.sys.CreateDocument(r.Context(), uploads[0])
		if err != nil {
			if result != nil {
				handlers.RespondJSON(w, MapHTTPStatus(err), result)
				return
			}
			respondError(w, h.logger, err)
			return
		}
		handlers.RespondJSON(w, batchStatus(result.Status, http.StatusCreated), result)
		return
	}

	result, err := h.sys.CreateDocuments(r.Context(), uploads)
	if err != nil {
		if result != nil {
			handlers.RespondJSON(w, MapHTTPStatus(err), result)
			return
		}
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, batchStatus(result.Status, http.StatusCreated), result)
}

func (h *DocumentHandler) readUpload(fh *multipart.FileHeader, meta map[string]any) (domain.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Upload{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	contentType := detectContentType(fh.Header.Get("Content-Type"), data)
	metadata := domain.MergeMetadata(meta, nil)
	if contentType == "application/pdf" {
		if n, err := pageCount(data); err != nil {
			h.logger.Warn("failed to extract pdf page count", "filename", fh.Filename, "error", err)
		} else {
			metadata["page_count"] = n
		}
	}

	return domain.Upload{
		Filename:    fh.Filename,
		ContentType: contentType,
		Data:        data,
		Metadata:    metadata,
	}, nil
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pagination.PageRequestFromQuery(q, h.opts.Pagination)

	filter, err := filterFromQuery(q)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.sys.ListDocuments(r.Context(), filter, page)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *DocumentHandler) Objects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win := pagination.WindowFromQuery(q, h.opts.Pagination)

	objs, err := h.sys.ListObjects(r.Context(), domain.ObjectFilter{
		DocumentID: q.Get("document_id"),
		Filename:   q.Get("filename"),
		Offset:     win.Offset,
		Limit:      win.Limit,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, map[string]any{"objects": objs, "count": len(objs), "offset": win.Offset, "limit": win.Limit})
}

func (h *DocumentHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	obj, err := h.sys.CheckDuplicate(r.Context(), r.URL.Query().Get("file_hash"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, map[string]any{"duplicate": obj != nil, "object": obj})
}

func (h *DocumentHandler) Find(w http.ResponseWriter, r *http.Request) {
	doc, err := h.sys.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	data, obj, err := h.sys.DownloadDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(obj.Filename))
	if obj.FileHash != "" {
		w.Header().Set("X-File-Hash", obj.FileHash)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *DocumentHandler) Chunks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	chunks, err := h.sys.GetDocumentChunks(r.Context(), q.Get("collection"), r.PathValue("id"), limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, map[string]any{"chunks": chunks, "count": len(chunks)})
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.DocumentPatch
	if err := handlers.DecodeJSON(r, h.opts.MaxBodyBytes, &patch); err != nil {
		respondError(w, h.logger, err)
		return
	}

	doc, err := h.sys.UpdateDocument(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Delete answers 200 when every store is clean, 207 when some store still
// holds data, 404 when nothing held the document and 500 when nothing could
// be removed.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.DeleteDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	status := batchStatus(result.Status, http.StatusOK)
	if result.Status == domain.StatusFailed {
		status = http.StatusInternalServerError
	}
	handlers.RespondJSON(w, status, result)
}

func filterFromQuery(q url.Values) (domain.DocumentFilter, error) {
	opt := func(key string) *string {
		if v := q.Get(key); v != "" {
			return &v
		}
		return nil
	}
	f := domain.DocumentFilter{
		DocumentID: opt("document_id"),
		UserID:     opt("user_id"),
		SessionID:  opt("session_id"),
		Filename:   opt("filename"),
		Status:     opt("status"),
		FileType:   opt("file_type"),
	}

	for key, dst := range map[string]*time.Time{"uploaded_after": &f.UploadedAfter, "uploaded_before": &f.UploadedBefore} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, fmt.Errorf("%w: %s must be RFC 3339", ErrInvalidParam, key)
			}
			*dst = t
		}
	}

	if v := q.Get("metadata"); v != "" {
		if err := json.Unmarshal([]byte(v), &f.Metadata); err != nil {
			return f, fmt.Errorf("%w: metadata must be a JSON object", ErrInvalidParam)
		}
	}
	return f, nil
}

func detectContentType(header string, data []byte) string {
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}

func pageCount(data []byte) (int, error) {
	return pdfapi.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
}
