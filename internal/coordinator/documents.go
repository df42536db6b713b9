package coordinator

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/blob"
	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
	"github.com/google/uuid"
)

// DocumentResult reports a single upload. Object is set once the blob is
// written, even when the relational insert then fails.
type DocumentResult struct {
	Status   domain.Status        `json:"status"`
	Document *domain.Document     `json:"document,omitempty"`
	Object   *domain.Object       `json:"object,omitempty"`
	Failures []domain.ItemFailure `json:"failures,omitempty"`
}

// BatchResult reports a batch upload.
type BatchResult struct {
	Status    domain.Status        `json:"status"`
	Documents []domain.Document    `json:"documents"`
	Failures  []domain.ItemFailure `json:"failures"`
}

// Outcome is one backend's part in a multi-backend delete.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// DeleteResult reports which backends still hold a document after a delete.
type DeleteResult struct {
	DocumentID string                     `json:"document_id"`
	Status     domain.Status              `json:"status"`
	Backends   map[domain.Backend]Outcome `json:"backends"`
	Errors     map[domain.Backend]string  `json:"errors,omitempty"`
}

// prepareUpload assigns a document id when absent and checks identifiers
// before anything is written.
func prepareUpload(up domain.Upload) (domain.Upload, error) {
	if up.DocumentID == "" {
		up.DocumentID = uuid.NewString()
	}
	check := func(field, v string, required bool) error {
		if v == "" && !required {
			return nil
		}
		if _, err := uuid.Parse(v); err != nil {
			return domain.Invalid(domain.BackendSystem, "create_document", "%s %q is not a valid UUID", field, v)
		}
		return nil
	}
	if err := check("document_id", up.DocumentID, true); err != nil {
		return up, err
	}
	if err := check("user_id", up.UserID, false); err != nil {
		return up, err
	}
	if err := check("session_id", up.SessionID, false); err != nil {
		return up, err
	}
	return up, nil
}

func newDocument(up domain.Upload, obj *domain.Object) domain.Document {
	return domain.Document{
		DocumentID:       up.DocumentID,
		UserID:           up.UserID,
		SessionID:        up.SessionID,
		Filename:         up.Filename,
		FileType:         blob.Extension(up.Filename),
		FileSize:         obj.Size,
		ContentType:      up.ContentType,
		FileHash:         obj.FileHash,
		FileURL:          obj.FileURL,
		ProcessingStatus: domain.DocumentUploaded,
		Metadata:         up.Metadata,
	}
}

func failure(index int, id, name string, err error) domain.ItemFailure {
	return domain.ItemFailure{Index: index, ID: id, Name: name, Reason: err.Error()}
}

// CreateDocument writes the blob, then the relational row. A blob failure
// never reaches the relational store. A relational failure leaves the blob
// in place and is reported with Object set.
func (c *Coordinator) CreateDocument(ctx context.Context, up domain.Upload) (*DocumentResult, error) {
	s, err := c.acquire("create_document")
	if err != nil {
		return nil, err
	}

	up, err = prepareUpload(up)
	if err != nil {
		return &DocumentResult{
			Status:   domain.StatusFailed,
			Failures: []domain.ItemFailure{failure(0, up.DocumentID, up.Filename, err)},
		}, nil
	}

	start := c.now()
	obj, err := s.blob.Put(ctx, blob.PutObject{
		DocumentID:  up.DocumentID,
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Digest:      blob.Digest(up.Data),
		Data:        up.Data,
	})
	c.observe("create_document", domain.BackendBlob, start, 1, err)
	if err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			c.logger.Warn("upload rejected", "document_id", up.DocumentID, "filename", up.Filename, "reason", err)
			return &DocumentResult{
				Status:   domain.StatusFailed,
				Failures: []domain.ItemFailure{failure(0, up.DocumentID, up.Filename, err)},
			}, nil
		}
		c.logger.Error("blob write failed", "document_id", up.DocumentID, "error", err)
		return nil, err
	}

	start = c.now()
	docs, err := s.relational.InsertDocuments(ctx, []domain.Document{newDocument(up, obj)})
	c.observe("create_document", domain.BackendRelational, start, 1, err)
	if err != nil {
		c.logger.Error("relational insert failed after blob write",
			"document_id", up.DocumentID, "file_url", obj.FileURL, "error", err)
		result := &DocumentResult{
			Status:   domain.StatusFailed,
			Object:   obj,
			Failures: []domain.ItemFailure{failure(0, up.DocumentID, up.Filename, err)},
		}
		if domain.KindOf(err) == domain.KindValidation {
			return result, nil
		}
		return result, err
	}

	c.logger.Info("document created", "document_id", up.DocumentID, "filename", up.Filename, "size", obj.Size)
	return &DocumentResult{Status: domain.StatusSuccess, Document: &docs[0], Object: obj}, nil
}

// CreateDocuments uploads a batch. Blobs are written per item; every stored
// blob then gets its row in one relational transaction. A connection failure
// is returned together with the partial result.
func (c *Coordinator) CreateDocuments(ctx context.Context, uploads []domain.Upload) (*BatchResult, error) {
	s, err := c.acquire("create_documents")
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		Documents: make([]domain.Document, 0, len(uploads)),
		Failures:  make([]domain.ItemFailure, 0),
	}

	prepared := make([]domain.Upload, 0, len(uploads))
	index := make([]int, 0, len(uploads))
	items := make([]blob.PutObject, 0, len(uploads))
	for i, up := range uploads {
		up, err := prepareUpload(up)
		if err != nil {
			result.Failures = append(result.Failures, failure(i, up.DocumentID, up.Filename, err))
			continue
		}
		prepared = append(prepared, up)
		index = append(index, i)
		items = append(items, blob.PutObject{
			DocumentID:  up.DocumentID,
			Filename:    up.Filename,
			ContentType: up.ContentType,
			Digest:      blob.Digest(up.Data),
			Data:        up.Data,
		})
	}

	start := c.now()
	put, putErr := s.blob.PutMany(ctx, items)
	if put == nil {
		put = &blob.PutResult{}
	}
	c.observe("create_documents", domain.BackendBlob, start, len(put.Objects), putErr)

	handled := make(map[int]bool, len(items))
	for _, f := range put.Failures {
		handled[f.Index] = true
		f.Index = index[f.Index]
		result.Failures = append(result.Failures, f)
	}

	docs := make([]domain.Document, 0, len(put.Objects))
	docIndex := make([]int, 0, len(put.Objects))
	for _, obj := range put.Objects {
		for j, up := range prepared {
			if up.DocumentID == obj.DocumentID && !handled[j] {
				handled[j] = true
				docs = append(docs, newDocument(up, &obj))
				docIndex = append(docIndex, index[j])
				break
			}
		}
	}

	if putErr != nil {
		for j, up := range prepared {
			if !handled[j] {
				result.Failures = append(result.Failures, failure(index[j], up.DocumentID, up.Filename, putErr))
			}
		}
	}

	var relErr error
	if len(docs) > 0 {
		start = c.now()
		inserted, err := s.relational.InsertDocuments(ctx, docs)
		c.observe("create_documents", domain.BackendRelational, start, len(docs), err)
		if err != nil {
			c.logger.Error("relational batch insert failed after blob writes", "count", len(docs), "error", err)
			for k, d := range docs {
				result.Failures = append(result.Failures, failure(docIndex[k], d.DocumentID, d.Filename, err))
			}
			if domain.KindOf(err) != domain.KindValidation {
				relErr = err
			}
		} else {
			result.Documents = inserted
		}
	}

	switch {
	case len(result.Failures) == 0:
		result.Status = domain.StatusSuccess
	case len(result.Documents) > 0:
		result.Status = domain.StatusPartialFailure
	default:
		result.Status = domain.StatusFailed
	}

	c.logger.Info("document batch processed",
		"requested", len(uploads), "created", len(result.Documents), "failed", len(result.Failures))

	if putErr != nil {
		return result, putErr
	}
	return result, relErr
}

// GetDocument returns the relational row, falling back to blob metadata when
// the row is missing or the relational store is unreachable.
func (c *Coordinator) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	s, err := c.acquire("get_document")
	if err != nil {
		return nil, err
	}

	start := c.now()
	doc, relErr := s.relational.GetDocument(ctx, documentID)
	c.observe("get_document", domain.BackendRelational, start, 1, relErr)
	if relErr == nil {
		return doc, nil
	}

	kind := domain.KindOf(relErr)
	if kind != domain.KindNotFound && kind != domain.KindValidation && kind != domain.KindConnection {
		return nil, relErr
	}

	start = c.now()
	obj, err := s.blob.Stat(ctx, documentID)
	c.observe("get_document", domain.BackendBlob, start, 1, err)
	if err != nil {
		if kind == domain.KindConnection {
			return nil, relErr
		}
		return nil, err
	}

	if kind == domain.KindConnection {
		c.logger.Warn("serving document from blob metadata", "document_id", documentID, "error", relErr)
	}
	return documentFromObject(obj), nil
}

func documentFromObject(obj *domain.Object) *domain.Document {
	return &domain.Document{
		DocumentID:       obj.DocumentID,
		Filename:         obj.Filename,
		FileType:         blob.Extension(obj.Filename),
		FileSize:         obj.Size,
		ContentType:      obj.ContentType,
		FileHash:         obj.FileHash,
		FileURL:          obj.FileURL,
		ProcessingStatus: domain.DocumentStored,
		Metadata:         map[string]any{"source": string(domain.BackendBlob)},
		CreatedAt:        obj.UploadedAt,
		UpdatedAt:        obj.ModifiedAt,
	}
}

// DownloadDocument returns the stored bytes.
func (c *Coordinator) DownloadDocument(ctx context.Context, documentID string) ([]byte, *domain.Object, error) {
	s, err := c.acquire("download_document")
	if err != nil {
		return nil, nil, err
	}

	start := c.now()
	data, obj, err := s.blob.Get(ctx, documentID)
	c.observe("download_document", domain.BackendBlob, start, 1, err)
	return data, obj, err
}

// ListDocuments queries relational rows.
func (c *Coordinator) ListDocuments(ctx context.Context, filter domain.DocumentFilter, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error) {
	s, err := c.acquire("list_documents")
	if err != nil {
		return nil, err
	}

	start := c.now()
	result, err := s.relational.QueryDocuments(ctx, filter, page)
	items := 0
	if result != nil {
		items = len(result.Data)
	}
	c.observe("list_documents", domain.BackendRelational, start, items, err)
	return result, err
}

// ListObjects lists blobs directly, including any without a relational row.
func (c *Coordinator) ListObjects(ctx context.Context, filter domain.ObjectFilter) ([]domain.Object, error) {
	s, err := c.acquire("list_objects")
	if err != nil {
		return nil, err
	}

	start := c.now()
	objs, err := s.blob.List(ctx, filter)
	c.observe("list_objects", domain.BackendBlob, start, len(objs), err)
	return objs, err
}

// UpdateDocument patches the relational row. A processing status change is
// mirrored into blob side metadata on a best-effort basis.
func (c *Coordinator) UpdateDocument(ctx context.Context, documentID string, patch domain.DocumentPatch) (*domain.Document, error) {
	s, err := c.acquire("update_document")
	if err != nil {
		return nil, err
	}

	start := c.now()
	doc, err := s.relational.UpdateDocument(ctx, documentID, patch)
	c.observe("update_document", domain.BackendRelational, start, 1, err)
	if err != nil {
		return nil, err
	}

	if patch.ProcessingStatus != nil {
		start = c.now()
		err := s.blob.UpdateMetadata(ctx, documentID, map[string]string{
			"processing_status": *patch.ProcessingStatus,
			"updated_at":        doc.UpdatedAt.UTC().Format(time.RFC3339),
		})
		c.observe("update_document", domain.BackendBlob, start, 1, err)
		if err != nil {
			c.logger.Warn("blob metadata refresh failed", "document_id", documentID, "error", err)
		}
	}

	return doc, nil
}

// CheckDuplicate looks a digest up with the configured finder. It returns nil
// when no stored document has that content.
func (c *Coordinator) CheckDuplicate(ctx context.Context, digest string) (*domain.Object, error) {
	s, err := c.acquire("check_duplicate")
	if err != nil {
		return nil, err
	}

	digest = strings.ToLower(strings.TrimSpace(digest))
	if digest == "" {
		return nil, domain.Invalid(domain.BackendSystem, "check_duplicate", "file_hash required")
	}

	backend := domain.BackendBlob
	if c.cfg.DigestLookup == blob.DigestLookupRelational {
		backend = domain.BackendRelational
	}

	start := c.now()
	obj, err := s.digest.FindByDigest(ctx, digest)
	c.observe("check_duplicate", backend, start, 1, err)
	return obj, err
}

// DeleteDocument removes a document from all three stores. Every store is
// attempted; the result shows which ones still hold data. Only a
// not-initialized coordinator produces an error.
func (c *Coordinator) DeleteDocument(ctx context.Context, documentID string) (*DeleteResult, error) {
	s, err := c.acquire("delete_document")
	if err != nil {
		return nil, err
	}
	return c.deleteDocument(ctx, s, documentID), nil
}

func (c *Coordinator) deleteDocument(ctx context.Context, s *stores, documentID string) *DeleteResult {
	result := &DeleteResult{
		DocumentID: documentID,
		Backends:   make(map[domain.Backend]Outcome, 3),
		Errors:     make(map[domain.Backend]string),
	}

	settle := func(backend domain.Backend, start time.Time, err error) {
		c.observe("delete_document", backend, start, 1, err)
		switch {
		case err == nil:
			result.Backends[backend] = OutcomeOK
		case domain.KindOf(err) == domain.KindNotFound, domain.KindOf(err) == domain.KindValidation:
			result.Backends[backend] = OutcomeNotFound
		default:
			result.Backends[backend] = OutcomeError
			result.Errors[backend] = err.Error()
			c.logger.Error("delete failed", "document_id", documentID, "backend", backend, "error", err)
		}
	}

	start := c.now()
	settle(domain.BackendBlob, start, s.blob.Delete(ctx, documentID))

	start = c.now()
	settle(domain.BackendVector, start, c.deleteChunksOf(ctx, s, documentID))

	start = c.now()
	settle(domain.BackendRelational, start, s.relational.DeleteDocument(ctx, documentID))

	result.Status = aggregate(result.Backends)
	if len(result.Errors) == 0 {
		result.Errors = nil
	}

	c.logger.Info("document delete processed", "document_id", documentID, "status", result.Status)
	return result
}

// deleteChunksOf removes a document's chunks from the default collection,
// reporting not found when it has none.
func (c *Coordinator) deleteChunksOf(ctx context.Context, s *stores, documentID string) error {
	collection := s.vector.DefaultCollection()
	n, err := s.vector.CountByDocument(ctx, collection, documentID)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(domain.BackendVector, "delete_document", documentID)
	}
	return s.vector.DeleteByDocumentIDs(ctx, collection, []string{documentID})
}

// aggregate derives the overall status: failed or partial_failure when any
// backend errored, not_found when nothing held the document, else success.
func aggregate(outcomes map[domain.Backend]Outcome) domain.Status {
	counts := make(map[Outcome]int, 3)
	for v := range maps.Values(outcomes) {
		counts[v]++
	}

	switch {
	case counts[OutcomeError] > 0 && counts[OutcomeOK] > 0:
		return domain.StatusPartialFailure
	case counts[OutcomeError] > 0:
		return domain.StatusFailed
	case counts[OutcomeOK] == 0:
		return domain.StatusNotFound
	default:
		return domain.StatusSuccess
	}
}
