package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
	"github.com/JaimeStill/doc-gateway/pkg/query"
	"github.com/JaimeStill/doc-gateway/pkg/repository"
)

var documentProjection = query.NewProjectionMap("public", "documents", "d").
	Project("document_id", "DocumentID").
	Project("user_id", "UserID").
	Project("session_id", "SessionID").
	Project("filename", "Filename").
	Project("file_type", "FileType").
	Project("file_size", "FileSize").
	Project("content_type", "ContentType").
	Project("file_hash", "FileHash").
	Project("file_url", "FileURL").
	Project("processing_status", "ProcessingStatus").
	Project("chunks_count", "ChunksCount").
	Project("metadata", "Metadata").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var documentSort = query.SortField{Field: "CreatedAt", Descending: true}

func scanDocument(s repository.Scanner) (domain.Document, error) {
	var (
		d         domain.Document
		userID    sql.NullString
		sessionID sql.NullString
		metadata  []byte
	)
	err := s.Scan(
		&d.DocumentID,
		&userID,
		&sessionID,
		&d.Filename,
		&d.FileType,
		&d.FileSize,
		&d.ContentType,
		&d.FileHash,
		&d.FileURL,
		&d.ProcessingStatus,
		&d.ChunksCount,
		&metadata,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return d, err
	}
	d.UserID = userID.String
	d.SessionID = sessionID.String
	d.Metadata, err = decodeMetadata(metadata)
	return d, err
}

// applyDocumentFilter adds the filter's conditions to b. Pointer fields are
// dereferenced so unset filters never reach the builder.
func applyDocumentFilter(b *query.Builder, f domain.DocumentFilter) *query.Builder {
	equals := func(field string, v *string) {
		if v != nil && *v != "" {
			b.WhereEquals(field, *v)
		}
	}
	equals("DocumentID", f.DocumentID)
	equals("UserID", f.UserID)
	equals("SessionID", f.SessionID)
	equals("ProcessingStatus", f.Status)
	equals("FileType", f.FileType)
	b.WhereContains("Filename", f.Filename)
	b.WhereAfter("CreatedAt", f.UploadedAfter)
	b.WhereBefore("CreatedAt", f.UploadedBefore)
	if len(f.Metadata) > 0 {
		if doc, err := encodeMetadata(f.Metadata); err == nil {
			b.WhereJSONContains("Metadata", doc)
		}
	}
	return b
}

func validateDocumentFilter(f domain.DocumentFilter) error {
	for field, v := range map[string]*string{"document_id": f.DocumentID, "user_id": f.UserID, "session_id": f.SessionID} {
		if v != nil && *v != "" {
			if err := validUUID("query_documents", field, *v); err != nil {
				return err
			}
		}
	}
	if !f.UploadedAfter.IsZero() && !f.UploadedBefore.IsZero() && !f.UploadedAfter.Before(f.UploadedBefore) {
		return domain.Invalid(domain.BackendRelational, "query_documents", "uploaded_after must precede uploaded_before")
	}
	return nil
}

func validateDocument(d domain.Document) error {
	const op = "insert_document"
	if err := validUUID(op, "document_id", d.DocumentID); err != nil {
		return err
	}
	if err := validOptionalUUID(op, "user_id", d.UserID); err != nil {
		return err
	}
	if err := validOptionalUUID(op, "session_id", d.SessionID); err != nil {
		return err
	}
	if strings.TrimSpace(d.Filename) == "" {
		return domain.Invalid(domain.BackendRelational, op, "filename required").With("document_id", d.DocumentID)
	}
	if d.FileSize < 0 {
		return domain.Invalid(domain.BackendRelational, op, "file_size must be non-negative").With("document_id", d.DocumentID)
	}
	if d.ChunksCount < 0 {
		return domain.Invalid(domain.BackendRelational, op, "chunks_count must be non-negative").With("document_id", d.DocumentID)
	}
	return nil
}

// InsertDocuments validates every row and inserts them in one transaction.
// Any failure rolls back the whole batch.
func (p *Postgres) InsertDocuments(ctx context.Context, docs []domain.Document) ([]domain.Document, error) {
	args := make([][]any, 0, len(docs))
	for _, d := range docs {
		if err := validateDocument(d); err != nil {
			return nil, err
		}
		meta, err := encodeMetadata(d.Metadata)
		if err != nil {
			return nil, domain.NewError(domain.KindValidation, domain.BackendRelational, "insert_document", err)
		}
		status := d.ProcessingStatus
		if status == "" {
			status = domain.DocumentUploaded
		}
		args = append(args, []any{
			d.DocumentID, nullable(d.UserID), nullable(d.SessionID), d.Filename, d.FileType,
			d.FileSize, d.ContentType, d.FileHash, d.FileURL, status, d.ChunksCount, meta,
		})
	}

	q := fmt.Sprintf(`INSERT INTO public.documents AS d
		(document_id, user_id, session_id, filename, file_type, file_size, content_type,
		 file_hash, file_url, processing_status, chunks_count, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
		RETURNING %s`, documentProjection.Columns())

	inserted, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) ([]domain.Document, error) {
		out := make([]domain.Document, 0, len(args))
		for _, a := range args {
			d, err := repository.QueryOne(ctx, tx, q, a, scanDocument)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	})
	if err != nil {
		id := ""
		if len(docs) == 1 {
			id = docs[0].DocumentID
		}
		return nil, classify("insert_document", id, err)
	}

	p.logger.Info("documents inserted", "count", len(inserted))
	return inserted, nil
}

// GetDocument returns one row.
func (p *Postgres) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	if err := validUUID("get_document", "document_id", documentID); err != nil {
		return nil, err
	}

	q, args := query.NewBuilder(documentProjection, documentSort).BuildSingle("DocumentID", documentID)
	d, err := repository.QueryOne(ctx, p.db, q, args, scanDocument)
	if err != nil {
		return nil, classify("get_document", documentID, err)
	}
	return &d, nil
}

// buildDocumentUpdate renders the UPDATE for a patch. Metadata is merged with
// the JSONB concatenation operator; updated_at is always refreshed.
func buildDocumentUpdate(documentID string, patch domain.DocumentPatch) (string, []any, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 4)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.ProcessingStatus != nil {
		sets = append(sets, "processing_status = "+next(*patch.ProcessingStatus))
	}
	if patch.ChunksCount != nil {
		if *patch.ChunksCount < 0 {
			return "", nil, domain.Invalid(domain.BackendRelational, "update_document", "chunks_count must be non-negative")
		}
		sets = append(sets, "chunks_count = "+next(*patch.ChunksCount))
	}
	if len(patch.Metadata) > 0 {
		meta, err := encodeMetadata(patch.Metadata)
		if err != nil {
			return "", nil, domain.NewError(domain.KindValidation, domain.BackendRelational, "update_document", err)
		}
		sets = append(sets, "metadata = d.metadata || "+next(meta)+"::jsonb")
	}
	sets = append(sets, "updated_at = NOW()")

	q := fmt.Sprintf("UPDATE %s SET %s WHERE d.document_id = %s RETURNING %s",
		documentProjection.Table(),
		strings.Join(sets, ", "),
		next(documentID),
		documentProjection.Columns(),
	)
	return q, args, nil
}

// UpdateDocument applies a patch and returns the updated row.
func (p *Postgres) UpdateDocument(ctx context.Context, documentID string, patch domain.DocumentPatch) (*domain.Document, error) {
	if err := validUUID("update_document", "document_id", documentID); err != nil {
		return nil, err
	}

	q, args, err := buildDocumentUpdate(documentID, patch)
	if err != nil {
		return nil, err
	}

	d, err := repository.QueryOne(ctx, p.db, q, args, scanDocument)
	if err != nil {
		return nil, classify("update_document", documentID, err)
	}

	p.logger.Info("document updated", "document_id", documentID)
	return &d, nil
}

// DeleteDocument removes one row. A missing row is reported as not found.
func (p *Postgres) DeleteDocument(ctx context.Context, documentID string) error {
	if err := validUUID("delete_document", "document_id", documentID); err != nil {
		return err
	}

	err := repository.ExecExpectOne(ctx, p.db, "DELETE FROM documents WHERE document_id = $1", documentID)
	if err != nil {
		return classify("delete_document", documentID, err)
	}

	p.logger.Info("document deleted", "document_id", documentID)
	return nil
}

// QueryDocuments returns one page of rows and the total matching the same predicate.
func (p *Postgres) QueryDocuments(ctx context.Context, filter domain.DocumentFilter, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error) {
	if err := validateDocumentFilter(filter); err != nil {
		return nil, err
	}
	page.Normalize(p.pagination)

	qb := query.NewBuilder(documentProjection, documentSort).WhereSearch(page.Search, "Filename")
	applyDocumentFilter(qb, filter)
	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	return queryPage(ctx, p.db, qb, page, scanDocument, "query_documents")
}

// QuerySessionDocuments returns one page of a session's documents.
func (p *Postgres) QuerySessionDocuments(ctx context.Context, sessionID string, page pagination.PageRequest) (*pagination.PageResult[domain.Document], error) {
	if err := validUUID("query_session_documents", "session_id", sessionID); err != nil {
		return nil, err
	}
	return p.QueryDocuments(ctx, domain.DocumentFilter{SessionID: &sessionID}, page)
}

// FindByDigest returns the oldest document with the given file hash, or nil.
func (p *Postgres) FindByDigest(ctx context.Context, digest string) (*domain.Object, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE d.file_hash = $1 ORDER BY d.created_at ASC LIMIT 1",
		documentProjection.Columns(), documentProjection.Table())

	d, err := repository.QueryOne(ctx, p.db, q, []any{digest}, scanDocument)
	if err != nil {
		if domain.KindOf(classify("find_by_digest", digest, err)) == domain.KindNotFound {
			return nil, nil
		}
		return nil, classify("find_by_digest", digest, err)
	}

	return &domain.Object{
		DocumentID:  d.DocumentID,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Size:        d.FileSize,
		FileHash:    d.FileHash,
		FileURL:     d.FileURL,
		UploadedAt:  d.CreatedAt,
		ModifiedAt:  d.UpdatedAt,
	}, nil
}

func queryPage[T any](ctx context.Context, db *sql.DB, qb *query.Builder, page pagination.PageRequest, scan repository.ScanFunc[T], op string) (*pagination.PageResult[T], error) {
	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, classify(op, "", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, db, pageSQL, pageArgs, scan)
	if err != nil {
		return nil, classify(op, "", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}
