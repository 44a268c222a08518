package storage

import (
	"context"
	"errors"
	"fmt"

	"lectio/internal/models"

	"github.com/jackc/pgx/v5"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) UpsertDocument(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (doc_id, course, filename, status, fail_reason)
VALUES ($1, $2, $3, $4, NULLIF($5,''))
ON CONFLICT (doc_id)
DO UPDATE SET
  course = EXCLUDED.course,
  filename = EXCLUDED.filename,
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		d.DocID, d.Course, d.Filename, d.Status, d.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// DocumentStatus returns the catalog status for a document hash, or "" when
// the document was never seen.
func (r *DocumentRepo) DocumentStatus(ctx context.Context, docID string) (string, error) {
	var status string
	err := r.db.Pool.QueryRow(ctx, `SELECT status FROM documents WHERE doc_id=$1`, docID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("document status: %w", err)
	}
	return status, nil
}

func (r *DocumentRepo) ListDocumentsByCourse(ctx context.Context, course string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT doc_id, course, filename, status, COALESCE(fail_reason,''), created_at, updated_at
FROM documents
WHERE course=$1
ORDER BY created_at DESC`, course)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.DocID, &d.Course, &d.Filename, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
