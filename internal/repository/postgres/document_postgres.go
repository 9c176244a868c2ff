package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docportal/internal/model"
	"docportal/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, owner_id, filename, storage_ref, content_type, size, uploaded_at`

// Create inserts a new document row and returns the stored record including the server timestamp.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, owner_id, filename, storage_ref, content_type, size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OwnerID,
		doc.Filename,
		doc.StorageRef,
		doc.ContentType,
		doc.Size,
	)
	out, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return out, nil
}

// FindByID fetches a single document from the owner's namespace.
func (r *DocumentPostgres) FindByID(ctx context.Context, ownerID, id string) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE owner_id = $1 AND id = $2
	`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListByOwner returns the owner's documents ordered by upload timestamp.
func (r *DocumentPostgres) ListByOwner(ctx context.Context, ownerID string, order repository.Order) ([]model.Document, error) {
	const qNewest = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE owner_id = $1
		ORDER BY uploaded_at DESC, id DESC
	`
	const qOldest = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE owner_id = $1
		ORDER BY uploaded_at ASC, id ASC
	`
	q := qNewest
	if order == repository.OrderOldestFirst {
		q = qOldest
	}

	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a document. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, ownerID, id string) error {
	const q = `DELETE FROM documents WHERE owner_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, q, ownerID, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// StorageRefExists reports whether a document references ref.
func (r *DocumentPostgres) StorageRefExists(ctx context.Context, ref string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM documents WHERE storage_ref = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, ref).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*model.Document, error) {
	var d model.Document
	if err := s.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Filename,
		&d.StorageRef,
		&d.ContentType,
		&d.Size,
		&d.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
