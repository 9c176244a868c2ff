package repository

import (
	"context"

	"docportal/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// Every operation is scoped to the owner's namespace.
type DocumentRepository interface {
	// Create inserts a new document record. UploadedAt is assigned by the database clock
	// and returned in the stored record.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document in the owner's namespace or ErrNotFound.
	FindByID(ctx context.Context, ownerID, id string) (*model.Document, error)

	// ListByOwner returns every document of the owner ordered by upload timestamp.
	// Rows with equal timestamps keep a stable order (by id).
	ListByOwner(ctx context.Context, ownerID string, order Order) ([]model.Document, error)

	// Delete removes a document. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, ownerID, id string) error

	// StorageRefExists reports whether any document references the given storage key.
	StorageRefExists(ctx context.Context, ref string) (bool, error)
}
