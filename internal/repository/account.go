package repository

import (
	"context"

	"docportal/internal/model"
)

// AccountRepository stores credentials for the authentication backend.
type AccountRepository interface {
	// Create inserts an account; ErrDuplicate if the email is taken.
	Create(ctx context.Context, acc *model.Account) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	FindByID(ctx context.Context, id string) (*model.Account, error)
	// Delete removes an account. Used to undo a registration whose profile write failed.
	Delete(ctx context.Context, id string) error
}
