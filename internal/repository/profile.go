package repository

import (
	"context"

	"docportal/internal/model"
)

// ProfileRepository defines data access for profile records.
// Profiles are written once at registration and never updated.
type ProfileRepository interface {
	// Create inserts the profile; CreatedAt is assigned by the database clock.
	Create(ctx context.Context, p *model.Profile) (*model.Profile, error)

	// FindByID returns the profile with the given id or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// FindFirmByEmail returns the first firm profile whose email equals email, or ErrNotFound.
	FindFirmByEmail(ctx context.Context, email string) (*model.Profile, error)

	// FindFirmByID returns the firm profile with the given id, or ErrNotFound.
	FindFirmByID(ctx context.Context, id string) (*model.Profile, error)

	// ListClients returns the client profiles linked to firmID, oldest first.
	ListClients(ctx context.Context, firmID string) ([]model.Profile, error)
}
