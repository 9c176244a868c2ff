package postgres

import (
	"context"
	"database/sql"
	"errors"

	"docportal/internal/model"
	"docportal/internal/repository"
)

// ProfilePostgres is a PostgreSQL implementation of repository.ProfileRepository.
type ProfilePostgres struct {
	db *sql.DB
}

// NewProfilePostgres creates a new ProfilePostgres repository.
func NewProfilePostgres(db *sql.DB) *ProfilePostgres {
	return &ProfilePostgres{db: db}
}

var _ repository.ProfileRepository = (*ProfilePostgres)(nil)

const profileColumns = `id, email, role, firm_id, created_at`

// Create inserts a profile row; created_at comes from the database clock.
func (r *ProfilePostgres) Create(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	const q = `
		INSERT INTO profiles (id, email, role, firm_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + profileColumns
	var firmID sql.NullString
	if p.FirmID != nil {
		firmID = sql.NullString{String: *p.FirmID, Valid: true}
	}
	out, err := scanProfile(r.db.QueryRowContext(ctx, q, p.ID, p.Email, string(p.Role), firmID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return out, nil
}

// FindByID fetches a profile by id.
func (r *ProfilePostgres) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return r.findOne(ctx, q, id)
}

// FindFirmByEmail fetches the first firm profile with the given email.
func (r *ProfilePostgres) FindFirmByEmail(ctx context.Context, email string) (*model.Profile, error) {
	const q = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE role = $1 AND email = $2
		ORDER BY created_at ASC
		LIMIT 1
	`
	return r.findOne(ctx, q, string(model.RoleFirm), email)
}

// FindFirmByID fetches a firm profile by id.
func (r *ProfilePostgres) FindFirmByID(ctx context.Context, id string) (*model.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE role = $1 AND id::text = $2`
	return r.findOne(ctx, q, string(model.RoleFirm), id)
}

// ListClients returns the client profiles linked to firmID.
func (r *ProfilePostgres) ListClients(ctx context.Context, firmID string) ([]model.Profile, error) {
	const q = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE role = $1 AND firm_id = $2
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, string(model.RoleClient), firmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ProfilePostgres) findOne(ctx context.Context, q string, args ...any) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanProfile(s rowScanner) (*model.Profile, error) {
	var (
		p      model.Profile
		role   string
		firmID sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Email, &role, &firmID, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	if firmID.Valid {
		id := firmID.String
		p.FirmID = &id
	}
	return &p, nil
}
