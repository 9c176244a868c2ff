package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"docportal/internal/model"
	"docportal/internal/repository"
)

// AccountPostgres is a PostgreSQL implementation of repository.AccountRepository.
type AccountPostgres struct {
	db *sql.DB
}

// NewAccountPostgres creates a new AccountPostgres repository.
func NewAccountPostgres(db *sql.DB) *AccountPostgres {
	return &AccountPostgres{db: db}
}

var _ repository.AccountRepository = (*AccountPostgres)(nil)

const accountColumns = `id, email, password_hash, display_name, created_at`

// Create inserts an account. Emails are stored lower-cased.
func (r *AccountPostgres) Create(ctx context.Context, acc *model.Account) (*model.Account, error) {
	const q = `
		INSERT INTO accounts (id, email, password_hash, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountColumns
	out, err := scanAccount(r.db.QueryRowContext(ctx, q,
		acc.ID,
		strings.ToLower(acc.Email),
		acc.PasswordHash,
		acc.DisplayName,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return out, nil
}

// FindByEmail looks up an account by its (case-insensitive) email.
func (r *AccountPostgres) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.findOne(ctx, q, strings.ToLower(email))
}

// FindByID looks up an account by id.
func (r *AccountPostgres) FindByID(ctx context.Context, id string) (*model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.findOne(ctx, q, id)
}

// Delete removes an account. Missing rows are not an error.
func (r *AccountPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *AccountPostgres) findOne(ctx context.Context, q string, args ...any) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func scanAccount(s rowScanner) (*model.Account, error) {
	var a model.Account
	if err := s.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
