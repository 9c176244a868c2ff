package model

import "time"

// Role is the immutable role an account is registered with.
type Role string

const (
	// RoleClient is an end user ("Mandant") who owns documents.
	RoleClient Role = "Mandant"
	// RoleFirm is an accounting firm ("Kanzlei") that reviews its clients' documents.
	RoleFirm Role = "Kanzlei"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleFirm
}

// Account is the credential record owned by the authentication backend.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile mirrors an account together with its role and firm link.
// FirmID is set only for RoleClient profiles.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	FirmID    *string   `json:"firm_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the resolved, authenticated user as seen by services.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
}

// IsFirm reports whether the identity acts as an accounting firm.
func (i Identity) IsFirm() bool { return i.Role == RoleFirm }
