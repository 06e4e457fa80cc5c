package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// User is a staff member, owner or patient login. ClinicID is the home clinic.
type User struct {
	ID           string    `db:"id" json:"id"`
	ClinicID     string    `db:"clinic_id" json:"clinic_id"`
	Email        string    `db:"email" json:"email" validate:"required,email,max=255"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name" validate:"required,max=100"`
	LastName     string    `db:"last_name" json:"last_name" validate:"required,max=100"`
	Role         string    `db:"role" json:"role" validate:"required,role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) SetClinicID(clinicID string) { u.ClinicID = clinicID }

// SetPassword stores a bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// UsersTable is tenant-owned: staff lists and dentist lookups stay inside the scope.
var UsersTable = guard.Table{
	Name: "users",
	Columns: []string{
		"id", "clinic_id", "email", "password_hash", "first_name", "last_name",
		"role", "is_active", "created_at", "updated_at",
	},
	Insertable: []string{"email", "password_hash", "first_name", "last_name", "role", "is_active"},
	Mutable:    []string{"first_name", "last_name", "role", "is_active"},
	Touch:      "updated_at",
	OrderBy:    "last_name",
}

// UserDirectory answers operator lookups that start from an email address,
// before any clinic is known. It is not reachable from request handlers.
type UserDirectory struct {
	db *database.DB
}

func NewUserDirectory(db *database.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// GetByEmail returns the active user with email.
func (d *UserDirectory) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := d.db.GetContext(ctx, &u, `
		SELECT id, clinic_id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at
		FROM users WHERE email = $1 AND is_active`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}
