package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// ClinicFixture represents test clinic data
type ClinicFixture struct {
	ID       string
	Name     string
	Slug     string
	IsActive bool
}

// UserFixture represents test user data. ClinicID is the home clinic.
type UserFixture struct {
	ID           string
	ClinicID     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	IsActive     bool
}

// PatientFixture represents test patient data
type PatientFixture struct {
	ID        string
	ClinicID  string
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Clinic creates a clinic fixture with defaults
func (f *FixtureFactory) Clinic(opts ...func(*ClinicFixture)) ClinicFixture {
	seq := f.nextSeq()
	c := ClinicFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Clinic %d", seq),
		Slug:     fmt.Sprintf("clinic-%d-%s", seq, uuid.NewString()[:6]),
		IsActive: true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Inactive marks a clinic as deactivated
func Inactive() func(*ClinicFixture) {
	return func(c *ClinicFixture) {
		c.IsActive = false
	}
}

// User creates a user fixture with defaults
func (f *FixtureFactory) User(clinicID string, opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)

	user := UserFixture{
		ID:           uuid.New().String(),
		ClinicID:     clinicID,
		Email:        fmt.Sprintf("user%d-%s@test.dentiagest.es", seq, uuid.NewString()[:6]),
		PasswordHash: string(hash),
		FirstName:    fmt.Sprintf("Test%d", seq),
		LastName:     "User",
		Role:         "dentist",
		IsActive:     true,
	}

	for _, opt := range opts {
		opt(&user)
	}

	return user
}

// WithEmail sets the user email
func WithEmail(email string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Email = email
	}
}

// WithRole sets the user role
func WithRole(role string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Role = role
	}
}

// WithPassword sets the user password (hashed)
func WithPassword(password string) func(*UserFixture) {
	return func(u *UserFixture) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		u.PasswordHash = string(hash)
	}
}

// Patient creates a patient fixture with defaults
func (f *FixtureFactory) Patient(clinicID string) PatientFixture {
	seq := f.nextSeq()
	return PatientFixture{
		ID:        uuid.New().String(),
		ClinicID:  clinicID,
		FirstName: fmt.Sprintf("Patient%d", seq),
		LastName:  "Test",
		Email:     fmt.Sprintf("patient%d@test.dentiagest.es", seq),
		CreatedAt: time.Now(),
	}
}

// InsertClinic stores c in db
func InsertClinic(t *testing.T, ctx context.Context, db sqlx.ExecerContext, c ClinicFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx,
		`INSERT INTO clinics (id, name, slug, is_active) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Slug, c.IsActive)
	if err != nil {
		t.Fatalf("failed to insert clinic: %v", err)
	}
}

// InsertUser stores u in a schema that has users.clinic_id
func InsertUser(t *testing.T, ctx context.Context, db sqlx.ExecerContext, u UserFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, clinic_id, email, password_hash, first_name, last_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.ClinicID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.IsActive)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
}

// InsertOwnerClinic links an owner to an additional clinic
func InsertOwnerClinic(t *testing.T, ctx context.Context, db sqlx.ExecerContext, ownerID, clinicID string) {
	t.Helper()
	_, err := db.ExecContext(ctx,
		`INSERT INTO owner_clinics (owner_id, clinic_id) VALUES ($1, $2)`, ownerID, clinicID)
	if err != nil {
		t.Fatalf("failed to insert owner clinic: %v", err)
	}
}

// InsertPatient stores p in a schema that has patients.clinic_id
func InsertPatient(t *testing.T, ctx context.Context, db sqlx.ExecerContext, p PatientFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx,
		`INSERT INTO patients (id, clinic_id, first_name, last_name, email) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.Email)
	if err != nil {
		t.Fatalf("failed to insert patient: %v", err)
	}
}
