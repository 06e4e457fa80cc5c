package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/jmoiron/sqlx"
)

// Clinic is a tenant.
type Clinic struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name" validate:"required,max=200"`
	Slug      string    `db:"slug" json:"slug" validate:"required,max=100"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OwnerClinic grants an owner access to a clinic.
type OwnerClinic struct {
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	ClinicID  string    `db:"clinic_id" json:"clinic_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClinicRepository manages the clinic registry and owner grants. These tables
// define the tenants and are not themselves tenant-scoped.
type ClinicRepository struct {
	db *database.DB
}

func NewClinicRepository(db *database.DB) *ClinicRepository {
	return &ClinicRepository{db: db}
}

const clinicColumns = `id, name, slug, is_active, created_at, updated_at`

// Create inserts a clinic and fills in generated fields.
func (r *ClinicRepository) Create(ctx context.Context, c *Clinic) error {
	conn := r.db.Conn(ctx)
	err := conn.QueryRowxContext(ctx, `
		INSERT INTO clinics (name, slug, is_active)
		VALUES ($1, $2, $3)
		RETURNING `+clinicColumns, c.Name, c.Slug, c.IsActive).StructScan(c)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	return nil
}

// GetByID returns a clinic regardless of its active flag.
func (r *ClinicRepository) GetByID(ctx context.Context, id string) (*Clinic, error) {
	var c Clinic
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &c, `SELECT `+clinicColumns+` FROM clinics WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("clinic")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	return &c, nil
}

// ListByIDs returns the clinics with the given ids ordered by name.
func (r *ClinicRepository) ListByIDs(ctx context.Context, ids []string) ([]Clinic, error) {
	clinics := make([]Clinic, 0, len(ids))
	if len(ids) == 0 {
		return clinics, nil
	}
	query, args, err := sqlx.In(`SELECT `+clinicColumns+` FROM clinics WHERE id IN (?) ORDER BY name, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build clinic query: %w", err)
	}
	conn := r.db.Conn(ctx)
	if err := sqlx.SelectContext(ctx, conn, &clinics, conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	return clinics, nil
}

// ListAll returns every clinic, for operators.
func (r *ClinicRepository) ListAll(ctx context.Context) ([]Clinic, error) {
	clinics := make([]Clinic, 0)
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &clinics, `SELECT `+clinicColumns+` FROM clinics ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	return clinics, nil
}

// GrantOwner gives ownerID access to clinicID. Granting twice is a no-op.
// ownerID must be a user with the owner role; any other user is NotFound.
func (r *ClinicRepository) GrantOwner(ctx context.Context, ownerID, clinicID string) error {
	var isOwner bool
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &isOwner, `
		WITH owner AS (
			SELECT id FROM users WHERE id = $1 AND role = $3
		), granted AS (
			INSERT INTO owner_clinics (owner_id, clinic_id)
			SELECT id, $2 FROM owner
			ON CONFLICT (owner_id, clinic_id) DO NOTHING
		)
		SELECT EXISTS (SELECT 1 FROM owner)`, ownerID, clinicID, string(tenant.RoleOwner))
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to grant clinic to owner: %w", err)
	}
	if !isOwner {
		return errors.NotFound("owner")
	}
	return nil
}

// Grants lists the clinics granted to ownerID, oldest grant first.
func (r *ClinicRepository) Grants(ctx context.Context, ownerID string) ([]OwnerClinic, error) {
	grants := make([]OwnerClinic, 0)
	err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &grants, `
		SELECT owner_id, clinic_id, created_at FROM owner_clinics
		WHERE owner_id = $1 ORDER BY created_at, clinic_id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner grants: %w", err)
	}
	return grants, nil
}
