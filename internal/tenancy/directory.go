package tenancy

import (
	"context"
	"fmt"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
)

// Directory reads clinics and owner grants from the registry tables. Neither
// table is tenant-scoped, so it queries them directly.
type Directory struct {
	db *database.DB
}

func NewDirectory(db *database.DB) *Directory {
	return &Directory{db: db}
}

const ownedClinicsQuery = `
	SELECT oc.clinic_id
	FROM owner_clinics oc
	JOIN clinics c ON c.id = oc.clinic_id
	WHERE oc.owner_id = $1 AND c.is_active
	ORDER BY oc.created_at, oc.clinic_id`

func (d *Directory) OwnedClinics(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	if err := d.db.SelectContext(ctx, &ids, ownedClinicsQuery, ownerID); err != nil {
		return nil, fmt.Errorf("failed to query owner_clinics: %w", err)
	}
	return ids, nil
}

const clinicActiveQuery = `SELECT EXISTS (SELECT 1 FROM clinics WHERE id = $1 AND is_active)`

func (d *Directory) ClinicActive(ctx context.Context, clinicID string) (bool, error) {
	var ok bool
	if err := d.db.GetContext(ctx, &ok, clinicActiveQuery, clinicID); err != nil {
		return false, fmt.Errorf("failed to query clinics: %w", err)
	}
	return ok, nil
}
