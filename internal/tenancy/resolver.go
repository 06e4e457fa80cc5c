// Package tenancy turns an authenticated identity into the clinic scope every
// tenant-scoped query runs under.
//
// Resolution fails closed: an identity that cannot be tied to at least one
// active clinic gets an error, never an empty or unrestricted scope.
package tenancy

import (
	"context"
	"fmt"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/metrics"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/google/uuid"
)

// Identity is what authentication established about the caller.
type Identity struct {
	UserID   string
	Email    string
	Role     tenant.Role
	ClinicID string
}

// ClinicDirectory answers the clinic questions the resolver asks.
type ClinicDirectory interface {
	// OwnedClinics returns the active clinics granted to ownerID, oldest grant first.
	OwnedClinics(ctx context.Context, ownerID string) ([]string, error)
	// ClinicActive reports whether the clinic exists and is active.
	ClinicActive(ctx context.Context, clinicID string) (bool, error)
}

const (
	outcomeResolved = "resolved"
	outcomeDenied   = "denied"
	outcomeError    = "error"
)

// Resolver derives tenant scopes.
type Resolver struct {
	dir     ClinicDirectory
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewResolver creates a resolver. m may be nil.
func NewResolver(dir ClinicDirectory, m *metrics.Metrics, log *logger.Logger) *Resolver {
	return &Resolver{
		dir:     dir,
		metrics: m,
		logger:  log.WithComponent("tenancy-resolver"),
	}
}

// Resolve returns the scope for id. requested is the clinic the caller asked
// to work in for this request and may be empty.
func (r *Resolver) Resolve(ctx context.Context, id Identity, requested string) (tenant.Scope, error) {
	scope, err := r.resolve(ctx, id, requested)

	role := string(id.Role)
	if !id.Role.Valid() {
		role = "unknown"
	}
	switch {
	case err == nil:
		r.metrics.ScopeResolution(role, outcomeResolved)
	case errors.Is(err, errors.ErrForbidden), errors.Is(err, errors.ErrUnauthorized):
		r.metrics.ScopeResolution(role, outcomeDenied)
		r.logger.Warn().
			Str("user_id", id.UserID).
			Str("role", role).
			Str("requested_clinic", requested).
			Err(err).
			Msg("clinic scope denied")
	default:
		r.metrics.ScopeResolution(role, outcomeError)
	}
	return scope, err
}

func (r *Resolver) resolve(ctx context.Context, id Identity, requested string) (tenant.Scope, error) {
	if id.UserID == "" {
		return tenant.Scope{}, errors.Unauthorized("no authenticated user")
	}
	if requested != "" {
		if _, err := uuid.Parse(requested); err != nil {
			return tenant.Scope{}, errors.Forbidden("requested clinic is not a valid id")
		}
	}

	switch {
	case id.Role.IsOwner():
		return r.resolveOwner(ctx, id, requested)
	case id.Role.RequiresClinic():
		return r.resolveMember(ctx, id, requested)
	default:
		return tenant.Scope{}, errors.Forbidden(fmt.Sprintf("role %q has no clinic access", id.Role))
	}
}

// resolveOwner spans every active clinic the owner holds. The home clinic, when
// active, comes first and is the default write target.
func (r *Resolver) resolveOwner(ctx context.Context, id Identity, requested string) (tenant.Scope, error) {
	owned, err := r.dir.OwnedClinics(ctx, id.UserID)
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("failed to list clinics of owner %s: %w", id.UserID, err)
	}

	var clinics []string
	home := ""
	if id.ClinicID != "" {
		if _, err := uuid.Parse(id.ClinicID); err == nil {
			active, err := r.dir.ClinicActive(ctx, id.ClinicID)
			if err != nil {
				return tenant.Scope{}, fmt.Errorf("failed to look up clinic %s: %w", id.ClinicID, err)
			}
			if active {
				home = id.ClinicID
				clinics = append(clinics, home)
			}
		}
	}
	for _, c := range owned {
		if c != home {
			clinics = append(clinics, c)
		}
	}
	if len(clinics) == 0 {
		return tenant.Scope{}, errors.Forbidden("owner has no active clinic")
	}

	scope := tenant.Scope{
		UserID:           id.UserID,
		Role:             id.Role,
		ClinicIDs:        clinics,
		SelectedClinicID: clinics[0],
	}
	if requested == "" {
		return scope, nil
	}
	narrowed, err := scope.Narrow(requested)
	if err != nil {
		return tenant.Scope{}, errors.Forbidden("requested clinic is not one of the owner's clinics")
	}
	return narrowed, nil
}

func (r *Resolver) resolveMember(ctx context.Context, id Identity, requested string) (tenant.Scope, error) {
	if _, err := uuid.Parse(id.ClinicID); err != nil {
		return tenant.Scope{}, errors.Forbidden("user is not assigned to a clinic")
	}
	if requested != "" && requested != id.ClinicID {
		return tenant.Scope{}, errors.Forbidden("requested clinic is outside the user's clinic")
	}
	active, err := r.dir.ClinicActive(ctx, id.ClinicID)
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("failed to look up clinic %s: %w", id.ClinicID, err)
	}
	if !active {
		return tenant.Scope{}, errors.Forbidden("clinic is not active")
	}
	return tenant.Single(id.UserID, id.Role, id.ClinicID), nil
}
