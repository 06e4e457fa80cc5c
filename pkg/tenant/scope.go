// Package tenant carries the trusted clinic scope of a request.
//
// A Scope is produced once per request by the tenancy resolver and then passed
// by value to every tenant-scoped data access. Nothing downstream accepts a
// clinic id from request input directly.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNoScope is returned when no scope was attached to the context
	ErrNoScope = errors.New("no clinic scope in context")
	// ErrEmptyScope is returned for a scope that authorizes no clinic
	ErrEmptyScope = errors.New("clinic scope is empty")
	// ErrClinicOutOfScope is returned when a clinic id is not part of the scope
	ErrClinicOutOfScope = errors.New("clinic is outside the caller's scope")
)

// Scope is the set of clinics the caller may touch plus the clinic new rows are written to.
type Scope struct {
	UserID           string
	Role             Role
	ClinicIDs        []string
	SelectedClinicID string
}

// Single builds a scope bound to exactly one clinic.
func Single(userID string, role Role, clinicID string) Scope {
	return Scope{
		UserID:           userID,
		Role:             role,
		ClinicIDs:        []string{clinicID},
		SelectedClinicID: clinicID,
	}
}

// Validate rejects scopes that would widen or null the tenant filter.
func (s Scope) Validate() error {
	if len(s.ClinicIDs) == 0 {
		return ErrEmptyScope
	}
	for _, id := range s.ClinicIDs {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid clinic id %q in scope: %w", id, err)
		}
	}
	if s.SelectedClinicID != "" && !s.Allows(s.SelectedClinicID) {
		return fmt.Errorf("selected clinic %s: %w", s.SelectedClinicID, ErrClinicOutOfScope)
	}
	if len(s.ClinicIDs) > 1 && !s.Role.IsOwner() {
		return fmt.Errorf("role %q cannot span %d clinics", s.Role, len(s.ClinicIDs))
	}
	return nil
}

// Allows reports whether clinicID is part of the scope.
func (s Scope) Allows(clinicID string) bool {
	for _, id := range s.ClinicIDs {
		if id == clinicID {
			return true
		}
	}
	return false
}

// IsMulti reports whether reads span more than one clinic.
func (s Scope) IsMulti() bool {
	return len(s.ClinicIDs) > 1
}

// WriteClinicID returns the clinic stamped on inserted rows.
func (s Scope) WriteClinicID() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if s.SelectedClinicID != "" {
		return s.SelectedClinicID, nil
	}
	if len(s.ClinicIDs) == 1 {
		return s.ClinicIDs[0], nil
	}
	return "", errors.New("no clinic selected for write")
}

// Narrow restricts the scope to one of its clinics.
func (s Scope) Narrow(clinicID string) (Scope, error) {
	if !s.Allows(clinicID) {
		return Scope{}, fmt.Errorf("clinic %s: %w", clinicID, ErrClinicOutOfScope)
	}
	return Scope{
		UserID:           s.UserID,
		Role:             s.Role,
		ClinicIDs:        []string{clinicID},
		SelectedClinicID: clinicID,
	}, nil
}

// contextKey is a private type for context keys to prevent collisions
type contextKey struct{}

// WithScope attaches a resolved scope to ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// ScopeFromContext returns the scope attached by WithScope.
func ScopeFromContext(ctx context.Context) (Scope, error) {
	s, ok := ctx.Value(contextKey{}).(Scope)
	if !ok {
		return Scope{}, ErrNoScope
	}
	return s, nil
}
