package tenant

// Role is the authenticated user's role inside the clinic network.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleAdmin        Role = "admin"
	RoleDentist      Role = "dentist"
	RoleHygienist    Role = "hygienist"
	RoleReceptionist Role = "receptionist"
	RoleAssistant    Role = "assistant"
	RolePatient      Role = "patient"
)

// Roles lists every known role.
var Roles = []Role{RoleOwner, RoleAdmin, RoleDentist, RoleHygienist, RoleReceptionist, RoleAssistant, RolePatient}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// IsOwner reports whether r may span several clinics through owner_clinics.
func (r Role) IsOwner() bool {
	return r == RoleOwner
}

// IsStaff reports whether r is a clinic employee role.
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleDentist, RoleHygienist, RoleReceptionist, RoleAssistant:
		return true
	}
	return false
}

// ParseRole converts a raw claim value into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// RequiresClinic reports whether r is bound to exactly one clinic.
func (r Role) RequiresClinic() bool {
	return r.Valid() && !r.IsOwner()
}
