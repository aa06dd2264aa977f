package authsession

// Role is the user's role. The set is closed, anything outside of it is
// rejected when a record or identity is validated.
type Role string

const (
	// RoleHotelStaff operates a single property (i.e. cleaning, maintenance, guests)
	RoleHotelStaff Role = "hotel_staff"
	// RoleHotelOwner manages their own properties and staff
	RoleHotelOwner Role = "hotel_owner"
	// RoleMasterAdmin manages every property and owner
	RoleMasterAdmin Role = "master_admin"
)

var roleHierarchy = map[Role]int{
	RoleHotelStaff:  0,
	RoleHotelOwner:  1,
	RoleMasterAdmin: 2,
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// String implements fmt.Stringer
func (r Role) String() string {
	return string(r)
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{
		RoleHotelStaff,
		RoleHotelOwner,
		RoleMasterAdmin,
	}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

func roleValues() []any {
	roles := GetAllRoles()
	out := make([]any, len(roles))
	for i, r := range roles {
		out[i] = r
	}
	return out
}
