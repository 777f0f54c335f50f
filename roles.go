package identity

// Role is the campus role carried by a principal.
type Role = string

const (
	// RoleStudent can file and follow their own issue reports.
	RoleStudent Role = "student"
	// RoleFaculty can file reports and review reports for their department.
	RoleFaculty Role = "faculty"
	// RoleAuthority resolves reports for the categories assigned to them.
	RoleAuthority Role = "authority"
)

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAuthority:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}

// AllRoles returns the predefined roles in hierarchical order
func AllRoles() []Role {
	return []Role{RoleStudent, RoleFaculty, RoleAuthority}
}

// IsAtLeast checks if the role meets the minimum required level
func IsAtLeast(r, minRole Role) bool {
	hierarchy := map[Role]int{
		RoleStudent:   0,
		RoleFaculty:   1,
		RoleAuthority: 2,
	}

	currentLevel, ok := hierarchy[r]
	if !ok {
		return false
	}

	minLevel, ok := hierarchy[minRole]
	if !ok {
		return false
	}

	return currentLevel >= minLevel
}

// Allowed is the authorization gate guarding protected routes: it is true iff
// the principal exists and either no roles are required or the principal's
// role is among them. On false the caller must redirect, never render the
// protected content.
func Allowed(principal *User, requiredRoles ...Role) bool {
	if principal == nil {
		return false
	}

	if len(requiredRoles) == 0 {
		return true
	}

	for _, role := range requiredRoles {
		if principal.Role == role {
			return true
		}
	}

	return false
}
