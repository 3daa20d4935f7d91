package domain

// Role is the privilege level of an acting user.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleTechnician  Role = "technician"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleCoordinator || r == RoleTechnician
}

// Actor identifies the user performing an operation. It is supplied by the
// authentication collaborator and trusted as given.
type Actor struct {
	UserID      string
	DisplayName string
	Role        Role
}

// IsCoordinator reports whether the actor holds the privileged role.
func (a Actor) IsCoordinator() bool {
	return a.Role == RoleCoordinator
}
