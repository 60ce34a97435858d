// Package access decides whether an authenticated caller may read a stored
// document. It performs no I/O.
package access

// Role is the category of an authenticated principal.
type Role string

const (
	// RoleProfessor may read every stored document.
	RoleProfessor Role = "professor"
	// RoleStudent may read only documents it uploaded itself.
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleProfessor || r == RoleStudent
}

// Principal is the caller identity supplied by the authentication layer.
type Principal struct {
	ID   string
	Role Role
}

// CanRead reports whether requester may read a file owned by fileOwnerID.
// It is defined for every input: unknown or empty roles are denied.
func CanRead(requester Principal, fileOwnerID string) bool {
	switch requester.Role {
	case RoleProfessor:
		return true
	case RoleStudent:
		return requester.ID == fileOwnerID
	default:
		return false
	}
}
