package identity

import (
	"fmt"
	"strings"
)

// Role is an ordered privilege level. Higher values include the privileges of
// lower ones.
type Role int

const (
	RoleStudent Role = iota + 1
	RoleTeacher
	RoleAdmin
)

// ParseRole accepts the canonical names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return RoleStudent, nil
	case "teacher":
		return RoleTeacher, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleTeacher:
		return "Teacher"
	case RoleAdmin:
		return "Admin"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool { return r >= RoleStudent && r <= RoleAdmin }

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool { return r.Valid() && r >= min }
