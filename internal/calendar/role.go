package calendar

import "strings"

// Role is the closed set of viewer roles. Free-form role strings from the
// backend are mapped once by ParseRole; nothing downstream compares strings.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleEngineer
	RoleCompany
)

// ParseRole normalizes a role string case-insensitively. Unrecognized values
// yield RoleUnknown.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "engineer":
		return RoleEngineer
	case "company":
		return RoleCompany
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleEngineer:
		return "engineer"
	case RoleCompany:
		return "company"
	default:
		return "unknown"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}

// Viewer is the identity the calendar is rendered for.
type Viewer struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}
