// Package access holds the single role policy used by every route guard.
package access

import (
	"strings"

	"github.com/sitebook/gateway/internal/enum"
)

var rank = map[string]int{
	enum.RoleSuperAdmin: 5,
	enum.RoleAdmin:      4,
	enum.RoleManager:    3,
	enum.RoleSupervisor: 2,
	enum.RoleStaff:      1,
}

// Rank returns the position of role in the hierarchy; 0 for unknown roles.
func Rank(role string) int {
	return rank[normalize(role)]
}

// Known reports whether role is part of the hierarchy.
func Known(role string) bool {
	return Rank(role) > 0
}

// Allow reports whether subject may act where any of required is accepted.
// Higher roles inherit the permissions of lower ones, so the subject needs a
// rank at least that of the lowest required role. Unknown subjects are
// denied; an empty required set admits every known role.
func Allow(subject string, required ...string) bool {
	have := Rank(subject)
	if have == 0 {
		return false
	}
	if len(required) == 0 {
		return true
	}

	lowest := 0
	for _, r := range required {
		n := Rank(r)
		if n == 0 {
			continue
		}
		if lowest == 0 || n < lowest {
			lowest = n
		}
	}
	if lowest == 0 {
		return false
	}
	return have >= lowest
}

// normalize maps the spellings the upstream has used over time
// ("Super Admin", "SUPER_ADMIN", "super-admin") onto the enum values.
func normalize(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	role = strings.NewReplacer(" ", "_", "-", "_").Replace(role)
	return role
}
