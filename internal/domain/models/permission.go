package models

import (
	"fmt"
	"strings"
)

// Role is the access level a user holds on a project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Permission is a capability granted by a role.
type Permission string

const (
	PermissionView   Permission = "view"
	PermissionEdit   Permission = "edit"
	PermissionManage Permission = "manage"
)

var rolePermissions = map[Role]map[Permission]bool{
	RoleOwner:  {PermissionView: true, PermissionEdit: true, PermissionManage: true},
	RoleEditor: {PermissionView: true, PermissionEdit: true},
	RoleViewer: {PermissionView: true},
}

// ParseRole converts a case-insensitive role name. An empty string is the owner
// role, which is what a single-author project implies.
func ParseRole(value string) (Role, error) {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return RoleOwner, nil
	}
	if _, ok := rolePermissions[normalized]; !ok {
		return "", fmt.Errorf("unsupported role: %s", value)
	}
	return normalized, nil
}

// Can reports whether the role grants the permission. The zero Role is treated
// as the owner; unknown roles grant nothing.
func (r Role) Can(p Permission) bool {
	if r == "" {
		r = RoleOwner
	}
	return rolePermissions[r][p]
}
