package accounts

import "slices"

// PermissionKey names a capability a record can be granted.
type PermissionKey string

const (
	PermissionManageEvents     PermissionKey = "manageEvents"
	PermissionCreateEvents     PermissionKey = "createEvents"
	PermissionViewAdminTrail   PermissionKey = "viewAdminTrail"
	PermissionManageRelocation PermissionKey = "manageRelocation"
	PermissionManageAccounts   PermissionKey = "manageAccounts"
)

// PermissionKeys lists every known key in display order.
var PermissionKeys = []PermissionKey{
	PermissionManageEvents,
	PermissionCreateEvents,
	PermissionViewAdminTrail,
	PermissionManageRelocation,
	PermissionManageAccounts,
}

// IsKnownPermission reports whether key is one of PermissionKeys.
func IsKnownPermission(key string) bool {
	return slices.Contains(PermissionKeys, PermissionKey(key))
}

// Permissions is a stored or resolved permission document. Known keys map to
// booleans once resolved; unknown keys are carried through untouched.
type Permissions map[string]any

// Allows reports whether key is granted.
func (p Permissions) Allows(key PermissionKey) bool {
	if p == nil {
		return false
	}
	return truthy(p[string(key)])
}

// Clone returns a deep copy.
func (p Permissions) Clone() Permissions {
	if p == nil {
		return nil
	}
	return Permissions(CloneDocument(Document(p)))
}

// Granted lists the known keys that are allowed.
func (p Permissions) Granted() []PermissionKey {
	out := make([]PermissionKey, 0, len(PermissionKeys))
	for _, key := range PermissionKeys {
		if p.Allows(key) {
			out = append(out, key)
		}
	}
	return out
}

// ResolvePermissions derives the effective capability set of a record.
// Known keys default to false and are coerced to booleans, unknown keys pass
// through verbatim, admins get every known key and non admins never get
// manageAccounts. The function is idempotent.
func ResolvePermissions(raw map[string]any, isAdmin bool) Permissions {
	resolved := make(Permissions, len(PermissionKeys)+len(raw))
	for _, key := range PermissionKeys {
		resolved[string(key)] = false
	}

	for key, value := range raw {
		if IsKnownPermission(key) {
			resolved[key] = truthy(value)
			continue
		}
		resolved[key] = cloneValue(value)
	}

	if isAdmin {
		for _, key := range PermissionKeys {
			resolved[string(key)] = true
		}
		return resolved
	}

	resolved[string(PermissionManageAccounts)] = false
	return resolved
}

// PermissionsForRole returns the default permission document for a role.
func PermissionsForRole(role Role) Permissions {
	return ResolvePermissions(nil, role.IsAdmin())
}

// SanitizePermissions builds the document written by permission edits: known
// keys only, coerced to booleans, with manageAccounts following the role.
func SanitizePermissions(input map[string]any, role Role) Permissions {
	out := make(Permissions, len(PermissionKeys))
	for _, key := range PermissionKeys {
		out[string(key)] = truthy(input[string(key)])
	}
	out[string(PermissionManageAccounts)] = role.IsAdmin()
	return out
}

// navigation controls gated by a permission
var permissionControls = []struct {
	href string
	key  PermissionKey
}{
	{"/pages/manage_events.html", PermissionManageEvents},
	{"/pages/create_events.html", PermissionCreateEvents},
	{"/pages/admin_trail.html", PermissionViewAdminTrail},
	{"/relocation/location.html", PermissionManageRelocation},
	{"/relocation/relocation.html", PermissionManageRelocation},
	{"/pages/account_management.html", PermissionManageAccounts},
}

// VisibleControls lists the navigation targets that should be shown for the
// given resolved permissions.
func VisibleControls(perms Permissions) []string {
	out := make([]string, 0, len(permissionControls))
	for _, control := range permissionControls {
		if perms.Allows(control.key) {
			out = append(out, control.href)
		}
	}
	return out
}
