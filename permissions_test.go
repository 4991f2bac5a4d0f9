package accounts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	accounts "github.com/goliatone/go-accounts"
)

func TestResolvePermissions(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		isAdmin bool
		want    accounts.Permissions
	}{
		{
			name: "empty non admin",
			want: accounts.Permissions{
				"manageEvents": false, "createEvents": false, "viewAdminTrail": false,
				"manageRelocation": false, "manageAccounts": false,
			},
		},
		{
			name:    "admin gets everything",
			raw:     map[string]any{"manageEvents": false},
			isAdmin: true,
			want: accounts.Permissions{
				"manageEvents": true, "createEvents": true, "viewAdminTrail": true,
				"manageRelocation": true, "manageAccounts": true,
			},
		},
		{
			name: "non admin never manages accounts",
			raw:  map[string]any{"manageAccounts": true, "createEvents": 1.0, "viewAdminTrail": ""},
			want: accounts.Permissions{
				"manageEvents": false, "createEvents": true, "viewAdminTrail": false,
				"manageRelocation": false, "manageAccounts": false,
			},
		},
		{
			name: "unknown keys pass through",
			raw:  map[string]any{"beta": "on"},
			want: accounts.Permissions{
				"manageEvents": false, "createEvents": false, "viewAdminTrail": false,
				"manageRelocation": false, "manageAccounts": false, "beta": "on",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := accounts.ResolvePermissions(tt.raw, tt.isAdmin)
			assert.Equal(t, tt.want, got)

			again := accounts.ResolvePermissions(got, tt.isAdmin)
			assert.Equal(t, got, again)
		})
	}
}

func TestResolvePermissionsDoesNotAliasInput(t *testing.T) {
	nested := map[string]any{"level": "2"}
	raw := map[string]any{"extra": nested}

	got := accounts.ResolvePermissions(raw, false)
	got["extra"].(map[string]any)["level"] = "3"

	assert.Equal(t, "2", nested["level"])
}

func TestSanitizePermissions(t *testing.T) {
	got := accounts.SanitizePermissions(map[string]any{
		"manageEvents":   true,
		"manageAccounts": true,
		"rogue":          true,
	}, accounts.RoleUser)

	assert.Equal(t, accounts.Permissions{
		"manageEvents": true, "createEvents": false, "viewAdminTrail": false,
		"manageRelocation": false, "manageAccounts": false,
	}, got)

	admin := accounts.SanitizePermissions(nil, accounts.RoleAdmin)
	assert.True(t, admin.Allows(accounts.PermissionManageAccounts))
	assert.False(t, admin.Allows(accounts.PermissionManageEvents))
}

func TestVisibleControls(t *testing.T) {
	perms := accounts.ResolvePermissions(map[string]any{
		"manageRelocation": true,
		"viewAdminTrail":   true,
	}, false)

	assert.Equal(t, []string{
		"/pages/admin_trail.html",
		"/relocation/location.html",
		"/relocation/relocation.html",
	}, accounts.VisibleControls(perms))

	assert.Equal(t, []accounts.PermissionKey{
		accounts.PermissionViewAdminTrail,
		accounts.PermissionManageRelocation,
	}, perms.Granted())
}

func TestRoles(t *testing.T) {
	assert.Equal(t, accounts.RoleAdmin, accounts.NormalizeRole("admin"))
	assert.Equal(t, accounts.RoleUser, accounts.NormalizeRole("Admin"))
	assert.Equal(t, accounts.RoleUser, accounts.NormalizeRole("superuser"))

	role, ok := accounts.ParseRole("user")
	assert.True(t, ok)
	assert.Equal(t, accounts.RoleUser, role)

	_, ok = accounts.ParseRole("root")
	assert.False(t, ok)
}
