package accounts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

func TestSessionSignInAuthorizesActiveAccount(t *testing.T) {
	f := newFixture(t)
	f.seedAdmin(t, "uid-admin-0001", "root@pcu.edu.ph")
	f.seedUser(t, "uid-user-00001", "staff@pcu.edu.ph")

	identity := accounts.Identity{ID: "uid-user-00001", Email: "staff@pcu.edu.ph", EmailVerified: true}
	f.idp.On("Authenticate", mock.Anything, "staff@pcu.edu.ph", "secret1").Return(identity, nil).Once()

	session := accounts.NewSession(f.manager, f.idp, accounts.WithSessionLogger(f.logger))
	resolution, err := session.SignIn(context.Background(), " Staff@PCU.edu.ph", "secret1")
	require.NoError(t, err)

	assert.Equal(t, accounts.GuardResolving, resolution.State)
	assert.True(t, resolution.Access.Permissions.Allows(accounts.PermissionManageEvents))
	assert.False(t, resolution.Access.Promoted)

	allowed := session.Authorize("/pages/manage_events.html")
	assert.True(t, allowed.Allowed)

	denied := session.Authorize("/pages/account_management.html")
	assert.False(t, denied.Allowed)
	assert.Equal(t, "Only administrators can manage account records.", denied.Message)

	assert.Equal(t, []string{accounts.ActionLogin}, f.sink.actions())
	require.NotNil(t, f.record(t, "uid-user-00001").LastLoginAt)
}

func TestSessionRevokesDisabledAccount(t *testing.T) {
	f := newFixture(t)
	f.seedAdmin(t, "uid-admin-0001", "root@pcu.edu.ph")
	f.seed(t, "uid-user-00001", accounts.Document{
		"email":      "staff@pcu.edu.ph",
		"role":       "user",
		"isDisabled": true,
	})

	f.idp.On("SignOut", mock.Anything).Return(nil).Twice()

	session := accounts.NewSession(f.manager, f.idp, accounts.WithSessionLogger(f.logger))
	identity := &accounts.Identity{ID: "uid-user-00001", Email: "staff@pcu.edu.ph"}

	resolution, err := session.HandleAuthStateChange(context.Background(), identity)
	require.ErrorIs(t, err, accounts.ErrAccountDisabled)
	require.NotNil(t, resolution.Decision)
	assert.True(t, resolution.Decision.SignOut)
	assert.True(t, resolution.Decision.Notify)
	assert.Equal(t, "Account Disabled", resolution.Decision.Title)
	assert.Equal(t, accounts.GuardUnauthenticated, session.Guard().State())

	_, ok := session.Access()
	assert.False(t, ok)

	// a second callback for the same principal does not notify again
	resolution, err = session.HandleAuthStateChange(context.Background(), identity)
	require.ErrorIs(t, err, accounts.ErrAccountDisabled)
	assert.False(t, resolution.Decision.Notify)
	assert.False(t, resolution.Decision.SignOut)
	assert.Empty(t, resolution.Decision.Redirect)
}

func TestSessionRevokesUnprovisionedIdentity(t *testing.T) {
	f := newFixture(t)
	f.seedAdmin(t, "uid-admin-0001", "root@pcu.edu.ph")

	f.idp.On("SignOut", mock.Anything).Return(errors.New("offline")).Once()

	session := accounts.NewSession(f.manager, f.idp, accounts.WithSessionLogger(f.logger))
	_, err := session.HandleAuthStateChange(context.Background(), &accounts.Identity{ID: "uid-ghost-0001", Email: "ghost@pcu.edu.ph"})
	require.ErrorIs(t, err, accounts.ErrNotProvisioned)

	warns := f.logger.byLevel("warn")
	require.Len(t, warns, 1)
	assert.Equal(t, "sign out after revocation failed", warns[0].message)
}

func TestSessionBootstrapsFirstIdentity(t *testing.T) {
	f := newFixture(t)
	session := accounts.NewSession(f.manager, f.idp, accounts.WithSessionLogger(f.logger))

	resolution, err := session.HandleAuthStateChange(context.Background(), &accounts.Identity{ID: "uid-first-0001", Email: "first@pcu.edu.ph"})
	require.NoError(t, err)
	assert.True(t, resolution.Access.Promoted)
	assert.True(t, resolution.Access.Permissions.Allows(accounts.PermissionManageAccounts))
	assert.True(t, session.Authorize("/pages/account_management.html").Allowed)
	assert.Equal(t, []string{accounts.ActionBootstrapAdmin}, f.sink.actions())
}

func TestSessionSignOut(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "uid-user-00001", "staff@pcu.edu.ph")
	f.seedAdmin(t, "uid-admin-0001", "root@pcu.edu.ph")

	identity := accounts.Identity{ID: "uid-user-00001", Email: "staff@pcu.edu.ph"}
	f.idp.On("SignOut", mock.Anything).Return(nil).Once()

	session := accounts.NewSession(f.manager, f.idp, accounts.WithSessionLogger(f.logger))
	_, err := session.HandleAuthStateChange(context.Background(), &identity)
	require.NoError(t, err)

	require.NoError(t, session.SignOut(context.Background()))
	_, ok := session.Access()
	assert.False(t, ok)
	assert.Equal(t, accounts.GuardUnauthenticated, session.Guard().State())
	assert.Equal(t, []string{accounts.ActionLogout}, f.sink.actions())
	assert.Equal(t, "/index.html", session.Authorize("/pages/profile.html").Redirect)
}

func TestSessionWatchSubscribes(t *testing.T) {
	f := newFixture(t)
	f.seedAdmin(t, "uid-admin-0001", "root@pcu.edu.ph")

	var callback func(*accounts.Identity)
	f.idp.On("OnAuthStateChange", mock.Anything).
		Run(func(args mock.Arguments) {
			callback = args.Get(0).(func(*accounts.Identity))
		}).
		Return(func() {}).Once()

	session := accounts.NewSession(f.manager, f.idp, accounts.WithSessionLogger(f.logger))
	unsubscribe := session.Watch(context.Background())
	require.NotNil(t, unsubscribe)
	require.NotNil(t, callback)

	callback(&accounts.Identity{ID: "uid-admin-0001", Email: "root@pcu.edu.ph"})
	access, ok := session.Access()
	require.True(t, ok)
	assert.True(t, access.Record.IsAdmin())
}
