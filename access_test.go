package accounts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/store/memory"
)

func TestResolveAccess(t *testing.T) {
	tests := []struct {
		name    string
		doc     accounts.Document
		wantErr error
	}{
		{name: "missing record", wantErr: accounts.ErrNotProvisioned},
		{
			name:    "disabled",
			doc:     accounts.Document{"email": "staff@pcu.edu.ph", "isDisabled": true},
			wantErr: accounts.ErrAccountDisabled,
		},
		{
			name:    "soft deleted",
			doc:     accounts.Document{"email": "staff@pcu.edu.ph", "deletedAt": "2026-01-05T00:00:00.000Z"},
			wantErr: accounts.ErrAccountDeleted,
		},
		{
			name: "active",
			doc:  accounts.Document{"email": "staff@pcu.edu.ph", "permissions": map[string]any{"createEvents": true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedAdmin(t, "uid-admin-0001", "root@pcu.edu.ph")
			if tt.doc != nil {
				f.seed(t, "uid-user-00001", tt.doc)
			}

			access, err := f.manager.ResolveAccess(context.Background(), accounts.Identity{ID: "uid-user-00001", Email: "staff@pcu.edu.ph"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, accounts.IsRevoked(err))
				assert.Empty(t, access.Permissions.Granted())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, []accounts.PermissionKey{accounts.PermissionCreateEvents}, access.Permissions.Granted())
			assert.Equal(t, []string{"/pages/create_events.html"}, access.Controls())
		})
	}
}

func TestResolveAccessForeignDomainFallsBackToLookup(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "uid-outsider-1", accounts.Document{"email": "x@gmail.com", "role": "user"})

	// no admin seat, but the identity cannot be bootstrapped
	_, err := f.manager.ResolveAccess(context.Background(), accounts.Identity{ID: "uid-outsider-1", Email: "x@gmail.com"})
	require.NoError(t, err)
	assert.Empty(t, f.sink.all())
}

func TestResolveAccessStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailWith(accounts.CollectionUsers, errors.New("offline"))

	_, err := f.manager.ResolveAccess(context.Background(), accounts.Identity{ID: "uid-user-00001", Email: "staff@pcu.edu.ph"})
	require.ErrorIs(t, err, accounts.ErrStoreUnavailable)
	assert.False(t, accounts.IsRevoked(err))
}

// stallingStore holds the first users read until release is closed.
type stallingStore struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) Get(ctx context.Context, path string) (accounts.Document, bool, error) {
	if path == accounts.CollectionUsers {
		s.once.Do(func() {
			close(s.entered)
			<-s.release
		})
	}
	return s.Store.Get(ctx, path)
}

func TestResolveAccessOverlappingRequests(t *testing.T) {
	store := &stallingStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, store.Update(context.Background(), accounts.UserPath("uid-admin-0001"), accounts.Document{
		"email": "root@pcu.edu.ph",
		"role":  "admin",
	}))
	manager := accounts.NewManager(accounts.NewDirectory(store), &MockIdentityProvider{},
		accounts.WithManagerAuditSink(&capturingSink{}),
		accounts.WithManagerLogger(&captureLogger{}),
	)
	identity := accounts.Identity{ID: "uid-admin-0001", Email: "root@pcu.edu.ph"}

	first := make(chan error, 1)
	go func() {
		_, err := manager.ResolveAccess(context.Background(), identity)
		first <- err
	}()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the directory")
	}

	// the second request starts while the first is still reading
	time.AfterFunc(50*time.Millisecond, func() { close(store.release) })
	access, err := manager.ResolveAccess(context.Background(), identity)
	require.NoError(t, err)
	assert.True(t, access.Permissions.Allows(accounts.PermissionManageAccounts))
	assert.False(t, access.Promoted)

	require.NoError(t, <-first)
}
