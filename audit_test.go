package accounts_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/store/memory"
)

func newTrail(t *testing.T, opts ...accounts.AuditTrailOption) (*memory.Store, accounts.Directory, *accounts.AuditTrail) {
	t.Helper()
	store := memory.New()
	dir := accounts.NewDirectory(store)
	base := []accounts.AuditTrailOption{
		accounts.WithAuditClock(fixedClock),
		accounts.WithAuditLogger(&captureLogger{}),
	}
	return store, dir, accounts.NewAuditTrail(dir, append(base, opts...)...)
}

func TestAuditTrailWriteStampsEntry(t *testing.T) {
	_, dir, trail := newTrail(t, accounts.WithAuditClientInfo(accounts.ClientInfo{
		UserAgent: "console/1.0",
		URL:       "https://console.pcu.edu.ph/pages/account_management.html",
	}))

	actor := accounts.ActorRef{ID: "uid-admin-0001", Email: "root@pcu.edu.ph"}
	id, err := trail.Write(context.Background(), actor, accounts.AuditRecord{
		Action:     accounts.ActionCreateAccount,
		EntityType: accounts.EntityTypeUser,
		EntityID:   "uid-user-00001",
		Details:    map[string]any{"targetEmail": "staff@pcu.edu.ph"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := dir.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, id, entry.ID)
	assert.True(t, entry.Timestamp.Equal(fixedNow))
	assert.Equal(t, "2026-03-02", entry.Date)
	assert.Equal(t, "uid-admin-0001", entry.UserID)
	assert.Equal(t, "root@pcu.edu.ph", entry.UserEmail)
	assert.Equal(t, "root@pcu.edu.ph", entry.UserName)
	assert.Equal(t, accounts.SeverityMedium, entry.Severity)
	assert.Equal(t, accounts.CategorySystem, entry.Category)
	assert.Equal(t, "staff@pcu.edu.ph", entry.DetailString("targetEmail"))
	assert.Equal(t, "console/1.0", entry.ClientInfo.UserAgent)
	assert.True(t, strings.HasPrefix(entry.ClientInfo.SessionID, "session_"))
	assert.Equal(t, trail.SessionID(), entry.ClientInfo.SessionID)
}

func TestAuditTrailSkipsAnonymousActor(t *testing.T) {
	_, dir, trail := newTrail(t)

	id, err := trail.Write(context.Background(), accounts.ActorRef{}, accounts.AuditRecord{Action: accounts.ActionRegister})
	require.NoError(t, err)
	assert.Empty(t, id)

	entries, err := dir.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditTrailWriteFailure(t *testing.T) {
	store, _, trail := newTrail(t)
	store.FailWith(accounts.CollectionTrail, errors.New("quota"))

	_, err := trail.Write(context.Background(), accounts.ActorRef{ID: "uid-admin-0001"}, accounts.AuditRecord{Action: accounts.ActionLogin})
	require.ErrorIs(t, err, accounts.ErrAuditWriteFailed)
}

func TestAuditTrailRecordIsDetachedFromCancellation(t *testing.T) {
	logger := &captureLogger{}
	_, dir, trail := newTrail(t, accounts.WithAuditLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	actor := accounts.ActorRef{ID: "uid-admin-0001", Email: "root@pcu.edu.ph"}
	for _, action := range []string{accounts.ActionLogin, accounts.ActionLogout} {
		trail.Record(ctx, actor, accounts.AuditRecord{Action: action, Severity: accounts.SeverityLow})
		trail.Wait()
	}

	entries, err := dir.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, accounts.ActionLogin, entries[0].Action)
	assert.Equal(t, accounts.ActionLogout, entries[1].Action)
	assert.Empty(t, logger.byLevel("warn"))
}

func TestAuditSinkFunc(t *testing.T) {
	var got []string
	sink := accounts.AuditSinkFunc(func(_ context.Context, actor accounts.ActorRef, record accounts.AuditRecord) {
		got = append(got, actor.ID+":"+record.Action)
	})
	sink.Record(context.Background(), accounts.ActorRef{ID: "a"}, accounts.AuditRecord{Action: "X"})

	var nilSink accounts.AuditSinkFunc
	nilSink.Record(context.Background(), accounts.ActorRef{ID: "b"}, accounts.AuditRecord{Action: "Y"})

	assert.Equal(t, []string{"a:X"}, got)
}

func TestTrailReaderFilters(t *testing.T) {
	_, dir, trail := newTrail(t)
	ctx := context.Background()
	admin := accounts.ActorRef{ID: "uid-admin-0001", Email: "root@pcu.edu.ph"}
	staff := accounts.ActorRef{ID: "uid-user-00001", Email: "staff@pcu.edu.ph"}

	writes := []struct {
		actor  accounts.ActorRef
		record accounts.AuditRecord
	}{
		{admin, accounts.AuditRecord{Action: accounts.ActionLogin, Severity: accounts.SeverityLow, Category: accounts.CategoryAuthentication}},
		{admin, accounts.AuditRecord{Action: accounts.ActionCreateAccount, Severity: accounts.SeverityHigh, Category: accounts.CategoryAccountManagement}},
		{staff, accounts.AuditRecord{Action: accounts.ActionLogin, Severity: accounts.SeverityLow, Category: accounts.CategoryAuthentication}},
		{admin, accounts.AuditRecord{Action: accounts.ActionDeleteAccount, Severity: accounts.SeverityHigh, Category: accounts.CategoryAccountManagement}},
	}
	for _, w := range writes {
		_, err := trail.Write(ctx, w.actor, w.record)
		require.NoError(t, err)
	}

	reader := accounts.NewTrailReader(dir)

	actions := func(filter accounts.TrailFilter) []string {
		seq, err := reader.Entries(ctx, filter)
		require.NoError(t, err)
		out := []string{}
		for entry := range seq {
			out = append(out, entry.Action+"@"+entry.UserID)
		}
		return out
	}

	assert.Equal(t, []string{
		"LOGIN@uid-admin-0001",
		"CREATE_ACCOUNT@uid-admin-0001",
		"LOGIN@uid-user-00001",
		"DELETE_ACCOUNT@uid-admin-0001",
	}, actions(accounts.TrailFilter{}))

	assert.Equal(t, []string{
		"LOGIN@uid-admin-0001",
		"LOGIN@uid-user-00001",
	}, actions(accounts.TrailFilter{Actions: []string{"login"}}))

	assert.Equal(t, []string{
		"CREATE_ACCOUNT@uid-admin-0001",
		"DELETE_ACCOUNT@uid-admin-0001",
	}, actions(accounts.TrailFilter{Severities: []accounts.Severity{accounts.SeverityHigh}}))

	assert.Equal(t, []string{
		"LOGIN@uid-user-00001",
	}, actions(accounts.TrailFilter{UserID: staff.ID, Categories: []accounts.Category{accounts.CategoryAuthentication}}))

	seq, err := reader.All(ctx)
	require.NoError(t, err)
	first := []string{}
	for entry := range seq {
		first = append(first, entry.Action)
		break
	}
	assert.Equal(t, []string{accounts.ActionLogin}, first)
	assert.Len(t, slices.Collect(seq), 4)
}
