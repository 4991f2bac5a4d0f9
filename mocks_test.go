package accounts_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/store/memory"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// MockIdentityProvider implements accounts.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CreateCredential(ctx context.Context, email, password string) (accounts.Identity, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(accounts.Identity), args.Error(1)
}

func (m *MockIdentityProvider) Authenticate(ctx context.Context, email, password string) (accounts.Identity, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(accounts.Identity), args.Error(1)
}

func (m *MockIdentityProvider) SendVerification(ctx context.Context, identity accounts.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityProvider) OnAuthStateChange(fn func(*accounts.Identity)) func() {
	args := m.Called(fn)
	if unsubscribe, ok := args.Get(0).(func()); ok {
		return unsubscribe
	}
	return func() {}
}

// MockPrompter implements accounts.Prompter
type MockPrompter struct {
	mock.Mock
}

func (m *MockPrompter) Confirm(ctx context.Context, title, message string) (bool, error) {
	args := m.Called(ctx, title, message)
	return args.Bool(0), args.Error(1)
}

func (m *MockPrompter) Notify(ctx context.Context, kind accounts.NotifyKind, title, message string) {
	m.Called(ctx, kind, title, message)
}

func (m *MockPrompter) PromptForInput(ctx context.Context, spec accounts.InputSpec) (string, bool, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Bool(1), args.Error(2)
}

type recordedAudit struct {
	actor  accounts.ActorRef
	record accounts.AuditRecord
}

type capturingSink struct {
	mu      sync.Mutex
	records []recordedAudit
}

func (s *capturingSink) Record(_ context.Context, actor accounts.ActorRef, record accounts.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recordedAudit{actor: actor, record: record})
}

func (s *capturingSink) all() []recordedAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedAudit(nil), s.records...)
}

func (s *capturingSink) actions() []string {
	out := []string{}
	for _, r := range s.all() {
		out = append(out, r.record.Action)
	}
	return out
}

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Trace(message string, args ...any) { l.record("trace", message, args...) }
func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }
func (l *captureLogger) Fatal(message string, args ...any) { l.record("fatal", message, args...) }
func (l *captureLogger) WithContext(context.Context) accounts.Logger {
	return l
}

func (l *captureLogger) byLevel(level string) []logCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []logCall{}
	for _, call := range l.calls {
		if call.level == level {
			out = append(out, call)
		}
	}
	return out
}

type loggerProviderSpy struct {
	logger accounts.Logger
	names  []string
}

func (p *loggerProviderSpy) GetLogger(name string) accounts.Logger {
	p.names = append(p.names, name)
	return p.logger
}

type fixture struct {
	store     *memory.Store
	directory accounts.Directory
	idp       *MockIdentityProvider
	sink      *capturingSink
	logger    *captureLogger
	manager   *accounts.Manager
}

func newFixture(t *testing.T, opts ...accounts.ManagerOption) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.New(),
		idp:    &MockIdentityProvider{},
		sink:   &capturingSink{},
		logger: &captureLogger{},
	}
	f.directory = accounts.NewDirectory(f.store)

	base := []accounts.ManagerOption{
		accounts.WithManagerClock(fixedClock),
		accounts.WithManagerAuditSink(f.sink),
		accounts.WithManagerLogger(f.logger),
	}
	f.manager = accounts.NewManager(f.directory, f.idp, append(base, opts...)...)

	t.Cleanup(func() { f.idp.AssertExpectations(t) })
	return f
}

func (f *fixture) seed(t *testing.T, id string, doc accounts.Document) {
	t.Helper()
	require.NoError(t, f.store.Update(context.Background(), accounts.UserPath(id), doc))
}

func (f *fixture) seedAdmin(t *testing.T, id, email string) accounts.ActorRef {
	t.Helper()
	f.seed(t, id, accounts.Document{
		"email":       email,
		"role":        "admin",
		"permissions": map[string]any(accounts.PermissionsForRole(accounts.RoleAdmin)),
	})
	return accounts.ActorRef{ID: id, Email: email}
}

func (f *fixture) seedUser(t *testing.T, id, email string) {
	t.Helper()
	f.seed(t, id, accounts.Document{
		"email":       email,
		"role":        "user",
		"permissions": map[string]any{"manageEvents": true},
	})
}

func (f *fixture) record(t *testing.T, id string) *accounts.AccountRecord {
	t.Helper()
	record, err := f.directory.Account(context.Background(), id)
	require.NoError(t, err)
	return record
}

func (f *fixture) users(t *testing.T) map[string]accounts.AccountRecord {
	t.Helper()
	records, err := f.directory.Accounts(context.Background())
	require.NoError(t, err)
	return records
}
