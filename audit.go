package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is what callers hand to the trail. Timestamps, actor fields and
// client info are filled in by the writer.
type AuditRecord struct {
	Action     string
	EntityType string
	EntityID   string
	Severity   Severity
	Category   Category
	Details    map[string]any
}

// AuditSink consumes audit records. Implementations must not block the
// caller on storage and must not report failures back.
type AuditSink interface {
	Record(ctx context.Context, actor ActorRef, record AuditRecord)
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, actor ActorRef, record AuditRecord)

// Record implements AuditSink.
func (f AuditSinkFunc) Record(ctx context.Context, actor ActorRef, record AuditRecord) {
	if f == nil {
		return
	}
	f(ctx, actor, record)
}

type noopAuditSink struct{}

func (noopAuditSink) Record(context.Context, ActorRef, AuditRecord) {}

func normalizeAuditSink(s AuditSink) AuditSink {
	if s == nil {
		return noopAuditSink{}
	}
	return s
}

// AuditTrail appends entries to the adminTrail collection.
type AuditTrail struct {
	directory  Directory
	now        func() time.Time
	logger     Logger
	provider   LoggerProvider
	clientInfo ClientInfo
	detached   bool
	wg         sync.WaitGroup
}

var _ AuditSink = (*AuditTrail)(nil)

// AuditTrailOption configures an AuditTrail.
type AuditTrailOption func(*AuditTrail)

// WithAuditClock overrides the clock.
func WithAuditClock(now func() time.Time) AuditTrailOption {
	return func(t *AuditTrail) {
		if now != nil {
			t.now = now
		}
	}
}

// WithAuditClientInfo sets the client info stamped on every entry.
func WithAuditClientInfo(info ClientInfo) AuditTrailOption {
	return func(t *AuditTrail) {
		t.clientInfo = info
	}
}

// WithAuditLogger sets the logger.
func WithAuditLogger(logger Logger) AuditTrailOption {
	return func(t *AuditTrail) {
		t.provider, t.logger = ResolveLogger("accounts.audit", nil, logger)
	}
}

// WithAuditLoggerProvider resolves the logger from provider.
func WithAuditLoggerProvider(provider LoggerProvider) AuditTrailOption {
	return func(t *AuditTrail) {
		t.provider, t.logger = ResolveLogger("accounts.audit", provider, t.logger)
	}
}

// WithAuditSynchronous makes Record write inline. Useful for tools that exit
// right after a mutation.
func WithAuditSynchronous() AuditTrailOption {
	return func(t *AuditTrail) {
		t.detached = false
	}
}

// NewAuditTrail builds a trail writer over dir.
func NewAuditTrail(dir Directory, opts ...AuditTrailOption) *AuditTrail {
	t := &AuditTrail{
		directory: dir,
		now:       time.Now,
		detached:  true,
	}
	t.provider, t.logger = ResolveLogger("accounts.audit", nil, nil)
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.clientInfo.SessionID == "" {
		t.clientInfo.SessionID = "session_" + uuid.NewString()
	}
	return t
}

// SessionID returns the per trail session identifier.
func (t *AuditTrail) SessionID() string {
	return t.clientInfo.SessionID
}

// Write appends one entry and returns its key. Entries without an acting
// identity are skipped and return an empty key.
func (t *AuditTrail) Write(ctx context.Context, actor ActorRef, record AuditRecord) (string, error) {
	if actor.ID == "" {
		t.logger.Debug("audit trail write skipped without actor", "action", record.Action)
		return "", nil
	}

	entry := t.entry(actor, record)
	id, err := t.directory.AppendEntry(ctx, entry)
	if err != nil {
		return "", derive(ErrAuditWriteFailed,
			fmt.Sprintf("audit trail write failed for %s: %v", record.Action, err),
			map[string]any{"action": record.Action, "cause": err.Error()},
		)
	}
	return id, nil
}

// Record writes the entry without blocking the caller. Failures are logged
// and dropped. Cancellation of ctx does not abort the write.
func (t *AuditTrail) Record(ctx context.Context, actor ActorRef, record AuditRecord) {
	if t == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if !t.detached {
		t.record(ctx, actor, record)
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.record(ctx, actor, record)
	}()
}

// Wait blocks until every detached write has finished.
func (t *AuditTrail) Wait() {
	t.wg.Wait()
}

func (t *AuditTrail) record(ctx context.Context, actor ActorRef, record AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("audit trail write panicked", "action", record.Action, "panic", r)
		}
	}()

	if _, err := t.Write(ctx, actor, record); err != nil {
		t.logger.Warn("audit trail write failed", "action", record.Action, "error", err)
	}
}

func (t *AuditTrail) entry(actor ActorRef, record AuditRecord) AuditEntry {
	now := t.now().UTC()

	severity := record.Severity
	if severity == "" {
		severity = SeverityMedium
	}
	category := record.Category
	if category == "" {
		category = CategorySystem
	}
	details := CloneDocument(record.Details)
	if details == nil {
		details = map[string]any{}
	}

	return AuditEntry{
		Timestamp:  now,
		Date:       now.Format(time.DateOnly),
		Action:     record.Action,
		EntityType: record.EntityType,
		EntityID:   record.EntityID,
		UserID:     actor.ID,
		UserEmail:  actor.Email,
		UserName:   actor.DisplayName(),
		Severity:   severity,
		Category:   category,
		Details:    details,
		ClientInfo: t.clientInfo,
	}
}
