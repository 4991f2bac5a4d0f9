package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Manager owns account lifecycle mutations.
type Manager struct {
	directory  Directory
	identities IdentityProvider
	prompter   Prompter
	audit      AuditSink
	config     Config
	now        func() time.Time
	logger     Logger
	provider   LoggerProvider

	gates      *busyGates
	mu         sync.Mutex
	adminCount atomic.Int64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerConfig sets the account policy.
func WithManagerConfig(cfg Config) ManagerOption {
	return func(m *Manager) {
		m.config = cfg.normalized()
	}
}

// WithManagerClock overrides the clock.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithManagerAuditSink sets where audit records go.
func WithManagerAuditSink(sink AuditSink) ManagerOption {
	return func(m *Manager) {
		m.audit = normalizeAuditSink(sink)
	}
}

// WithManagerPrompter sets the default prompter. A prompter scoped with
// WithPrompter on the call context takes precedence.
func WithManagerPrompter(p Prompter) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.prompter = p
		}
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		m.provider, m.logger = ResolveLogger("accounts.manager", nil, logger)
	}
}

// WithManagerLoggerProvider resolves the logger from provider.
func WithManagerLoggerProvider(provider LoggerProvider) ManagerOption {
	return func(m *Manager) {
		m.provider, m.logger = ResolveLogger("accounts.manager", provider, m.logger)
	}
}

// NewManager builds a Manager over dir and the identity provider.
func NewManager(dir Directory, identities IdentityProvider, opts ...ManagerOption) *Manager {
	m := &Manager{
		directory:  dir,
		identities: identities,
		prompter:   StaticPrompter{},
		audit:      noopAuditSink{},
		config:     DefaultConfig(),
		now:        time.Now,
		gates:      newBusyGates(),
	}
	m.provider, m.logger = ResolveLogger("accounts.manager", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Config returns the active policy.
func (m *Manager) Config() Config {
	return m.config
}

// AdminCount is the cached number of admin seats seen on the last directory
// read. It is a display hint only; mutations always re-read the directory.
func (m *Manager) AdminCount() int {
	return int(m.adminCount.Load())
}

// Account returns the record for id, or nil when none exists.
func (m *Manager) Account(ctx context.Context, id string) (*AccountRecord, error) {
	return m.directory.Account(ctx, id)
}

// CreateAccountResult is the outcome of CreateAccount and CreateOrLink.
type CreateAccountResult struct {
	Account          AccountRecord `json:"account"`
	Linked           bool          `json:"linked"`
	VerificationSent bool          `json:"verification_sent"`
}

// Bootstrap promotes identity to admin when the directory has no admin seat.
// It returns the identity's record, which is nil when none exists, and
// whether a promotion happened. It runs on every access resolution, so
// overlapping calls wait on the manager lock instead of a busy gate.
func (m *Manager) Bootstrap(ctx context.Context, identity Identity) (*AccountRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.directory.Accounts(ctx)
	if err != nil {
		return nil, false, err
	}
	seats := m.observeSeats(records)

	if seats > 0 {
		if record, ok := records[identity.ID]; ok {
			return &record, false, nil
		}
		return nil, false, nil
	}

	if err := ValidateEmail(m.config, identity.Email); err != nil {
		return nil, false, err
	}

	email := NormalizeEmail(identity.Email)
	payload := Document{
		"email":          email,
		"role":           string(RoleAdmin),
		"permissions":    map[string]any(PermissionsForRole(RoleAdmin)),
		"bootstrapAdmin": true,
		"updatedAt":      formatTimestamp(m.now()),
	}
	if err := m.directory.WriteAccount(ctx, identity.ID, payload); err != nil {
		return nil, false, err
	}
	m.adminCount.Store(1)

	m.logger.Info("bootstrap admin provisioned", "user_id", identity.ID, "email", email)
	m.audit.Record(ctx, identity.Actor(), AuditRecord{
		Action:     ActionBootstrapAdmin,
		EntityType: EntityTypeUser,
		EntityID:   identity.ID,
		Severity:   SeverityCritical,
		Category:   CategoryAccountManagement,
		Details: map[string]any{
			"targetEmail": email,
			"note":        "First admin automatically provisioned",
		},
	})

	var existing Document
	if record, ok := records[identity.ID]; ok {
		existing = recordDocument(record)
	}
	record := AccountFromDocument(identity.ID, MergeDocument(existing, payload))
	return &record, true, nil
}

// CreateAccount provisions a credential and its directory record. When the
// directory holds no admin seat the role is forced to admin.
func (m *Manager) CreateAccount(ctx context.Context, actor ActorRef, input CreateAccountInput) (*CreateAccountResult, error) {
	input = input.normalized()
	if err := input.Validate(m.config); err != nil {
		return nil, err
	}

	release, err := m.gates.acquire("create")
	if err != nil {
		return nil, err
	}
	defer release()

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.directory.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	seats := m.observeSeats(records)
	if err := m.authorize(actor, records, seats); err != nil {
		return nil, err
	}

	role := effectiveRole(input.Role, seats)
	if role.IsAdmin() && seats >= m.config.MaxAdminAccounts {
		return nil, adminLimitError(input.Email, seats, m.config.MaxAdminAccounts)
	}

	identity, err := m.identities.CreateCredential(ctx, input.Email, input.Password)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyInUse) {
			return nil, NewError(ErrEmailAlreadyInUse, map[string]any{"email": input.Email, "role": string(role)})
		}
		return nil, providerError(err, "failed to create credential")
	}

	verificationSent := true
	if err := m.identities.SendVerification(ctx, identity); err != nil {
		verificationSent = false
		m.logger.Warn("verification email failed", "user_id", identity.ID, "error", err)
	}

	payload := Document{
		"email":         input.Email,
		"role":          string(role),
		"permissions":   map[string]any(PermissionsForRole(role)),
		"createdBy":     actor.Email,
		"createdAt":     formatTimestamp(m.now()),
		"emailVerified": identity.EmailVerified,
	}
	if err := m.directory.WriteAccount(ctx, identity.ID, payload); err != nil {
		return nil, err
	}
	if role.IsAdmin() {
		m.adminCount.Store(int64(seats + 1))
	}

	m.audit.Record(ctx, actor, AuditRecord{
		Action:     ActionCreateAccount,
		EntityType: EntityTypeUser,
		EntityID:   identity.ID,
		Severity:   SeverityHigh,
		Category:   CategoryAccountManagement,
		Details: map[string]any{
			"targetEmail": input.Email,
			"role":        string(role),
			"createdBy":   actor.Email,
		},
	})

	return &CreateAccountResult{
		Account:          AccountFromDocument(identity.ID, payload),
		VerificationSent: verificationSent,
	}, nil
}

// CreateOrLink runs CreateAccount and, when the email already has a
// credential, prompts for the identity id and links it instead. Cancelling
// the prompt returns the original ErrEmailAlreadyInUse.
func (m *Manager) CreateOrLink(ctx context.Context, actor ActorRef, input CreateAccountInput) (*CreateAccountResult, error) {
	result, err := m.CreateAccount(ctx, actor, input)
	if err == nil || !errors.Is(err, ErrEmailAlreadyInUse) {
		return result, err
	}

	input = input.normalized()
	identityID, ok, perr := m.prompterFor(ctx).PromptForInput(ctx, InputSpec{
		Title:       "Link Directory Profile",
		Message:     fmt.Sprintf("%s already has a credential. Enter its identity id to link a directory profile.", input.Email),
		Label:       "Identity ID",
		Placeholder: "identity id",
		MinLength:   m.config.MinIdentityIDLength,
	})
	if perr != nil {
		return nil, perr
	}
	if !ok {
		return nil, err
	}

	record, lerr := m.LinkExistingAccount(ctx, actor, LinkAccountInput{
		Email:      input.Email,
		Role:       input.Role,
		IdentityID: identityID,
	})
	if lerr != nil {
		return nil, lerr
	}
	return &CreateAccountResult{Account: *record, Linked: true}, nil
}

// LinkExistingAccount writes a directory record for a credential that was
// created outside the console.
func (m *Manager) LinkExistingAccount(ctx context.Context, actor ActorRef, input LinkAccountInput) (*AccountRecord, error) {
	input = input.normalized()
	if err := input.Validate(m.config); err != nil {
		return nil, err
	}

	release, err := m.gates.acquire("link:" + input.IdentityID)
	if err != nil {
		return nil, err
	}
	defer release()

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.directory.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	seats := m.observeSeats(records)
	if err := m.authorize(actor, records, seats); err != nil {
		return nil, err
	}

	role := effectiveRole(input.Role, seats)
	if role.IsAdmin() && seats >= m.config.MaxAdminAccounts {
		return nil, adminLimitError(input.Email, seats, m.config.MaxAdminAccounts)
	}

	if _, exists := records[input.IdentityID]; exists {
		return nil, NewError(ErrAlreadyLinked, map[string]any{"identity_id": input.IdentityID, "email": input.Email})
	}

	payload := Document{
		"email":              input.Email,
		"role":               string(role),
		"permissions":        map[string]any(PermissionsForRole(role)),
		"createdBy":          actor.Email,
		"createdAt":          formatTimestamp(m.now()),
		"emailVerified":      false,
		"linkedFromAuthOnly": true,
	}
	if err := m.directory.WriteAccount(ctx, input.IdentityID, payload); err != nil {
		return nil, err
	}
	if role.IsAdmin() {
		m.adminCount.Store(int64(min(m.config.MaxAdminAccounts, seats+1)))
	}

	m.audit.Record(ctx, actor, AuditRecord{
		Action:     ActionLinkExistingAccount,
		EntityType: EntityTypeUser,
		EntityID:   input.IdentityID,
		Severity:   SeverityHigh,
		Category:   CategoryAccountManagement,
		Details: map[string]any{
			"targetEmail": input.Email,
			"role":        string(role),
			"linkedBy":    actor.Email,
		},
	})

	record := AccountFromDocument(input.IdentityID, payload)
	return &record, nil
}

// UpdateRoleAndPermissions replaces the role and permission document of id.
// Only known permission keys are stored and manageAccounts follows the role.
func (m *Manager) UpdateRoleAndPermissions(ctx context.Context, actor ActorRef, id string, role Role, permissions map[string]any) (*AccountRecord, error) {
	if !role.IsValid() {
		return nil, NewError(ErrValidation, map[string]any{
			"fields": map[string]string{"role": fmt.Sprintf("unknown role %q", role)},
		})
	}

	release, err := m.gates.acquire("update:" + id)
	if err != nil {
		return nil, err
	}
	defer release()

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.directory.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	seats := m.observeSeats(records)
	if err := m.authorize(actor, records, seats); err != nil {
		return nil, err
	}

	target, ok := records[id]
	if !ok {
		return nil, NewError(ErrAccountNotFound, map[string]any{"id": id})
	}

	if role.IsAdmin() && !target.HoldsAdminSeat() && seats >= m.config.MaxAdminAccounts {
		return nil, adminLimitError(target.Email, seats, m.config.MaxAdminAccounts)
	}
	if id == actor.ID && !role.IsAdmin() {
		return nil, NewError(ErrSelfDemotionBlocked, map[string]any{"id": id})
	}

	sanitized := SanitizePermissions(permissions, role)
	payload := Document{
		"role":        string(role),
		"permissions": map[string]any(sanitized),
		"updatedAt":   formatTimestamp(m.now()),
	}
	if err := m.directory.WriteAccount(ctx, id, payload); err != nil {
		return nil, err
	}

	switch {
	case role.IsAdmin() && !target.HoldsAdminSeat():
		m.adminCount.Store(int64(seats + 1))
	case !role.IsAdmin() && target.HoldsAdminSeat():
		m.adminCount.Store(int64(max(0, seats-1)))
	}

	m.audit.Record(ctx, actor, AuditRecord{
		Action:     ActionUpdatePermissions,
		EntityType: EntityTypeUser,
		EntityID:   id,
		Severity:   SeverityHigh,
		Category:   CategoryAccountManagement,
		Details: map[string]any{
			"targetEmail": target.Email,
			"role":        string(role),
			"permissions": map[string]any(sanitized.Clone()),
		},
	})

	record := AccountFromDocument(id, MergeDocument(recordDocument(target), payload))
	return &record, nil
}

// SetDisabled flips the disabled flag of id after confirmation.
func (m *Manager) SetDisabled(ctx context.Context, actor ActorRef, id string, disabled bool) (*AccountRecord, error) {
	release, err := m.gates.acquire("state:" + id)
	if err != nil {
		return nil, err
	}
	defer release()

	target, err := m.confirmTarget(ctx, actor, id, func(record AccountRecord) (string, string) {
		if disabled {
			return "Disable Account", fmt.Sprintf("Disable access for %s?", record.Email)
		}
		return "Enable Account", fmt.Sprintf("Re-enable access for %s?", record.Email)
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.authorizeFresh(ctx, actor, id); err != nil {
		return nil, err
	}

	payload := Document{
		"isDisabled": disabled,
		"updatedAt":  formatTimestamp(m.now()),
	}
	if err := m.directory.WriteAccount(ctx, id, payload); err != nil {
		return nil, err
	}

	action := ActionEnableAccount
	if disabled {
		action = ActionDisableAccount
	}
	m.audit.Record(ctx, actor, AuditRecord{
		Action:     action,
		EntityType: EntityTypeUser,
		EntityID:   id,
		Severity:   SeverityHigh,
		Category:   CategoryAccountManagement,
		Details:    map[string]any{"targetEmail": target.Email},
	})

	record := AccountFromDocument(id, MergeDocument(recordDocument(target), payload))
	return &record, nil
}

// DeleteAccount removes the directory record of id after confirmation. The
// identity provider credential is left untouched.
func (m *Manager) DeleteAccount(ctx context.Context, actor ActorRef, id string) error {
	release, err := m.gates.acquire("state:" + id)
	if err != nil {
		return err
	}
	defer release()

	target, err := m.confirmTarget(ctx, actor, id, func(record AccountRecord) (string, string) {
		return "Delete Account", fmt.Sprintf("Delete the directory record for %s? The sign-in credential is not removed.", record.Email)
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seats, err := m.authorizeFresh(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := m.directory.RemoveAccount(ctx, id); err != nil {
		return err
	}
	if target.HoldsAdminSeat() {
		m.adminCount.Store(int64(max(0, seats-1)))
	}

	m.audit.Record(ctx, actor, AuditRecord{
		Action:     ActionDeleteAccount,
		EntityType: EntityTypeUser,
		EntityID:   id,
		Severity:   SeverityHigh,
		Category:   CategoryAccountManagement,
		Details:    map[string]any{"targetEmail": target.Email},
	})
	return nil
}

// Register creates the very first account of an empty directory. It is
// closed once any record exists.
func (m *Manager) Register(ctx context.Context, input CreateAccountInput) (*AccountRecord, error) {
	input = input.normalized()
	if err := input.Validate(m.config); err != nil {
		return nil, err
	}

	release, err := m.gates.acquire("register")
	if err != nil {
		return nil, err
	}
	defer release()

	m.mu.Lock()
	defer m.mu.Unlock()

	exists, err := m.directory.HasAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, NewError(ErrRegistrationClosed, map[string]any{"email": input.Email})
	}

	identity, err := m.identities.CreateCredential(ctx, input.Email, input.Password)
	if err != nil {
		m.logger.Warn("registration failed", "email", input.Email, "error", err)
		return nil, providerError(err, "failed to register credential")
	}

	now := formatTimestamp(m.now())
	payload := Document{
		"email":          input.Email,
		"role":           string(RoleAdmin),
		"permissions":    map[string]any(PermissionsForRole(RoleAdmin)),
		"bootstrapAdmin": true,
		"createdAt":      now,
		"emailVerified":  identity.EmailVerified,
	}
	if err := m.directory.WriteAccount(ctx, identity.ID, payload); err != nil {
		return nil, err
	}
	m.adminCount.Store(1)

	m.audit.Record(ctx, identity.Actor(), AuditRecord{
		Action:     ActionRegister,
		EntityType: EntityTypeUser,
		EntityID:   identity.ID,
		Severity:   SeverityHigh,
		Category:   CategoryAuthentication,
		Details: map[string]any{
			"userEmail":        input.Email,
			"role":             string(RoleAdmin),
			"bootstrapAdmin":   true,
			"registrationDate": now,
		},
	})

	record := AccountFromDocument(identity.ID, payload)
	return &record, nil
}

// RecordLogin stamps the last sign in of a provisioned identity and writes a
// LOGIN entry.
func (m *Manager) RecordLogin(ctx context.Context, identity Identity) error {
	record, err := m.directory.Account(ctx, identity.ID)
	if err != nil {
		return err
	}
	if record == nil {
		return NewError(ErrNotProvisioned, map[string]any{"id": identity.ID})
	}

	payload := Document{
		"lastLoginAt":   formatTimestamp(m.now()),
		"emailVerified": identity.EmailVerified,
	}
	if err := m.directory.WriteAccount(ctx, identity.ID, payload); err != nil {
		return err
	}

	m.audit.Record(ctx, identity.Actor(), AuditRecord{
		Action:     ActionLogin,
		EntityType: EntityTypeUser,
		EntityID:   identity.Email,
		Severity:   SeverityLow,
		Category:   CategoryAuthentication,
		Details:    map[string]any{"userEmail": identity.Email},
	})
	return nil
}

// RecordLogout writes a LOGOUT entry.
func (m *Manager) RecordLogout(ctx context.Context, identity Identity) {
	m.audit.Record(ctx, identity.Actor(), AuditRecord{
		Action:     ActionLogout,
		EntityType: EntityTypeUser,
		EntityID:   identity.Email,
		Severity:   SeverityLow,
		Category:   CategoryAuthentication,
		Details:    map[string]any{"userEmail": identity.Email},
	})
}

// Listing builds the admin roster for actor.
func (m *Manager) Listing(ctx context.Context, actor ActorRef) (Roster, error) {
	records, err := m.directory.Accounts(ctx)
	if err != nil {
		return Roster{}, err
	}
	seats := m.observeSeats(records)
	if err := m.authorize(actor, records, seats); err != nil {
		return Roster{}, err
	}

	trail, err := m.directory.Entries(ctx)
	if err != nil {
		return Roster{}, err
	}
	return Reconcile(records, trail, actor.ID), nil
}

// confirmTarget loads id, rejects self targeting and asks for confirmation
// before any lock is taken.
func (m *Manager) confirmTarget(ctx context.Context, actor ActorRef, id string, prompt func(AccountRecord) (string, string)) (AccountRecord, error) {
	if id == actor.ID {
		return AccountRecord{}, NewError(ErrSelfModificationBlocked, map[string]any{"id": id})
	}

	target, err := m.directory.Account(ctx, id)
	if err != nil {
		return AccountRecord{}, err
	}
	if target == nil {
		return AccountRecord{}, NewError(ErrAccountNotFound, map[string]any{"id": id})
	}

	title, message := prompt(*target)
	ok, err := m.prompterFor(ctx).Confirm(ctx, title, message)
	if err != nil {
		return AccountRecord{}, err
	}
	if !ok {
		return AccountRecord{}, NewError(ErrCancelled, map[string]any{"id": id})
	}
	return *target, nil
}

// authorizeFresh re-reads the directory, checks actor and that id still
// exists. It returns the admin seat count.
func (m *Manager) authorizeFresh(ctx context.Context, actor ActorRef, id string) (int, error) {
	records, err := m.directory.Accounts(ctx)
	if err != nil {
		return 0, err
	}
	seats := m.observeSeats(records)
	if err := m.authorize(actor, records, seats); err != nil {
		return seats, err
	}
	if _, ok := records[id]; !ok {
		return seats, NewError(ErrAccountNotFound, map[string]any{"id": id})
	}
	return seats, nil
}

// authorize requires an active admin actor. A directory without admin seats
// is unclaimed and any identified actor may act.
func (m *Manager) authorize(actor ActorRef, records map[string]AccountRecord, seats int) error {
	if actor.ID == "" {
		return NewError(ErrNotAuthorized, map[string]any{"reason": "missing actor"})
	}
	if seats == 0 {
		return nil
	}

	record, ok := records[actor.ID]
	if !ok || !record.IsActive() {
		return NewError(ErrNotAuthorized, map[string]any{"actor_id": actor.ID})
	}
	if !ResolvePermissions(record.Permissions, record.IsAdmin()).Allows(PermissionManageAccounts) {
		return NewError(ErrNotAuthorized, map[string]any{"actor_id": actor.ID})
	}
	return nil
}

func (m *Manager) observeSeats(records map[string]AccountRecord) int {
	seats := countAdminSeats(records)
	m.adminCount.Store(int64(seats))
	return seats
}

func (m *Manager) prompterFor(ctx context.Context) Prompter {
	if p, ok := PrompterFromContext(ctx); ok {
		return p
	}
	return m.prompter
}

func effectiveRole(requested Role, seats int) Role {
	if seats == 0 {
		return RoleAdmin
	}
	return NormalizeRole(string(requested))
}

// recordDocument re-encodes a record so partial updates can be merged onto it.
func recordDocument(r AccountRecord) Document {
	doc := Document{
		"email":       r.Email,
		"role":        string(r.Role),
		"permissions": map[string]any(r.Permissions.Clone()),
		"isDisabled":  r.IsDisabled,
	}
	if r.EmailVerified != nil {
		doc["emailVerified"] = *r.EmailVerified
	}
	if r.BootstrapAdmin {
		doc["bootstrapAdmin"] = true
	}
	if r.LinkedFromAuthOnly {
		doc["linkedFromAuthOnly"] = true
	}
	if r.CreatedBy != "" {
		doc["createdBy"] = r.CreatedBy
	}
	for key, ts := range map[string]*time.Time{
		"deletedAt":   r.DeletedAt,
		"createdAt":   r.CreatedAt,
		"updatedAt":   r.UpdatedAt,
		"lastLoginAt": r.LastLoginAt,
	} {
		if ts != nil {
			doc[key] = formatTimestamp(*ts)
		}
	}
	return doc
}
