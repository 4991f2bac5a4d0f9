// Package local is a self hosted identity provider. Credentials live in a
// bun table, passwords are bcrypt hashed and identity ids are derived from
// the email so re-creating a credential yields the same id.
package local

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	accounts "github.com/goliatone/go-accounts"
)

// Credential is the stored sign in secret of an identity.
type Credential struct {
	bun.BaseModel `bun:"table:credentials,alias:cred"`

	ID                 uuid.UUID  `bun:"id,pk,type:uuid"`
	Email              string     `bun:"email,notnull,unique"`
	PasswordHash       string     `bun:"password_hash,notnull"`
	EmailVerified      bool       `bun:"email_verified,notnull,default:false"`
	Disabled           bool       `bun:"disabled,notnull,default:false"`
	LoginAttempts      int        `bun:"login_attempts,notnull,default:0"`
	LoginAttemptAt     *time.Time `bun:"login_attempt_at,nullzero"`
	VerificationSentAt *time.Time `bun:"verification_sent_at,nullzero"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (c *Credential) identity() accounts.Identity {
	return accounts.Identity{ID: c.ID.String(), Email: c.Email, EmailVerified: c.EmailVerified}
}

// VerificationSender delivers verification mail.
type VerificationSender interface {
	SendVerification(ctx context.Context, identity accounts.Identity) error
}

// VerificationSenderFunc adapts a function to VerificationSender.
type VerificationSenderFunc func(ctx context.Context, identity accounts.Identity) error

func (f VerificationSenderFunc) SendVerification(ctx context.Context, identity accounts.Identity) error {
	return f(ctx, identity)
}

// Provider implements accounts.IdentityProvider.
type Provider struct {
	db       bun.IDB
	repo     repository.Repository[*Credential]
	sender   VerificationSender
	logger   accounts.Logger
	now      func() time.Time
	cost     int
	minLen   int
	lockout  int
	cooldown time.Duration
	resend   time.Duration

	mu        sync.Mutex
	current   *accounts.Identity
	listeners map[int]func(*accounts.Identity)
	nextID    int
}

var _ accounts.IdentityProvider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithBcryptCost sets the hashing cost.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) {
		p.cost = cost
	}
}

// WithVerificationSender sets the mail sender.
func WithVerificationSender(sender VerificationSender) Option {
	return func(p *Provider) {
		if sender != nil {
			p.sender = sender
		}
	}
}

// WithLockout locks sign in after attempts failures for cooldown.
func WithLockout(attempts int, cooldown time.Duration) Option {
	return func(p *Provider) {
		p.lockout = attempts
		p.cooldown = cooldown
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger accounts.Logger) Option {
	return func(p *Provider) {
		_, p.logger = accounts.ResolveLogger("accounts.provider.local", nil, logger)
	}
}

// New builds a provider over db.
func New(db *bun.DB, opts ...Option) *Provider {
	p := &Provider{
		db: db,
		repo: repository.NewRepository[*Credential](db, repository.ModelHandlers[*Credential]{
			NewRecord: func() *Credential { return &Credential{} },
			GetID: func(c *Credential) uuid.UUID {
				if c == nil {
					return uuid.Nil
				}
				return c.ID
			},
			SetID: func(c *Credential, id uuid.UUID) {
				if c != nil {
					c.ID = id
				}
			},
		}),
		now:       time.Now,
		cost:      bcrypt.DefaultCost,
		minLen:    6,
		lockout:   5,
		cooldown:  15 * time.Minute,
		resend:    time.Minute,
		listeners: map[int]func(*accounts.Identity){},
	}
	_, p.logger = accounts.ResolveLogger("accounts.provider.local", nil, nil)
	p.sender = VerificationSenderFunc(func(_ context.Context, identity accounts.Identity) error {
		p.logger.Info("verification email queued", "user_id", identity.ID, "email", identity.Email)
		return nil
	})
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Migrate creates the credentials table.
func (p *Provider) Migrate(ctx context.Context) error {
	_, err := p.db.NewCreateTable().
		Model((*Credential)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (p *Provider) CreateCredential(ctx context.Context, email, password string) (accounts.Identity, error) {
	email = accounts.NormalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return accounts.Identity{}, accounts.NewError(accounts.ErrInvalidEmail, map[string]any{"email": email})
	}
	if len(password) < p.minLen {
		return accounts.Identity{}, accounts.NewError(accounts.ErrWeakPassword, map[string]any{"min_length": p.minLen})
	}

	existing, err := p.findByEmail(ctx, email)
	if err != nil {
		return accounts.Identity{}, networkError(err)
	}
	if existing != nil {
		return accounts.Identity{}, accounts.NewError(accounts.ErrEmailAlreadyInUse, map[string]any{"email": email})
	}

	id, err := hashid.NewUUID(email)
	if err != nil {
		return accounts.Identity{}, networkError(err)
	}
	hash, err := HashPassword(password, p.cost)
	if err != nil {
		return accounts.Identity{}, err
	}

	credential, err := p.repo.CreateTx(ctx, p.db, &Credential{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    p.now(),
	})
	if err != nil {
		return accounts.Identity{}, networkError(err)
	}
	return credential.identity(), nil
}

func (p *Provider) Authenticate(ctx context.Context, email, password string) (accounts.Identity, error) {
	email = accounts.NormalizeEmail(email)
	credential, err := p.findByEmail(ctx, email)
	if err != nil {
		return accounts.Identity{}, networkError(err)
	}
	if credential == nil {
		return accounts.Identity{}, accounts.ErrInvalidCredential
	}
	if credential.Disabled {
		return accounts.Identity{}, accounts.NewError(accounts.ErrUserDisabled, map[string]any{"user_id": credential.ID})
	}

	now := p.now()
	if p.lockedOut(credential, now) {
		return accounts.Identity{}, accounts.NewError(accounts.ErrTooManyRequests, map[string]any{"user_id": credential.ID})
	}

	if err := ComparePasswordAndHash(password, credential.PasswordHash); err != nil {
		if trackErr := p.trackAttempt(ctx, credential, now); trackErr != nil {
			p.logger.Warn("track login attempt failed", "user_id", credential.ID, "error", trackErr)
		}
		return accounts.Identity{}, accounts.ErrInvalidCredential
	}

	if err := p.resetAttempts(ctx, credential); err != nil {
		p.logger.Warn("reset login attempts failed", "user_id", credential.ID, "error", err)
	}

	identity := credential.identity()
	p.setCurrent(&identity)
	return identity, nil
}

func (p *Provider) SendVerification(ctx context.Context, identity accounts.Identity) error {
	credential, err := p.findByID(ctx, identity.ID)
	if err != nil {
		return networkError(err)
	}
	if credential == nil {
		return accounts.NewError(accounts.ErrInvalidCredential, map[string]any{"user_id": identity.ID})
	}

	now := p.now()
	if credential.VerificationSentAt != nil && now.Sub(*credential.VerificationSentAt) < p.resend {
		return accounts.NewError(accounts.ErrTooManyRequests, map[string]any{"user_id": identity.ID})
	}

	if err := p.sender.SendVerification(ctx, credential.identity()); err != nil {
		return networkError(err)
	}

	_, err = p.db.NewUpdate().
		Model((*Credential)(nil)).
		Set("verification_sent_at = ?", now).
		Where("id = ?", credential.ID).
		Exec(ctx)
	return err
}

// MarkVerified flags the email of id as verified.
func (p *Provider) MarkVerified(ctx context.Context, id string) error {
	return p.setFlag(ctx, id, "email_verified", true)
}

// SetDisabled blocks or unblocks sign in for id at the credential level.
func (p *Provider) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return p.setFlag(ctx, id, "disabled", disabled)
}

func (p *Provider) setFlag(ctx context.Context, id, column string, value bool) error {
	credential, err := p.findByID(ctx, id)
	if err != nil {
		return networkError(err)
	}
	if credential == nil {
		return repository.NewRecordNotFound().WithMetadata(map[string]any{"id": id})
	}

	_, err = p.db.NewUpdate().
		Model((*Credential)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Where("id = ?", credential.ID).
		Exec(ctx)
	return err
}

func (p *Provider) SignOut(context.Context) error {
	p.setCurrent(nil)
	return nil
}

// Current returns the signed in identity.
func (p *Provider) Current() (accounts.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return accounts.Identity{}, false
	}
	return *p.current, true
}

// OnAuthStateChange registers fn and calls it right away with the current
// state.
func (p *Provider) OnAuthStateChange(fn func(*accounts.Identity)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := copyIdentity(p.current)
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) setCurrent(identity *accounts.Identity) {
	p.mu.Lock()
	p.current = copyIdentity(identity)
	listeners := make([]func(*accounts.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(copyIdentity(identity))
	}
}

func (p *Provider) lockedOut(c *Credential, now time.Time) bool {
	if p.lockout <= 0 || c.LoginAttempts < p.lockout || c.LoginAttemptAt == nil {
		return false
	}
	return now.Sub(*c.LoginAttemptAt) < p.cooldown
}

func (p *Provider) trackAttempt(ctx context.Context, c *Credential, now time.Time) error {
	_, err := p.db.NewUpdate().
		Model((*Credential)(nil)).
		Set("login_attempts = login_attempts + 1").
		Set("login_attempt_at = ?", now).
		Where("id = ?", c.ID).
		Exec(ctx)
	return err
}

func (p *Provider) resetAttempts(ctx context.Context, c *Credential) error {
	_, err := p.db.NewUpdate().
		Model((*Credential)(nil)).
		Set("login_attempts = 0").
		Set("login_attempt_at = NULL").
		Where("id = ?", c.ID).
		Exec(ctx)
	return err
}

func (p *Provider) findByEmail(ctx context.Context, email string) (*Credential, error) {
	return p.find(ctx, "email = ?", email)
}

func (p *Provider) findByID(ctx context.Context, id string) (*Credential, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	return p.find(ctx, "id = ?", uid)
}

func (p *Provider) find(ctx context.Context, where string, arg any) (*Credential, error) {
	var credential Credential
	err := p.db.NewSelect().
		Model(&credential).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &credential, nil
}

func networkError(err error) error {
	if err == nil {
		return nil
	}
	return accounts.NewError(accounts.ErrNetwork, map[string]any{"cause": err.Error()})
}

func copyIdentity(identity *accounts.Identity) *accounts.Identity {
	if identity == nil {
		return nil
	}
	c := *identity
	return &c
}
