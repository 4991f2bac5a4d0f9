package accounts

import (
	"context"
	"sync"
)

// Resolution is what a Session reports after an auth state change.
type Resolution struct {
	Access   Access     `json:"access"`
	State    GuardState `json:"state"`
	Decision *Decision  `json:"decision,omitempty"`
}

// Session tracks one signed in page session: it listens to the identity
// provider, resolves access through the Manager and drives the PageGuard.
type Session struct {
	manager    *Manager
	identities IdentityProvider
	guard      *PageGuard
	logger     Logger
	provider   LoggerProvider

	mu     sync.RWMutex
	access *Access
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *Session) {
		s.provider, s.logger = ResolveLogger("accounts.session", nil, logger)
	}
}

// WithSessionLoggerProvider resolves the logger from provider.
func WithSessionLoggerProvider(provider LoggerProvider) SessionOption {
	return func(s *Session) {
		s.provider, s.logger = ResolveLogger("accounts.session", provider, s.logger)
	}
}

// WithSessionGuard replaces the guard built from the manager config.
func WithSessionGuard(guard *PageGuard) SessionOption {
	return func(s *Session) {
		if guard != nil {
			s.guard = guard
		}
	}
}

// NewSession builds a session over manager and identities.
func NewSession(manager *Manager, identities IdentityProvider, opts ...SessionOption) *Session {
	s := &Session{
		manager:    manager,
		identities: identities,
		guard:      NewPageGuard(manager.Config()),
	}
	s.provider, s.logger = ResolveLogger("accounts.session", nil, nil)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Guard returns the session guard.
func (s *Session) Guard() *PageGuard {
	return s.guard
}

// Watch subscribes the session to identity provider callbacks.
func (s *Session) Watch(ctx context.Context) (unsubscribe func()) {
	return s.identities.OnAuthStateChange(func(identity *Identity) {
		if _, err := s.HandleAuthStateChange(ctx, identity); err != nil {
			s.logger.Warn("auth state change not resolved", "error", err)
		}
	})
}

// HandleAuthStateChange resolves the session for identity. A nil identity
// signs the session out.
func (s *Session) HandleAuthStateChange(ctx context.Context, identity *Identity) (Resolution, error) {
	if identity == nil {
		s.clear()
		s.guard.SignedOut()
		return Resolution{State: s.guard.State()}, nil
	}

	s.guard.SignedIn()

	access, err := s.manager.ResolveAccess(ctx, *identity)
	if err != nil {
		s.clear()
		if !IsRevoked(err) {
			return Resolution{Access: access, State: s.guard.State()}, err
		}

		decision := s.guard.Revoke()
		if signOutErr := s.identities.SignOut(ctx); signOutErr != nil {
			s.logger.Warn("sign out after revocation failed", "user_id", identity.ID, "error", signOutErr)
		}
		return Resolution{Access: access, State: decision.State, Decision: &decision}, err
	}

	s.mu.Lock()
	s.access = &access
	s.mu.Unlock()

	if access.Promoted {
		s.logger.Info("session promoted to bootstrap admin", "user_id", identity.ID)
	}
	return Resolution{Access: access, State: s.guard.State()}, nil
}

// SignIn authenticates against the identity provider, resolves access and
// records the login.
func (s *Session) SignIn(ctx context.Context, email, password string) (Resolution, error) {
	identity, err := s.identities.Authenticate(ctx, NormalizeEmail(email), password)
	if err != nil {
		return Resolution{State: s.guard.State()}, err
	}

	resolution, err := s.HandleAuthStateChange(ctx, &identity)
	if err != nil {
		return resolution, err
	}

	if err := s.manager.RecordLogin(ctx, identity); err != nil {
		s.logger.Warn("record login failed", "user_id", identity.ID, "error", err)
	}
	return resolution, nil
}

// SignOut records the logout and signs out of the identity provider.
func (s *Session) SignOut(ctx context.Context) error {
	if access, ok := s.Access(); ok {
		s.manager.RecordLogout(ctx, access.Identity)
	}
	if err := s.identities.SignOut(ctx); err != nil {
		return err
	}
	_, err := s.HandleAuthStateChange(ctx, nil)
	return err
}

// Access returns the resolved access, if any.
func (s *Session) Access() (Access, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.access == nil {
		return Access{}, false
	}
	return *s.access, true
}

// Permissions returns the resolved permissions or an all false set.
func (s *Session) Permissions() Permissions {
	if access, ok := s.Access(); ok {
		return access.Permissions
	}
	return ResolvePermissions(nil, false)
}

// Authorize evaluates path against the session permissions.
func (s *Session) Authorize(path string) Decision {
	return s.guard.Evaluate(path, s.Permissions())
}

func (s *Session) clear() {
	s.mu.Lock()
	s.access = nil
	s.mu.Unlock()
}
