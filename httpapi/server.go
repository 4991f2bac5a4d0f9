// Package httpapi exposes the account console over HTTP.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	accounts "github.com/goliatone/go-accounts"
)

// Authenticator checks credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (accounts.Identity, error)
}

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	Issue(identity accounts.Identity) (string, time.Time, error)
	Verify(token string) (accounts.Identity, error)
}

type Dependencies struct {
	Logger        accounts.Logger
	Addr          string
	Manager       *accounts.Manager
	Trail         *accounts.TrailReader
	Authenticator Authenticator
	Tokens        TokenService
	// TokenLookup lists where bearer tokens are read from, see
	// DefaultTokenLookup.
	TokenLookup   string
	SecureCookies bool
}

type Server struct {
	app           *fiber.App
	addr          string
	logger        accounts.Logger
	manager       *accounts.Manager
	trail         *accounts.TrailReader
	authenticator Authenticator
	tokens        TokenService
	extractors    []tokenExtractor
	secureCookies bool
}

func NewServer(d Dependencies) *Server {
	_, logger := accounts.ResolveLogger("accounts.http", nil, d.Logger)

	s := &Server{
		addr:          d.Addr,
		logger:        logger,
		manager:       d.Manager,
		trail:         d.Trail,
		authenticator: d.Authenticator,
		tokens:        d.Tokens,
		extractors:    tokenExtractors(d.TokenLookup),
		secureCookies: d.SecureCookies,
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		ReadTimeout:           10 * time.Second,
	})
	s.app.Use(loggingMiddleware(logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Post("/login", s.handleLogin)
	api.Post("/register", s.handleRegister)

	api.Get("/me", s.requireSession, s.handleMe)
	api.Get("/guard", s.requireSession, s.handleGuard)
	api.Post("/logout", s.requireSession, s.handleLogout)
	api.Get("/trail", s.requireSession, requirePermission(accounts.PermissionViewAdminTrail), s.handleTrail)

	manage := api.Group("/accounts", s.requireSession, requirePermission(accounts.PermissionManageAccounts))
	manage.Get("/", s.handleListAccounts)
	manage.Post("/", s.handleCreateAccount)
	manage.Post("/link", s.handleLinkAccount)
	manage.Put("/:id", s.handleUpdateAccount)
	manage.Post("/:id/disable", s.handleSetDisabled(true))
	manage.Post("/:id/enable", s.handleSetDisabled(false))
	manage.Delete("/:id", s.handleDeleteAccount)
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Start() error {
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
