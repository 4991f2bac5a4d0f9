package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	accounts "github.com/goliatone/go-accounts"
)

const accessLocalsKey = "accounts.access"

var (
	errMissingToken = goerrors.New("missing bearer token", goerrors.CategoryAuth).
			WithTextCode("MISSING_TOKEN").
			WithCode(goerrors.CodeUnauthorized)

	errPermissionDenied = goerrors.New("permission denied", goerrors.CategoryAuthz).
				WithTextCode("PERMISSION_DENIED").
				WithCode(goerrors.CodeForbidden)
)

func loggingMiddleware(logger accounts.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now().UTC()
		err := c.Next()
		logger.Debug("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"dur", time.Since(start),
		)
		return err
	}
}

// requireSession verifies the session token and resolves access on every
// request so revocations apply immediately.
func (s *Server) requireSession(c *fiber.Ctx) error {
	token, source := extractToken(c, s.extractors)
	if token == "" {
		return errMissingToken
	}
	if source == sourceCookie {
		if err := checkCSRF(c); err != nil {
			return err
		}
	}

	identity, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}

	access, err := s.manager.ResolveAccess(c.UserContext(), identity)
	if err != nil {
		return err
	}

	c.Locals(accessLocalsKey, access)
	c.SetUserContext(accounts.WithActor(c.UserContext(), identity.Actor()))
	return c.Next()
}

func requirePermission(key accounts.PermissionKey) fiber.Handler {
	return func(c *fiber.Ctx) error {
		access, ok := accessFrom(c)
		if !ok || !access.Permissions.Allows(key) {
			return accounts.NewError(errPermissionDenied, map[string]any{
				"permission": string(key),
				"message":    accounts.PermissionMessage(key),
			})
		}
		return c.Next()
	}
}

func accessFrom(c *fiber.Ctx) (accounts.Access, bool) {
	access, ok := c.Locals(accessLocalsKey).(accounts.Access)
	return access, ok
}

func errorHandler(logger accounts.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			status := rich.Code
			if status < 400 || status > 599 {
				status = fiber.StatusInternalServerError
			}
			if status >= fiber.StatusInternalServerError {
				logger.Error("request failed", "path", c.Path(), "error", err)
			}
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{
					"message":   rich.Message,
					"text_code": rich.TextCode,
					"category":  rich.Category,
					"metadata":  rich.Metadata,
				},
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": fiber.Map{"message": fe.Message},
			})
		}

		logger.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{"message": "internal error"},
		})
	}
}
