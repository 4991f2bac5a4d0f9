package httpapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const (
	CSRFCookieName = "accounts_csrf"
	CSRFHeaderName = "X-CSRF-Token"

	csrfTokenLength = 32
)

var safeMethods = []string{fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions, fiber.MethodTrace}

var (
	errCSRFMissing = goerrors.New("CSRF token missing", goerrors.CategoryAuthz).
			WithTextCode("CSRF_MISSING").
			WithCode(goerrors.CodeForbidden)

	errCSRFMismatch = goerrors.New("CSRF token mismatch", goerrors.CategoryAuthz).
			WithTextCode("CSRF_MISMATCH").
			WithCode(goerrors.CodeForbidden)
)

func generateCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// checkCSRF enforces the double submit pattern: the header must echo the
// CSRF cookie set at login.
func checkCSRF(c *fiber.Ctx) error {
	if slices.Contains(safeMethods, c.Method()) {
		return nil
	}

	cookie := c.Cookies(CSRFCookieName)
	header := c.Get(CSRFHeaderName)
	if cookie == "" || header == "" {
		return errCSRFMissing
	}
	if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
		return errCSRFMismatch
	}
	return nil
}

func (s *Server) setSessionCookies(c *fiber.Ctx, token string, expires time.Time) error {
	csrfToken, err := generateCSRFToken()
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.secureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		Expires:  expires,
		Secure:   s.secureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return nil
}

func (s *Server) clearSessionCookies(c *fiber.Ctx) {
	c.ClearCookie(SessionCookieName, CSRFCookieName)
}
