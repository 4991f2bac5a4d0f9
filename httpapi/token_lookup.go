package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// DefaultTokenLookup reads the bearer header first, then the session cookie.
	DefaultTokenLookup = "header:" + fiber.HeaderAuthorization + ",cookie:" + SessionCookieName

	SessionCookieName = "accounts_session"
	authScheme        = "Bearer"
)

// tokenSource says where a token was found. Cookie borne tokens need the
// CSRF double submit check on unsafe methods.
type tokenSource int

const (
	sourceNone tokenSource = iota
	sourceHeader
	sourceCookie
	sourceQuery
)

type tokenExtractor func(c *fiber.Ctx) (string, tokenSource)

// tokenExtractors parses lookups of the form
// "header:Authorization,cookie:accounts_session,query:token".
func tokenExtractors(lookup string) []tokenExtractor {
	if strings.TrimSpace(lookup) == "" {
		lookup = DefaultTokenLookup
	}

	extractors := []tokenExtractor{}
	for _, part := range strings.Split(lookup, ",") {
		kind, name, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)

		switch strings.TrimSpace(kind) {
		case "header":
			extractors = append(extractors, tokenFromHeader(name))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		case "query":
			extractors = append(extractors, tokenFromQuery(name))
		}
	}
	return extractors
}

func extractToken(c *fiber.Ctx, extractors []tokenExtractor) (string, tokenSource) {
	for _, extract := range extractors {
		if token, source := extract(c); token != "" {
			return token, source
		}
	}
	return "", sourceNone
}

func tokenFromHeader(header string) tokenExtractor {
	return func(c *fiber.Ctx) (string, tokenSource) {
		value := strings.TrimSpace(c.Get(header))
		l := len(authScheme)
		if len(value) > l+1 && strings.EqualFold(value[:l], authScheme) {
			return strings.TrimSpace(value[l:]), sourceHeader
		}
		return "", sourceNone
	}
}

func tokenFromCookie(name string) tokenExtractor {
	return func(c *fiber.Ctx) (string, tokenSource) {
		if token := strings.TrimSpace(c.Cookies(name)); token != "" {
			return token, sourceCookie
		}
		return "", sourceNone
	}
}

func tokenFromQuery(param string) tokenExtractor {
	return func(c *fiber.Ctx) (string, tokenSource) {
		if token := strings.TrimSpace(c.Query(param)); token != "" {
			return token, sourceQuery
		}
		return "", sourceNone
	}
}
