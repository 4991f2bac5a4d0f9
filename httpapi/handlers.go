package httpapi

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/trailmap"
)

var errBadBody = goerrors.New("invalid JSON body", goerrors.CategoryBadInput).
	WithTextCode("BAD_JSON").
	WithCode(goerrors.CodeBadRequest)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
	IdentityID      string `json:"identity_id"`
}

type updateRequest struct {
	Role        string         `json:"role"`
	Permissions map[string]any `json:"permissions"`
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	ctx := c.UserContext()
	identity, err := s.authenticator.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}

	access, err := s.manager.ResolveAccess(ctx, identity)
	if err != nil {
		return err
	}
	if err := s.manager.RecordLogin(ctx, identity); err != nil {
		s.logger.Warn("record login failed", "user_id", identity.ID, "error", err)
	}

	token, expires, err := s.tokens.Issue(identity)
	if err != nil {
		return err
	}
	if err := s.setSessionCookies(c, token, expires); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expires,
		"access":     access,
		"controls":   access.Controls(),
	})
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	record, err := s.manager.Register(c.UserContext(), accounts.CreateAccountInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"account": record})
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	access, _ := accessFrom(c)
	return c.JSON(fiber.Map{
		"access":   access,
		"controls": access.Controls(),
	})
}

func (s *Server) handleGuard(c *fiber.Ctx) error {
	access, _ := accessFrom(c)
	guard := accounts.NewPageGuard(s.manager.Config())
	guard.SignedIn()
	return c.JSON(guard.Evaluate(c.Query("path", "/"), access.Permissions))
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	access, _ := accessFrom(c)
	s.manager.RecordLogout(c.UserContext(), access.Identity)
	s.clearSessionCookies(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListAccounts(c *fiber.Ctx) error {
	access, _ := accessFrom(c)
	roster, err := s.manager.Listing(c.UserContext(), access.Identity.Actor())
	if err != nil {
		return err
	}
	return c.JSON(roster)
}

func (s *Server) handleCreateAccount(c *fiber.Ctx) error {
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	access, _ := accessFrom(c)
	// a pre-supplied identity id answers the link prompt
	ctx := accounts.WithPrompter(c.UserContext(), accounts.StaticPrompter{Input: strings.TrimSpace(req.IdentityID)})

	result, err := s.manager.CreateOrLink(ctx, access.Identity.Actor(), accounts.CreateAccountInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            accounts.NormalizeRole(req.Role),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (s *Server) handleLinkAccount(c *fiber.Ctx) error {
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	access, _ := accessFrom(c)
	record, err := s.manager.LinkExistingAccount(c.UserContext(), access.Identity.Actor(), accounts.LinkAccountInput{
		Email:      req.Email,
		Role:       accounts.NormalizeRole(req.Role),
		IdentityID: req.IdentityID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"account": record})
}

func (s *Server) handleUpdateAccount(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	role, ok := accounts.ParseRole(req.Role)
	if !ok {
		return accounts.NewError(accounts.ErrValidation, map[string]any{
			"fields": map[string]string{"role": "must be admin or user"},
		})
	}

	access, _ := accessFrom(c)
	record, err := s.manager.UpdateRoleAndPermissions(c.UserContext(), access.Identity.Actor(), c.Params("id"), role, req.Permissions)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"account": record})
}

func (s *Server) handleSetDisabled(disabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req confirmRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadBody
			}
		}

		access, _ := accessFrom(c)
		ctx := accounts.WithPrompter(c.UserContext(), accounts.StaticPrompter{Confirmed: req.Confirm})
		record, err := s.manager.SetDisabled(ctx, access.Identity.Actor(), c.Params("id"), disabled)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"account": record})
	}
}

func (s *Server) handleDeleteAccount(c *fiber.Ctx) error {
	access, _ := accessFrom(c)
	ctx := accounts.WithPrompter(c.UserContext(), accounts.StaticPrompter{Confirmed: c.QueryBool("confirm")})
	if err := s.manager.DeleteAccount(ctx, access.Identity.Actor(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleTrail(c *fiber.Ctx) error {
	filter := accounts.TrailFilter{
		Actions: splitQuery(c.Query("action")),
		UserID:  c.Query("user_id"),
	}
	for _, category := range splitQuery(c.Query("category")) {
		filter.Categories = append(filter.Categories, accounts.Category(strings.ToUpper(category)))
	}
	for _, severity := range splitQuery(c.Query("severity")) {
		filter.Severities = append(filter.Severities, accounts.Severity(strings.ToUpper(severity)))
	}

	seq, err := s.trail.Entries(c.UserContext(), filter)
	if err != nil {
		return err
	}
	entries := slices.Collect(seq)

	if c.Query("format") == "activity" {
		return c.JSON(fiber.Map{"entries": trailmap.NormalizeAll(entries)})
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func splitQuery(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
