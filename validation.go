package accounts

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccountInput is the payload of CreateAccount and CreateOrLink.
type CreateAccountInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            Role   `json:"role"`
}

func (in CreateAccountInput) normalized() CreateAccountInput {
	in.Email = NormalizeEmail(in.Email)
	in.Role = NormalizeRole(string(in.Role))
	return in
}

// Validate checks the input against the account policy.
func (in CreateAccountInput) Validate(cfg Config) error {
	cfg = cfg.normalized()
	return validationError(validation.ValidateStruct(&in,
		validation.Field(&in.Email, emailRules(cfg)...),
		validation.Field(&in.Password,
			validation.Required.Error("password is required"),
			validation.Length(cfg.MinPasswordLength, cfg.MaxPasswordLength),
		),
		validation.Field(&in.ConfirmPassword,
			validation.By(matches(in.Password, "passwords do not match")),
		),
	))
}

// LinkAccountInput is the payload of LinkExistingAccount.
type LinkAccountInput struct {
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	IdentityID string `json:"identity_id"`
}

func (in LinkAccountInput) normalized() LinkAccountInput {
	in.Email = NormalizeEmail(in.Email)
	in.Role = NormalizeRole(string(in.Role))
	in.IdentityID = strings.TrimSpace(in.IdentityID)
	return in
}

// Validate checks the input against the account policy.
func (in LinkAccountInput) Validate(cfg Config) error {
	cfg = cfg.normalized()
	return validationError(validation.ValidateStruct(&in,
		validation.Field(&in.Email, emailRules(cfg)...),
		validation.Field(&in.IdentityID,
			validation.Required.Error("identity id is required"),
			validation.Length(cfg.MinIdentityIDLength, 0).Error("identity id looks too short"),
		),
	))
}

// ValidateEmail checks a single address against the account policy.
func ValidateEmail(cfg Config, email string) error {
	cfg = cfg.normalized()
	if err := validation.Validate(NormalizeEmail(email), emailRules(cfg)...); err != nil {
		return NewError(ErrValidation, map[string]any{
			"fields": map[string]string{"email": err.Error()},
		})
	}
	return nil
}

func emailRules(cfg Config) []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("email is required"),
		validation.Length(1, cfg.MaxEmailLength),
		is.Email.Error("must be a valid email address"),
		validation.By(hasDomain(cfg.Domain)),
	}
}

func hasDomain(domain string) validation.RuleFunc {
	return func(value any) error {
		email, _ := value.(string)
		if email == "" {
			return nil
		}
		if !strings.HasSuffix(NormalizeEmail(email), domain) {
			return errors.New("email must end with " + domain)
		}
		return nil
	}
}

// matches skips empty values like the ozzo string rules, so an omitted
// confirmation passes.
func matches(expected, message string) validation.RuleFunc {
	return func(value any) error {
		actual, _ := value.(string)
		if actual != "" && actual != expected {
			return errors.New(message)
		}
		return nil
	}
}

func validationError(err error) error {
	if err == nil {
		return nil
	}

	fields := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
	} else {
		fields["_"] = err.Error()
	}

	return derive(ErrValidation, err.Error(), map[string]any{"fields": fields})
}
