package accounts

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

var (
	ErrValidation = goerrors.New("account input is invalid", goerrors.CategoryValidation).
			WithTextCode("VALIDATION_ERROR").
			WithCode(goerrors.CodeBadRequest)

	ErrAdminLimitExceeded = goerrors.New("only one administrator account is allowed", goerrors.CategoryConflict).
				WithTextCode("ADMIN_LIMIT_EXCEEDED").
				WithCode(goerrors.CodeConflict)

	ErrSelfDemotionBlocked = goerrors.New("you cannot remove your own administrator role", goerrors.CategoryAuthz).
				WithTextCode("SELF_DEMOTION_BLOCKED").
				WithCode(goerrors.CodeForbidden)

	ErrSelfModificationBlocked = goerrors.New("you cannot disable or delete your own account", goerrors.CategoryAuthz).
					WithTextCode("SELF_MODIFICATION_BLOCKED").
					WithCode(goerrors.CodeForbidden)

	ErrAlreadyLinked = goerrors.New("identity already has a directory profile", goerrors.CategoryConflict).
				WithTextCode("ALREADY_LINKED").
				WithCode(goerrors.CodeConflict)

	ErrNotProvisioned = goerrors.New("account has no directory profile", goerrors.CategoryAuthz).
				WithTextCode("NOT_PROVISIONED").
				WithCode(goerrors.CodeForbidden)

	ErrAccountDisabled = goerrors.New("account is disabled", goerrors.CategoryAuthz).
				WithTextCode("ACCOUNT_DISABLED").
				WithCode(goerrors.CodeForbidden)

	ErrAccountDeleted = goerrors.New("account was deleted", goerrors.CategoryAuthz).
				WithTextCode("ACCOUNT_DELETED").
				WithCode(goerrors.CodeForbidden)

	ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
				WithTextCode("ACCOUNT_NOT_FOUND").
				WithCode(goerrors.CodeNotFound)

	ErrNotAuthorized = goerrors.New("administrator access is required", goerrors.CategoryAuthz).
				WithTextCode("NOT_AUTHORIZED").
				WithCode(goerrors.CodeForbidden)

	ErrStoreUnavailable = goerrors.New("directory store is unavailable", goerrors.CategoryOperation).
				WithTextCode("STORE_UNAVAILABLE").
				WithCode(http.StatusServiceUnavailable)

	ErrAuditWriteFailed = goerrors.New("audit trail write failed", goerrors.CategoryOperation).
				WithTextCode("AUDIT_WRITE_FAILED").
				WithCode(goerrors.CodeInternal)

	ErrCancelled = goerrors.New("operation cancelled", goerrors.CategoryBadInput).
			WithTextCode("CANCELLED").
			WithCode(goerrors.CodeBadRequest)

	ErrOperationInProgress = goerrors.New("operation already in progress", goerrors.CategoryConflict).
				WithTextCode("OPERATION_IN_PROGRESS").
				WithCode(http.StatusTooManyRequests)

	ErrRegistrationClosed = goerrors.New("registration is closed", goerrors.CategoryAuthz).
				WithTextCode("REGISTRATION_CLOSED").
				WithCode(goerrors.CodeForbidden)

	ErrInvalidPath = goerrors.New("invalid directory path", goerrors.CategoryBadInput).
			WithTextCode("INVALID_PATH").
			WithCode(goerrors.CodeBadRequest)
)

// Identity provider failures. Adapters translate their native errors into
// these so callers can branch with errors.Is.
var (
	ErrEmailAlreadyInUse = goerrors.New("email already has a credential", goerrors.CategoryConflict).
				WithTextCode("EMAIL_ALREADY_IN_USE").
				WithCode(goerrors.CodeConflict)

	ErrInvalidEmail = goerrors.New("email address is invalid", goerrors.CategoryValidation).
			WithTextCode("INVALID_EMAIL").
			WithCode(goerrors.CodeBadRequest)

	ErrWeakPassword = goerrors.New("password is too weak", goerrors.CategoryValidation).
			WithTextCode("WEAK_PASSWORD").
			WithCode(goerrors.CodeBadRequest)

	ErrNetwork = goerrors.New("identity provider is unreachable", goerrors.CategoryOperation).
			WithTextCode("NETWORK_ERROR").
			WithCode(http.StatusBadGateway)

	ErrInvalidCredential = goerrors.New("invalid email or password", goerrors.CategoryAuth).
				WithTextCode("INVALID_CREDENTIAL").
				WithCode(goerrors.CodeUnauthorized)

	ErrUserDisabled = goerrors.New("credential is disabled", goerrors.CategoryAuth).
			WithTextCode("USER_DISABLED").
			WithCode(goerrors.CodeForbidden)

	ErrTooManyRequests = goerrors.New("too many attempts, try again later", goerrors.CategoryAuth).
				WithTextCode("TOO_MANY_REQUESTS").
				WithCode(http.StatusTooManyRequests)
)

// NewError clones sentinel, keeps it as the source so errors.Is still
// matches, and attaches metadata.
func NewError(sentinel *goerrors.Error, metadata map[string]any) error {
	return derive(sentinel, "", metadata)
}

func derive(sentinel *goerrors.Error, message string, metadata map[string]any) error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	if message != "" {
		clone.Message = message
	}
	clone.Source = sentinel
	if len(metadata) == 0 {
		return clone
	}
	return clone.WithMetadata(metadata)
}

func adminLimitError(email string, seats, limit int) error {
	return derive(ErrAdminLimitExceeded,
		fmt.Sprintf("only %d administrator account(s) allowed", limit),
		map[string]any{"email": email, "admin_count": seats, "limit": limit},
	)
}

func storeError(err error, op, path string) error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == ErrInvalidPath.TextCode {
		return err
	}
	return derive(ErrStoreUnavailable,
		fmt.Sprintf("directory %s %s failed: %v", op, path, err),
		map[string]any{"op": op, "path": path, "cause": err.Error()},
	)
}

// providerError keeps rich provider errors intact and wraps anything else.
func providerError(err error, message string) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, message)
}
