package accounts

import (
	"context"
	"errors"
)

// Access is the resolved authorization of a signed in identity.
type Access struct {
	Identity    Identity       `json:"identity"`
	Record      *AccountRecord `json:"record"`
	Permissions Permissions    `json:"permissions"`
	// Promoted is true when this resolution bootstrapped the first admin.
	Promoted bool `json:"promoted"`
}

// Controls lists the navigation targets visible with this access.
func (a Access) Controls() []string {
	return VisibleControls(a.Permissions)
}

// ResolveAccess bootstraps the first admin when needed, then loads the
// identity's record and resolves its permissions. Missing, disabled and
// soft deleted records yield ErrNotProvisioned, ErrAccountDisabled and
// ErrAccountDeleted.
func (m *Manager) ResolveAccess(ctx context.Context, identity Identity) (Access, error) {
	access := Access{Identity: identity, Permissions: ResolvePermissions(nil, false)}

	record, promoted, err := m.Bootstrap(ctx, identity)
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		// not eligible for bootstrap, fall back to a plain lookup
		m.logger.Debug("bootstrap skipped", "user_id", identity.ID, "error", err)
		if record, err = m.directory.Account(ctx, identity.ID); err != nil {
			return access, err
		}
	default:
		return access, err
	}

	if err := checkRecord(identity.ID, record); err != nil {
		return access, err
	}

	access.Record = record
	access.Promoted = promoted
	access.Permissions = ResolvePermissions(record.Permissions, record.IsAdmin())
	return access, nil
}

func checkRecord(id string, record *AccountRecord) error {
	switch {
	case record == nil:
		return NewError(ErrNotProvisioned, map[string]any{"id": id})
	case record.IsDeleted():
		return NewError(ErrAccountDeleted, map[string]any{"id": id})
	case record.IsDisabled:
		return NewError(ErrAccountDisabled, map[string]any{"id": id})
	}
	return nil
}

// IsRevoked reports whether err means the principal lost access.
func IsRevoked(err error) bool {
	return errors.Is(err, ErrNotProvisioned) ||
		errors.Is(err, ErrAccountDisabled) ||
		errors.Is(err, ErrAccountDeleted)
}
