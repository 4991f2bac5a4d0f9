package accounts

import (
	"slices"
	"strings"
	"time"
)

// RosterRow is one line of the admin roster.
type RosterRow struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	Role          Role        `json:"role"`
	Permissions   Permissions `json:"permissions,omitempty"`
	IsDisabled    bool        `json:"isDisabled"`
	EmailVerified *bool       `json:"emailVerified,omitempty"`
	CreatedAt     *time.Time  `json:"createdAt,omitempty"`
	// AuthOnly rows have a credential seen in the trail but no record.
	AuthOnly bool `json:"authOnly"`
}

// Roster is the reconciled account listing.
type Roster struct {
	Editable   []RosterRow `json:"editable"`
	AuthOnly   []RosterRow `json:"authOnly"`
	AdminCount int         `json:"adminCount"`
}

// Rows returns editable rows followed by auth-only rows.
func (r Roster) Rows() []RosterRow {
	out := make([]RosterRow, 0, len(r.Editable)+len(r.AuthOnly))
	out = append(out, r.Editable...)
	return append(out, r.AuthOnly...)
}

// Reconcile merges directory records with identities that only appear in the
// audit trail. The caller's own record, admin records and deleted accounts
// are left out and no id or email appears twice.
//
// The trail derived part is a heuristic. It must never feed an access
// decision.
func Reconcile(records map[string]AccountRecord, trail []AuditEntry, currentID string) Roster {
	knownIDs := map[string]struct{}{}
	knownEmails := map[string]struct{}{}
	deletedIDs := map[string]struct{}{}
	deletedEmails := map[string]struct{}{}

	roster := Roster{
		Editable: []RosterRow{},
		AuthOnly: []RosterRow{},
	}

	for id, record := range records {
		knownIDs[id] = struct{}{}
		if email := NormalizeEmail(record.Email); email != "" {
			knownEmails[email] = struct{}{}
		}
		if record.HoldsAdminSeat() {
			roster.AdminCount++
		}

		if record.IsDeleted() {
			deletedIDs[id] = struct{}{}
			continue
		}
		if id == currentID || record.IsAdmin() {
			continue
		}
		roster.Editable = append(roster.Editable, RosterRow{
			ID:            id,
			Email:         record.Email,
			Role:          record.Role,
			Permissions:   record.Permissions.Clone(),
			IsDisabled:    record.IsDisabled,
			EmailVerified: record.EmailVerified,
			CreatedAt:     record.CreatedAt,
		})
	}

	for _, entry := range trail {
		if !strings.EqualFold(entry.Action, ActionDeleteAccount) {
			continue
		}
		if id := firstNonEmpty(entry.EntityID, entry.DetailString("targetUid")); id != "" {
			deletedIDs[id] = struct{}{}
		}
		email := firstNonEmpty(
			entry.DetailString("targetEmail"),
			entry.DetailString("userEmail"),
			emailLike(entry.EntityID),
		)
		if email = NormalizeEmail(email); email != "" {
			deletedEmails[email] = struct{}{}
		}
	}

	for _, entry := range trail {
		if strings.EqualFold(entry.Action, ActionDeleteAccount) {
			continue
		}

		id := strings.TrimSpace(entry.UserID)
		if id == "" || id == currentID {
			continue
		}
		if _, ok := knownIDs[id]; ok {
			continue
		}
		if _, ok := deletedIDs[id]; ok {
			continue
		}

		email := NormalizeEmail(firstNonEmpty(
			entry.UserEmail,
			entry.DetailString("targetEmail"),
			entry.DetailString("userEmail"),
			entry.DetailString("email"),
			emailLike(entry.EntityID),
			emailLike(entry.UserID),
		))
		if email == "" {
			continue
		}
		if _, ok := knownEmails[email]; ok {
			continue
		}
		if _, ok := deletedEmails[email]; ok {
			continue
		}

		knownIDs[id] = struct{}{}
		knownEmails[email] = struct{}{}
		roster.AuthOnly = append(roster.AuthOnly, RosterRow{
			ID:       id,
			Email:    email,
			Role:     RoleUser,
			AuthOnly: true,
		})
	}

	sortRows(roster.Editable)
	sortRows(roster.AuthOnly)
	return roster
}

func sortRows(rows []RosterRow) {
	slices.SortStableFunc(rows, func(a, b RosterRow) int {
		if c := strings.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func emailLike(value string) string {
	if strings.Contains(value, "@") {
		return value
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
