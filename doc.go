// Package accounts implements the account lifecycle and authorization core of a
// small institutional directory console that sits on top of a hosted identity
// provider and a path-addressed document store.
//
// Account lifecycle:
//   - Manager owns every privileged mutation: Bootstrap, CreateAccount,
//     LinkExistingAccount, UpdateRoleAndPermissions, SetDisabled and
//     DeleteAccount. Each operation re-reads the directory before committing so
//     the single-admin cap is checked against the store, never against the
//     cached AdminCount hint.
//   - Records live at users/{id}. Deleting an account removes the directory
//     record only; the identity provider credential stays usable and the next
//     sign-in resolves to ErrNotProvisioned.
//
// Audit trail:
//   - AuditTrail appends entries to adminTrail/{generatedId}. Writes issued by
//     the Manager are detached and best-effort; failures are logged at warn
//     level and never unwind the primary mutation.
//   - TrailReader exposes the trail as a lazy, insertion-ordered sequence.
//
// Authorization:
//   - ResolvePermissions derives the effective capability set from a stored
//     permission document. PageGuard maps routes to required permissions and
//     Session drives both from identity provider callbacks.
//   - Reconcile builds the admin roster, including identities only known from
//     the trail. It is a UI aid and must never back an access decision.
package accounts
