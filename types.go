package accounts

import "context"

// DirectoryStore is a hierarchical document store addressed by
// "collection" or "collection/key" paths.
type DirectoryStore interface {
	// Get returns the node at path. Reading a collection returns a document
	// keyed by child key. The bool is false when nothing is stored there.
	Get(ctx context.Context, path string) (Document, bool, error)
	// Update shallow merges partial into the node at path, creating it when
	// missing. A nil value removes the key.
	Update(ctx context.Context, path string, partial Document) error
	// Remove deletes the node at path and everything below it.
	Remove(ctx context.Context, path string) error
	// Push appends doc under collection with a generated, time ordered key.
	Push(ctx context.Context, collection string, doc Document) (string, error)
}

// IdentityProvider is the hosted credential authority.
type IdentityProvider interface {
	CreateCredential(ctx context.Context, email, password string) (Identity, error)
	Authenticate(ctx context.Context, email, password string) (Identity, error)
	SendVerification(ctx context.Context, identity Identity) error
	SignOut(ctx context.Context) error
	// OnAuthStateChange registers fn for sign in and sign out transitions. A
	// nil identity means signed out. The returned func unsubscribes.
	OnAuthStateChange(fn func(*Identity)) func()
}

// NotifyKind classifies a user facing notice.
type NotifyKind string

const (
	NotifyInfo    NotifyKind = "info"
	NotifySuccess NotifyKind = "success"
	NotifyWarning NotifyKind = "warning"
	NotifyError   NotifyKind = "error"
)

// InputSpec describes a free form prompt.
type InputSpec struct {
	Title       string
	Message     string
	Label       string
	Placeholder string
	MinLength   int
}

// Prompter is the interactive surface used for confirmations and notices.
type Prompter interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
	Notify(ctx context.Context, kind NotifyKind, title, message string)
	// PromptForInput returns the trimmed answer. ok is false on cancel.
	PromptForInput(ctx context.Context, spec InputSpec) (value string, ok bool, err error)
}

// StaticPrompter answers prompts from preset values. It is what request
// driven surfaces use, where the caller confirmed before submitting.
type StaticPrompter struct {
	Confirmed bool
	Input     string
}

func (p StaticPrompter) Confirm(context.Context, string, string) (bool, error) {
	return p.Confirmed, nil
}

func (p StaticPrompter) Notify(context.Context, NotifyKind, string, string) {}

func (p StaticPrompter) PromptForInput(context.Context, InputSpec) (string, bool, error) {
	if p.Input == "" {
		return "", false, nil
	}
	return p.Input, true, nil
}
