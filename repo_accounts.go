package accounts

import (
	"context"
	"sort"
)

// Directory is the typed view of the account and trail collections.
type Directory interface {
	Account(ctx context.Context, id string) (*AccountRecord, error)
	Accounts(ctx context.Context) (map[string]AccountRecord, error)
	WriteAccount(ctx context.Context, id string, partial Document) error
	RemoveAccount(ctx context.Context, id string) error
	HasAccounts(ctx context.Context) (bool, error)

	AppendEntry(ctx context.Context, entry AuditEntry) (string, error)
	Entries(ctx context.Context) ([]AuditEntry, error)
}

type directory struct {
	store DirectoryStore
}

var _ Directory = (*directory)(nil)

// NewDirectory wraps a DirectoryStore.
func NewDirectory(store DirectoryStore) Directory {
	return &directory{store: store}
}

// Account returns nil, nil when no record exists.
func (d *directory) Account(ctx context.Context, id string) (*AccountRecord, error) {
	path := UserPath(id)
	doc, ok, err := d.store.Get(ctx, path)
	if err != nil {
		return nil, storeError(err, "get", path)
	}
	if !ok {
		return nil, nil
	}
	record := AccountFromDocument(id, doc)
	return &record, nil
}

func (d *directory) Accounts(ctx context.Context) (map[string]AccountRecord, error) {
	doc, ok, err := d.store.Get(ctx, CollectionUsers)
	if err != nil {
		return nil, storeError(err, "get", CollectionUsers)
	}

	out := map[string]AccountRecord{}
	if !ok {
		return out, nil
	}
	for id, raw := range doc {
		child := asMap(raw)
		if child == nil {
			continue
		}
		out[id] = AccountFromDocument(id, child)
	}
	return out, nil
}

func (d *directory) WriteAccount(ctx context.Context, id string, partial Document) error {
	path := UserPath(id)
	if err := d.store.Update(ctx, path, partial); err != nil {
		return storeError(err, "update", path)
	}
	return nil
}

func (d *directory) RemoveAccount(ctx context.Context, id string) error {
	path := UserPath(id)
	if err := d.store.Remove(ctx, path); err != nil {
		return storeError(err, "remove", path)
	}
	return nil
}

func (d *directory) HasAccounts(ctx context.Context) (bool, error) {
	_, ok, err := d.store.Get(ctx, CollectionUsers)
	if err != nil {
		return false, storeError(err, "get", CollectionUsers)
	}
	return ok, nil
}

func (d *directory) AppendEntry(ctx context.Context, entry AuditEntry) (string, error) {
	id, err := d.store.Push(ctx, CollectionTrail, entry.Document())
	if err != nil {
		return "", storeError(err, "push", CollectionTrail)
	}
	return id, nil
}

// Entries returns the trail in insertion order. Push keys are time ordered so
// key order is insertion order.
func (d *directory) Entries(ctx context.Context) ([]AuditEntry, error) {
	doc, ok, err := d.store.Get(ctx, CollectionTrail)
	if err != nil {
		return nil, storeError(err, "get", CollectionTrail)
	}
	if !ok {
		return nil, nil
	}

	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]AuditEntry, 0, len(keys))
	for _, key := range keys {
		child := asMap(doc[key])
		if child == nil {
			continue
		}
		out = append(out, AuditEntryFromDocument(key, child))
	}
	return out, nil
}

func countAdminSeats(records map[string]AccountRecord) int {
	seats := 0
	for _, record := range records {
		if record.HoldsAdminSeat() {
			seats++
		}
	}
	return seats
}
