// Package memory is an in-process DirectoryStore.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	accounts "github.com/goliatone/go-accounts"
)

// Store keeps collections in maps guarded by a RWMutex. Every read and write
// deep copies so callers never share state with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]accounts.Document
	failures    map[string]error
}

var _ accounts.DirectoryStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: map[string]map[string]accounts.Document{},
		failures:    map[string]error{},
	}
}

// FailWith makes every operation on collection return err until cleared with
// a nil err. It exists to exercise store outages.
func (s *Store) FailWith(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, collection)
		return
	}
	s.failures[collection] = err
}

func (s *Store) Get(ctx context.Context, path string) (accounts.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	collection, key, err := accounts.SplitPath(path)
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[collection]; err != nil {
		return nil, false, err
	}

	docs, ok := s.collections[collection]
	if !ok || len(docs) == 0 {
		return nil, false, nil
	}

	if key != "" {
		doc, ok := docs[key]
		if !ok {
			return nil, false, nil
		}
		return accounts.CloneDocument(doc), true, nil
	}

	out := make(accounts.Document, len(docs))
	for k, doc := range docs {
		out[k] = accounts.CloneDocument(doc)
	}
	return out, true, nil
}

func (s *Store) Update(ctx context.Context, path string, partial accounts.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, key, err := accounts.SplitPath(path)
	if err != nil {
		return err
	}
	if key == "" {
		return accounts.NewError(accounts.ErrInvalidPath, map[string]any{"path": path, "reason": "update needs a key"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures[collection]; err != nil {
		return err
	}

	docs, ok := s.collections[collection]
	if !ok {
		docs = map[string]accounts.Document{}
		s.collections[collection] = docs
	}

	merged := accounts.MergeDocument(docs[key], partial)
	if len(merged) == 0 {
		delete(docs, key)
		return nil
	}
	docs[key] = merged
	return nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, key, err := accounts.SplitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures[collection]; err != nil {
		return err
	}

	if key == "" {
		delete(s.collections, collection)
		return nil
	}
	if docs, ok := s.collections[collection]; ok {
		delete(docs, key)
	}
	return nil
}

func (s *Store) Push(ctx context.Context, collection string, doc accounts.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, key, err := accounts.SplitPath(collection)
	if err != nil {
		return "", err
	}
	if key != "" {
		return "", accounts.NewError(accounts.ErrInvalidPath, map[string]any{"path": collection, "reason": "push needs a collection"})
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures[name]; err != nil {
		return "", err
	}

	docs, ok := s.collections[name]
	if !ok {
		docs = map[string]accounts.Document{}
		s.collections[name] = docs
	}
	docs[id.String()] = accounts.CloneDocument(doc)
	return id.String(), nil
}
