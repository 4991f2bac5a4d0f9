// Package bunstore persists the directory in a SQL table through bun. Each
// node below a collection is one row holding its JSON document.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	accounts "github.com/goliatone/go-accounts"
)

// DocumentModel is one directory node.
type DocumentModel struct {
	bun.BaseModel `bun:"table:directory_documents,alias:dd"`

	Collection string         `bun:"doc_collection,pk"`
	Key        string         `bun:"doc_key,pk"`
	Data       map[string]any `bun:"data,type:jsonb"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Store implements accounts.DirectoryStore on bun.
type Store struct {
	db  bun.IDB
	now func() time.Time
}

var _ accounts.DirectoryStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store over db.
func New(db bun.IDB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// OpenSQLite opens a sqlite database through the shim driver, which picks a
// cgo or pure Go driver depending on the build.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection also keeps :memory: shared
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Migrate creates the documents table.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*DocumentModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *Store) Get(ctx context.Context, path string) (accounts.Document, bool, error) {
	collection, key, err := accounts.SplitPath(path)
	if err != nil {
		return nil, false, err
	}

	if key != "" {
		model, err := s.find(ctx, s.db, collection, key)
		if err != nil {
			return nil, false, err
		}
		if model == nil {
			return nil, false, nil
		}
		return accounts.CloneDocument(model.Data), true, nil
	}

	var models []DocumentModel
	err = s.db.NewSelect().
		Model(&models).
		Where("doc_collection = ?", collection).
		Order("doc_key ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	if len(models) == 0 {
		return nil, false, nil
	}

	out := make(accounts.Document, len(models))
	for _, model := range models {
		out[model.Key] = accounts.CloneDocument(model.Data)
	}
	return out, true, nil
}

func (s *Store) Update(ctx context.Context, path string, partial accounts.Document) error {
	collection, key, err := accounts.SplitPath(path)
	if err != nil {
		return err
	}
	if key == "" {
		return accounts.NewError(accounts.ErrInvalidPath, map[string]any{"path": path, "reason": "update needs a key"})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.find(ctx, tx, collection, key)
		if err != nil {
			return err
		}

		var base accounts.Document
		if existing != nil {
			base = existing.Data
		}
		merged := accounts.MergeDocument(base, partial)

		if len(merged) == 0 {
			return s.delete(ctx, tx, collection, key)
		}
		return s.upsert(ctx, tx, &DocumentModel{
			Collection: collection,
			Key:        key,
			Data:       merged,
			CreatedAt:  s.now(),
			UpdatedAt:  s.now(),
		})
	})
}

func (s *Store) Remove(ctx context.Context, path string) error {
	collection, key, err := accounts.SplitPath(path)
	if err != nil {
		return err
	}
	if key == "" {
		_, err := s.db.NewDelete().
			Model((*DocumentModel)(nil)).
			Where("doc_collection = ?", collection).
			Exec(ctx)
		return err
	}
	return s.delete(ctx, s.db, collection, key)
}

func (s *Store) Push(ctx context.Context, collection string, doc accounts.Document) (string, error) {
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

	data := accounts.CloneDocument(doc)
	if data == nil {
		data = accounts.Document{}
	}
	_, err = s.db.NewInsert().
		Model(&DocumentModel{
			Collection: name,
			Key:        id.String(),
			Data:       data,
			CreatedAt:  s.now(),
			UpdatedAt:  s.now(),
		}).
		Exec(ctx)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) find(ctx context.Context, db bun.IDB, collection, key string) (*DocumentModel, error) {
	var model DocumentModel
	err := db.NewSelect().
		Model(&model).
		Where("doc_collection = ? AND doc_key = ?", collection, key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &model, nil
}

func (s *Store) upsert(ctx context.Context, db bun.IDB, model *DocumentModel) error {
	_, err := db.NewInsert().
		Model(model).
		On("CONFLICT (doc_collection, doc_key) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) delete(ctx context.Context, db bun.IDB, collection, key string) error {
	_, err := db.NewDelete().
		Model((*DocumentModel)(nil)).
		Where("doc_collection = ? AND doc_key = ?", collection, key).
		Exec(ctx)
	return err
}
