// Package store provides durable key-value persistence on SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("store: key not found")

type Store struct {
	sqldb *sql.DB
	db    *bun.DB
}

// Entry is one stored value. Revision increases on every write of the key.
type Entry struct {
	bun.BaseModel `bun:"table:kv,alias:kv"`

	Key       string `bun:"key,pk"`
	Value     []byte `bun:"value,notnull"`
	Revision  int64  `bun:"revision,notnull"`
	UpdatedAt string `bun:"updated_at,notnull"`
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("DB_PATH is required")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	sqldb, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := sqldb.PingContext(ctx); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("ping db: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	if err := initSchema(ctx, sqldb); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("init schema: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	bdb := bun.NewDB(sqldb, sqlitedialect.New())
	return &Store{sqldb: sqldb, db: bdb}, nil
}

func (s *Store) Close() error { return s.sqldb.Close() }

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
PRAGMA journal_mode = WAL;
PRAGMA busy_timeout = 5000;
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	revision INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Get returns the entry stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (Entry, error) {
	var e Entry
	err := s.db.NewSelect().
		Model(&e).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Put writes value under key and returns the new revision.
func (s *Store) Put(ctx context.Context, key string, value []byte) (int64, error) {
	e := Entry{
		Key:       key,
		Value:     value,
		Revision:  1,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	_, err := s.db.NewInsert().
		Model(&e).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("revision = kv.revision + 1").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return s.Revision(ctx, key)
}

// Revision returns the current revision of key, 0 when it does not exist.
func (s *Store) Revision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.NewSelect().
		Table("kv").
		Column("revision").
		Where("key = ?", key).
		Scan(ctx, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.NewDelete().
		Table("kv").
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRowsAffected(res)
}

func expectRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
