// Package sqlkv is a store.KV on database/sql. One table holds one encoded
// record per collection; SQLite (modernc.org/sqlite) and Postgres (pgx)
// share the same statements.
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/store"
)

// Drivers accepted by Open and New.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// payload is TEXT rather than JSONB: JSONB reorders object keys, and entry
// order is part of a collection.
const ddl = `CREATE TABLE IF NOT EXISTS collections (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL
)`

// KV implements store.KV on a *sql.DB.
type KV struct {
	db       *sql.DB
	numbered bool // $n placeholders instead of ?
}

var _ store.KV = (*KV)(nil)

// Open connects to driver ("sqlite" or "postgres") at dsn and ensures the
// table exists. For SQLite the dsn is a file path whose directory is created.
func Open(ctx context.Context, driver, dsn string) (*KV, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite"
		if dsn == "" {
			dsn = "hayabib.db"
		}
		if path := sqlitePath(dsn); path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	case DriverPostgres:
		sqlDriver = "pgx"
		if dsn == "" {
			return nil, errors.New("sqlkv: postgres needs a dsn")
		}
	default:
		return nil, fmt.Errorf("sqlkv: unknown driver %q", driver)
	}
	openMu.Lock()
	db, err := sqlOpen(sqlDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time; concurrent writers would see SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	kv, err := New(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}

// New wraps an open database of the given driver, creating the table when
// missing.
func New(ctx context.Context, db *sql.DB, driver string) (*KV, error) {
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure collections table: %w", err)
	}
	return &KV{db: db, numbered: driver == DriverPostgres}, nil
}

// rebind rewrites ? placeholders for drivers that number them.
func (kv *KV) rebind(q string) string {
	if !kv.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// sqlitePath extracts the file path from a SQLite dsn, or "" for in-memory
// databases.
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

// DB exposes the underlying database.
func (kv *KV) DB() *sql.DB { return kv.db }

// Close closes the database.
func (kv *KV) Close() error { return kv.db.Close() }

// GetAll returns every collection ordered by id.
func (kv *KV) GetAll(ctx context.Context) ([]*hayabib.Collection, error) {
	rows, err := kv.db.QueryContext(ctx, `SELECT payload FROM collections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select collections: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []*hayabib.Collection
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		c, err := store.DecodeRecord([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (kv *KV) Get(ctx context.Context, id string) (*hayabib.Collection, error) {
	return kv.get(ctx, kv.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (kv *KV) get(ctx context.Context, q queryer, id string) (*hayabib.Collection, error) {
	var payload string
	err := q.QueryRowContext(ctx, kv.rebind(`SELECT payload FROM collections WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlkv: %q: %w", id, hayabib.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select %q: %w", id, err)
	}
	return store.DecodeRecord([]byte(payload))
}

func (kv *KV) Put(ctx context.Context, c *hayabib.Collection) error {
	data, err := store.EncodeRecord(c)
	if err != nil {
		return err
	}
	if _, err := kv.db.ExecContext(ctx,
		kv.rebind(`INSERT INTO collections(id, payload) VALUES(?, ?) ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`),
		c.Metadata.ID, string(data)); err != nil {
		return fmt.Errorf("upsert %q: %w", c.Metadata.ID, err)
	}
	return nil
}

func (kv *KV) Add(ctx context.Context, c *hayabib.Collection) error {
	data, err := store.EncodeRecord(c)
	if err != nil {
		return err
	}
	res, err := kv.db.ExecContext(ctx,
		kv.rebind(`INSERT INTO collections(id, payload) VALUES(?, ?) ON CONFLICT(id) DO NOTHING`),
		c.Metadata.ID, string(data))
	if err != nil {
		return fmt.Errorf("insert %q: %w", c.Metadata.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %q: %w", c.Metadata.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlkv: %q: %w", c.Metadata.ID, hayabib.ErrAlreadyExists)
	}
	return nil
}

func (kv *KV) Delete(ctx context.Context, id string) error {
	if _, err := kv.db.ExecContext(ctx, kv.rebind(`DELETE FROM collections WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}

// Update reads, patches and writes one record inside a transaction.
func (kv *KV) Update(ctx context.Context, id string, p store.Patch) (retErr error) {
	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	c, err := kv.get(ctx, tx, id)
	if err != nil {
		return err
	}
	p.Apply(c)
	data, err := store.EncodeRecord(c)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, kv.rebind(`UPDATE collections SET payload = ? WHERE id = ?`), string(data), id); err != nil {
		return fmt.Errorf("update %q: %w", id, err)
	}
	return tx.Commit()
}
