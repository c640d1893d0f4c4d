package objectstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/dmitrijs2005/soundboard/internal/common"
	"github.com/dmitrijs2005/soundboard/internal/dbx"
	"github.com/dmitrijs2005/soundboard/internal/logging"
)

// Reader is the read half of the store surface.
type Reader interface {
	// Get returns the document stored under key, or (nil, nil) when absent.
	Get(ctx context.Context, partition, key string) (json.RawMessage, error)
	// GetAll returns every document of a partition in storage order.
	GetAll(ctx context.Context, partition string) ([]json.RawMessage, error)
	// Project returns, for every document, an object holding only the named
	// top-level fields, ordered by the first field and then by key. Ordering
	// follows an index created with Schema.CreateIndex on that field.
	Project(ctx context.Context, partition string, fields ...string) ([]json.RawMessage, error)
}

// Writer is the write half of the store surface.
type Writer interface {
	// Put upserts doc, keyed by the partition's key path, and returns the key.
	Put(ctx context.Context, partition string, doc json.RawMessage) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, partition, key string) error
}

// ReadWriter is what a transaction scope exposes.
type ReadWriter interface {
	Reader
	Writer
}

// Store is a ReadWriter that can also open exclusive transaction scopes.
// *DB implements it.
type Store interface {
	ReadWriter
	Update(ctx context.Context, fn func(ctx context.Context, rw ReadWriter) error) error
}

// ops implements ReadWriter over any DBTX.
type ops struct {
	q       dbx.DBTX
	catalog map[string]string
}

func (o ops) table(partition string) (string, string, error) {
	keyPath, ok := o.catalog[partition]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", common.ErrUnknownPartition, partition)
	}
	return `"` + partition + `"`, keyPath, nil
}

func (o ops) Get(ctx context.Context, partition, key string) (json.RawMessage, error) {
	table, _, err := o.table(partition)
	if err != nil {
		return nil, err
	}

	var value string
	err = o.q.QueryRowContext(ctx, `SELECT value FROM `+table+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", partition, key, mapError(err))
	}
	return json.RawMessage(value), nil
}

func (o ops) GetAll(ctx context.Context, partition string) ([]json.RawMessage, error) {
	table, _, err := o.table(partition)
	if err != nil {
		return nil, err
	}

	rows, err := o.q.QueryContext(ctx, `SELECT value FROM `+table+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", partition, mapError(err))
	}
	docs, err := dbx.CollectRows(rows, func(r *sql.Rows) (json.RawMessage, error) {
		var v string
		if err := r.Scan(&v); err != nil {
			return nil, err
		}
		return json.RawMessage(v), nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", partition, mapError(err))
	}
	return docs, nil
}

func (o ops) Project(ctx context.Context, partition string, fields ...string) ([]json.RawMessage, error) {
	table, _, err := o.table(partition)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("project %s: no fields", partition)
	}
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		if !identRe.MatchString(f) {
			return nil, fmt.Errorf("project %s: invalid field %q", partition, f)
		}
		pairs = append(pairs, `'`+f+`', `+fieldExpr(f))
	}

	rows, err := o.q.QueryContext(ctx,
		`SELECT json_object(`+strings.Join(pairs, ", ")+`) FROM `+table+
			` ORDER BY `+fieldExpr(fields[0])+`, key`)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", partition, mapError(err))
	}
	docs, err := dbx.CollectRows(rows, func(r *sql.Rows) (json.RawMessage, error) {
		var v string
		if err := r.Scan(&v); err != nil {
			return nil, err
		}
		return json.RawMessage(v), nil
	})
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", partition, mapError(err))
	}
	return docs, nil
}

func (o ops) Put(ctx context.Context, partition string, doc json.RawMessage) (string, error) {
	table, keyPath, err := o.table(partition)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(doc) {
		return "", fmt.Errorf("put %s: document is not valid JSON", partition)
	}
	res := gjson.GetBytes(doc, keyPath)
	if !res.Exists() || res.String() == "" {
		return "", fmt.Errorf("put %s: %w %q", partition, common.ErrMissingKey, keyPath)
	}
	key := res.String()

	_, err = o.q.ExecContext(ctx,
		`INSERT INTO `+table+`(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(doc))
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", partition, key, mapError(err))
	}
	return key, nil
}

func (o ops) Delete(ctx context.Context, partition, key string) error {
	table, _, err := o.table(partition)
	if err != nil {
		return err
	}
	if _, err := o.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", partition, key, mapError(err))
	}
	return nil
}

// DB is an open handle returned by Client.Open.
type DB struct {
	sql     *sql.DB
	lock    *fileLock
	catalog map[string]string
	version int64
	log     logging.Logger
	closed  atomic.Bool
}

var _ Store = (*DB)(nil)

func (db *DB) ops() (ops, error) {
	if db.closed.Load() {
		return ops{}, common.ErrClosed
	}
	return ops{q: db.sql, catalog: db.catalog}, nil
}

func (db *DB) Get(ctx context.Context, partition, key string) (json.RawMessage, error) {
	o, err := db.ops()
	if err != nil {
		return nil, err
	}
	return o.Get(ctx, partition, key)
}

func (db *DB) GetAll(ctx context.Context, partition string) ([]json.RawMessage, error) {
	o, err := db.ops()
	if err != nil {
		return nil, err
	}
	return o.GetAll(ctx, partition)
}

func (db *DB) Project(ctx context.Context, partition string, fields ...string) ([]json.RawMessage, error) {
	o, err := db.ops()
	if err != nil {
		return nil, err
	}
	return o.Project(ctx, partition, fields...)
}

func (db *DB) Put(ctx context.Context, partition string, doc json.RawMessage) (string, error) {
	o, err := db.ops()
	if err != nil {
		return "", err
	}
	return o.Put(ctx, partition, doc)
}

func (db *DB) Delete(ctx context.Context, partition, key string) error {
	o, err := db.ops()
	if err != nil {
		return err
	}
	return o.Delete(ctx, partition, key)
}

// Update runs fn in one exclusive transaction. Everything fn does through rw
// commits together, or not at all when fn returns an error or panics.
// fn must not use db directly; that would wait on its own write lock.
func (db *DB) Update(ctx context.Context, fn func(ctx context.Context, rw ReadWriter) error) error {
	if db.closed.Load() {
		return common.ErrClosed
	}
	err := dbx.WithTx(ctx, db.sql, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, ops{q: tx, catalog: db.catalog})
	})
	return mapError(err)
}

// Version is the schema version the handle was opened at.
func (db *DB) Version() int64 { return db.version }

// Partitions lists the partition names known to this handle.
func (db *DB) Partitions() []string {
	out := make([]string, 0, len(db.catalog))
	for n := range db.catalog {
		out = append(out, n)
	}
	return out
}

func (db *DB) close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := db.sql.Close()
	if lerr := db.lock.release(); err == nil {
		err = lerr
	}
	return err
}
