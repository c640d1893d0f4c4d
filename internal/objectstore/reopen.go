package objectstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/soundboard/internal/common"
)

// Store returns a Store that resolves the handle through Open on every call,
// so it keeps working after Close or a failed open: the next operation opens
// the database again.
func (c *Client) Store() Store {
	return &clientStore{c: c}
}

type clientStore struct {
	c *Client
}

var _ Store = (*clientStore)(nil)

// do runs fn against the current handle. A handle closed between Open and fn
// is retried once on a fresh one.
func do[T any](ctx context.Context, c *Client, fn func(*DB) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		db, err := c.Open(ctx)
		if err != nil {
			return zero, err
		}
		v, err := fn(db)
		if attempt == 0 && errors.Is(err, common.ErrClosed) {
			continue
		}
		return v, err
	}
}

func (s *clientStore) Get(ctx context.Context, partition, key string) (json.RawMessage, error) {
	return do(ctx, s.c, func(db *DB) (json.RawMessage, error) { return db.Get(ctx, partition, key) })
}

func (s *clientStore) GetAll(ctx context.Context, partition string) ([]json.RawMessage, error) {
	return do(ctx, s.c, func(db *DB) ([]json.RawMessage, error) { return db.GetAll(ctx, partition) })
}

func (s *clientStore) Project(ctx context.Context, partition string, fields ...string) ([]json.RawMessage, error) {
	return do(ctx, s.c, func(db *DB) ([]json.RawMessage, error) { return db.Project(ctx, partition, fields...) })
}

func (s *clientStore) Put(ctx context.Context, partition string, doc json.RawMessage) (string, error) {
	return do(ctx, s.c, func(db *DB) (string, error) { return db.Put(ctx, partition, doc) })
}

func (s *clientStore) Delete(ctx context.Context, partition, key string) error {
	_, err := do(ctx, s.c, func(db *DB) (struct{}, error) { return struct{}{}, db.Delete(ctx, partition, key) })
	return err
}

func (s *clientStore) Update(ctx context.Context, fn func(ctx context.Context, rw ReadWriter) error) error {
	_, err := do(ctx, s.c, func(db *DB) (struct{}, error) { return struct{}{}, db.Update(ctx, fn) })
	return err
}
