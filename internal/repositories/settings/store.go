// Package settings stores string preferences in the settings partition,
// keyed by "key".
package settings

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/soundboard/internal/objectstore"
	"github.com/dmitrijs2005/soundboard/internal/schema"
)

// Well-known keys.
const (
	KeyActiveLayout = "activeLayout"
	KeyTheme        = "theme"
)

type setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type StoreRepository struct {
	rw objectstore.ReadWriter
}

func NewStoreRepository(rw objectstore.ReadWriter) *StoreRepository {
	return &StoreRepository{rw: rw}
}

// Get returns the value and whether it was set.
func (r *StoreRepository) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := objectstore.GetAs[setting](ctx, r.rw, schema.Settings, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting[%s]: %w", key, err)
	}
	if s == nil {
		return "", false, nil
	}
	return s.Value, true, nil
}

func (r *StoreRepository) Set(ctx context.Context, key, value string) error {
	if _, err := objectstore.PutValue(ctx, r.rw, schema.Settings, setting{Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to set setting[%s]: %w", key, err)
	}
	return nil
}

func (r *StoreRepository) Delete(ctx context.Context, key string) error {
	if err := r.rw.Delete(ctx, schema.Settings, key); err != nil {
		return fmt.Errorf("failed to delete setting[%s]: %w", key, err)
	}
	return nil
}

func (r *StoreRepository) List(ctx context.Context) (map[string]string, error) {
	all, err := objectstore.GetAllAs[setting](ctx, r.rw, schema.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	out := make(map[string]string, len(all))
	for _, s := range all {
		out[s.Key] = s.Value
	}
	return out, nil
}
