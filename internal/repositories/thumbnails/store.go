// Package thumbnails stores images as base64 data URLs in the thumbnails
// partition.
package thumbnails

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/soundboard/internal/objectstore"
	"github.com/dmitrijs2005/soundboard/internal/schema"
)

// Entry is one cached image.
type Entry struct {
	ID          string `json:"id"`
	Data        string `json:"data"`
	CreatedAt   int64  `json:"createdAt"`
	OriginalURL string `json:"originalUrl"`
}

// Stamp identifies a cached image by age without loading its data.
type Stamp struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
}

type StoreRepository struct {
	rw objectstore.ReadWriter
}

func NewStoreRepository(rw objectstore.ReadWriter) *StoreRepository {
	return &StoreRepository{rw: rw}
}

func (r *StoreRepository) Get(ctx context.Context, id string) (*Entry, error) {
	e, err := objectstore.GetAs[Entry](ctx, r.rw, schema.Thumbnails, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get thumbnail[%s]: %w", id, err)
	}
	return e, nil
}

func (r *StoreRepository) Put(ctx context.Context, e Entry) error {
	if _, err := objectstore.PutValue(ctx, r.rw, schema.Thumbnails, e); err != nil {
		return fmt.Errorf("failed to put thumbnail[%s]: %w", e.ID, err)
	}
	return nil
}

func (r *StoreRepository) Delete(ctx context.Context, id string) error {
	if err := r.rw.Delete(ctx, schema.Thumbnails, id); err != nil {
		return fmt.Errorf("failed to delete thumbnail[%s]: %w", id, err)
	}
	return nil
}

func (r *StoreRepository) GetAll(ctx context.Context) ([]Entry, error) {
	all, err := objectstore.GetAllAs[Entry](ctx, r.rw, schema.Thumbnails)
	if err != nil {
		return nil, fmt.Errorf("failed to list thumbnails: %w", err)
	}
	return all, nil
}

// Stamps lists every image oldest first, ties by id.
func (r *StoreRepository) Stamps(ctx context.Context) ([]Stamp, error) {
	docs, err := r.rw.Project(ctx, schema.Thumbnails, "createdAt", "id")
	if err != nil {
		return nil, fmt.Errorf("failed to list thumbnail stamps: %w", err)
	}
	out := make([]Stamp, 0, len(docs))
	for _, d := range docs {
		var st Stamp
		if err := json.Unmarshal(d, &st); err != nil {
			return nil, fmt.Errorf("failed to decode thumbnail stamp: %w", err)
		}
		out = append(out, st)
	}
	return out, nil
}
