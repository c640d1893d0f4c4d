// Package layouts stores soundboard layouts: an ordered list of clip ids plus
// presentation settings.
package layouts

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/soundboard/internal/objectstore"
	"github.com/dmitrijs2005/soundboard/internal/schema"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(s); t {
	case ThemeLight, ThemeDark, ThemeAuto:
		return t, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// DefaultID is the layout used until the user picks another.
const DefaultID = "default"

type Layout struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	SoundIDs []string `json:"soundIds"`
	Theme    Theme    `json:"theme"`
	// Synced is reserved for multi-device sync and not acted upon.
	Synced bool `json:"synced"`
}

// Default returns an empty layout with DefaultID.
func Default() Layout {
	return Layout{ID: DefaultID, Name: "My Soundboard", SoundIDs: []string{}, Theme: ThemeAuto}
}

// Append adds id at the end unless it is already present.
func (l *Layout) Append(id string) bool {
	if slices.Contains(l.SoundIDs, id) {
		return false
	}
	l.SoundIDs = append(l.SoundIDs, id)
	return true
}

// Remove drops id and reports whether it was present.
func (l *Layout) Remove(id string) bool {
	n := len(l.SoundIDs)
	l.SoundIDs = slices.DeleteFunc(l.SoundIDs, func(s string) bool { return s == id })
	return len(l.SoundIDs) != n
}

type StoreRepository struct {
	rw objectstore.ReadWriter
}

func NewStoreRepository(rw objectstore.ReadWriter) *StoreRepository {
	return &StoreRepository{rw: rw}
}

func (r *StoreRepository) Get(ctx context.Context, id string) (*Layout, error) {
	l, err := objectstore.GetAs[Layout](ctx, r.rw, schema.Layouts, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get layout[%s]: %w", id, err)
	}
	return l, nil
}

func (r *StoreRepository) Put(ctx context.Context, l Layout) error {
	if l.SoundIDs == nil {
		l.SoundIDs = []string{}
	}
	if _, err := objectstore.PutValue(ctx, r.rw, schema.Layouts, l); err != nil {
		return fmt.Errorf("failed to put layout[%s]: %w", l.ID, err)
	}
	return nil
}

func (r *StoreRepository) Delete(ctx context.Context, id string) error {
	if err := r.rw.Delete(ctx, schema.Layouts, id); err != nil {
		return fmt.Errorf("failed to delete layout[%s]: %w", id, err)
	}
	return nil
}

func (r *StoreRepository) GetAll(ctx context.Context) ([]Layout, error) {
	all, err := objectstore.GetAllAs[Layout](ctx, r.rw, schema.Layouts)
	if err != nil {
		return nil, fmt.Errorf("failed to list layouts: %w", err)
	}
	return all, nil
}
