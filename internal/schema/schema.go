// Package schema declares the soundboard partitions and the versioned steps
// that create them.
package schema

import (
	"context"

	"github.com/dmitrijs2005/soundboard/internal/objectstore"
)

// Partition names.
const (
	AudioFiles = "audioFiles"
	Layouts    = "layouts"
	Settings   = "settings"
	Thumbnails = "thumbnails"
)

// CurrentVersion is the version new installs open at.
const CurrentVersion int64 = 4

// Migrations returns the soundboard steps in version order.
//
// Version 4 is a reset: it discards everything stored under earlier versions
// and recreates the four partitions from scratch.
func Migrations() []objectstore.Migration {
	return []objectstore.Migration{
		{Version: 1, Up: func(ctx context.Context, s *objectstore.Schema) error {
			if err := s.CreatePartition(ctx, AudioFiles, "id"); err != nil {
				return err
			}
			if err := s.CreatePartition(ctx, Layouts, "id"); err != nil {
				return err
			}
			return s.CreatePartition(ctx, Settings, "key")
		}},
		{Version: 2, Up: func(ctx context.Context, s *objectstore.Schema) error {
			return s.CreatePartition(ctx, Thumbnails, "id")
		}},
		{Version: 3, Up: func(ctx context.Context, s *objectstore.Schema) error {
			return s.CreateIndex(ctx, AudioFiles, "createdAt")
		}},
		{Version: 4, Kind: objectstore.Reset, Up: createAll},
	}
}

func createAll(ctx context.Context, s *objectstore.Schema) error {
	for _, p := range []struct{ name, key string }{
		{AudioFiles, "id"},
		{Layouts, "id"},
		{Settings, "key"},
		{Thumbnails, "id"},
	} {
		if err := s.CreatePartition(ctx, p.name, p.key); err != nil {
			return err
		}
	}
	if err := s.CreateIndex(ctx, AudioFiles, "createdAt"); err != nil {
		return err
	}
	return s.CreateIndex(ctx, Thumbnails, "createdAt")
}
