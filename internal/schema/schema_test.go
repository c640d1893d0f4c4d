package schema

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/soundboard/internal/objectstore"
)

func open(t *testing.T, path string, version int64) (*objectstore.Client, *objectstore.DB) {
	t.Helper()
	c := objectstore.New(objectstore.Options{Path: path, Version: version, Migrations: Migrations()})
	t.Cleanup(func() { _ = c.Close() })
	db, err := c.Open(context.Background())
	require.NoError(t, err)
	return c, db
}

func TestFreshInstall_CurrentVersion(t *testing.T) {
	_, db := open(t, filepath.Join(t.TempDir(), "sb.db"), 0)

	assert.Equal(t, CurrentVersion, db.Version())
	assert.ElementsMatch(t, []string{AudioFiles, Layouts, Settings, Thumbnails}, db.Partitions())
}

func TestVersion1_HasNoThumbnails(t *testing.T) {
	_, db := open(t, filepath.Join(t.TempDir(), "sb.db"), 1)
	assert.ElementsMatch(t, []string{AudioFiles, Layouts, Settings}, db.Partitions())
}

func TestSettingsKeyedByKey(t *testing.T) {
	ctx := context.Background()
	_, db := open(t, filepath.Join(t.TempDir(), "sb.db"), 0)

	key, err := db.Put(ctx, Settings, json.RawMessage(`{"key":"theme","value":"dark"}`))
	require.NoError(t, err)
	assert.Equal(t, "theme", key)
}

func TestUpgrade3To4_EmptiesAudioFiles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sb.db")

	c3, db3 := open(t, path, 3)
	_, err := db3.Put(ctx, AudioFiles, json.RawMessage(`{"id":"clip","size":10,"createdAt":1}`))
	require.NoError(t, err)
	_, err = db3.Put(ctx, Layouts, json.RawMessage(`{"id":"default","soundIds":["clip"]}`))
	require.NoError(t, err)
	require.NoError(t, c3.Close())

	_, db4 := open(t, path, 4)
	assert.Equal(t, int64(4), db4.Version())

	for _, p := range []string{AudioFiles, Layouts, Settings, Thumbnails} {
		all, err := db4.GetAll(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, all, p)
	}
}
