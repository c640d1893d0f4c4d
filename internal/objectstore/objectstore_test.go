package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/soundboard/internal/common"
)

type note struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func testSteps() []Migration {
	return []Migration{
		{Version: 1, Up: func(ctx context.Context, s *Schema) error {
			return s.CreatePartition(ctx, "notes", "id")
		}},
		{Version: 2, Up: func(ctx context.Context, s *Schema) error {
			if err := s.CreatePartition(ctx, "tags", "name"); err != nil {
				return err
			}
			return s.CreateIndex(ctx, "notes", "body")
		}},
		{Version: 3, Kind: Reset, Up: func(ctx context.Context, s *Schema) error {
			if err := s.CreatePartition(ctx, "notes", "id"); err != nil {
				return err
			}
			return s.CreatePartition(ctx, "tags", "name")
		}},
	}
}

func newClient(t *testing.T, path string, version int64) *Client {
	t.Helper()
	c := New(Options{
		Path:           path,
		Version:        version,
		Migrations:     testSteps(),
		BlockedTimeout: 150 * time.Millisecond,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func openDB(t *testing.T, version int64) (*Client, *DB) {
	t.Helper()
	c := newClient(t, filepath.Join(t.TempDir(), "store.db"), version)
	db, err := c.Open(context.Background())
	require.NoError(t, err)
	return c, db
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	_, db := openDB(t, 2)

	key, err := PutValue(ctx, db, "notes", note{ID: "a", Body: "first"})
	require.NoError(t, err)
	assert.Equal(t, "a", key)

	got, err := GetAs[note](ctx, db, "notes", "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Body)

	require.NoError(t, db.Delete(ctx, "notes", "a"))
	require.NoError(t, db.Delete(ctx, "notes", "a"), "delete is idempotent")

	raw, err := db.Get(ctx, "notes", "a")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestPut_OverwritesSameKey(t *testing.T) {
	ctx := context.Background()
	_, db := openDB(t, 1)

	_, err := PutValue(ctx, db, "notes", note{ID: "a", Body: "v1"})
	require.NoError(t, err)
	_, err = PutValue(ctx, db, "notes", note{ID: "a", Body: "v2"})
	require.NoError(t, err)

	all, err := GetAllAs[note](ctx, db, "notes")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "v2", all[0].Body)
}

func TestGetAll_StorageOrder(t *testing.T) {
	ctx := context.Background()
	_, db := openDB(t, 1)

	for _, id := range []string{"c", "a", "b"} {
		_, err := PutValue(ctx, db, "notes", note{ID: id})
		require.NoError(t, err)
	}

	all, err := GetAllAs[note](ctx, db, "notes")
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, n := range all {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestProject_OrdersByFirstFieldThenKey(t *testing.T) {
	ctx := context.Background()
	_, db := openDB(t, 2)

	for _, n := range []note{{ID: "c", Body: "b"}, {ID: "a", Body: "b"}, {ID: "b", Body: "a"}} {
		_, err := PutValue(ctx, db, "notes", n)
		require.NoError(t, err)
	}

	docs, err := db.Project(ctx, "notes", "body", "id")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.JSONEq(t, `{"body":"a","id":"b"}`, string(docs[0]))
	assert.JSONEq(t, `{"body":"b","id":"a"}`, string(docs[1]))
	assert.JSONEq(t, `{"body":"b","id":"c"}`, string(docs[2]))

	err = db.Update(ctx, func(ctx context.Context, rw ReadWriter) error {
		docs, err := rw.Project(ctx, "notes", "id")
		require.NoError(t, err)
		assert.Len(t, docs, 3)
		return nil
	})
	require.NoError(t, err)
}

func TestProject_Errors(t *testing.T) {
	ctx := context.Background()
	_, db := openDB(t, 1)

	_, err := db.Project(ctx, "nope", "id")
	require.ErrorIs(t, err, common.ErrUnknownPartition)

	_, err = db.Project(ctx, "notes")
	require.Error(t, err)

	_, err = db.Project(ctx, "notes", "id') FROM x; --")
	require.Error(t, err)
}

func TestPut_Errors(t *testing.T) {
	ctx := context.Background()
	_, db := openDB(t, 1)

	_, err := db.Put(ctx, "nope", json.RawMessage(`{"id":"x"}`))
	require.ErrorIs(t, err, common.ErrUnknownPartition)

	_, err = db.Put(ctx, "notes", json.RawMessage(`{"body":"no id"}`))
	require.ErrorIs(t, err, common.ErrMissingKey)

	_, err = db.Put(ctx, "notes", json.RawMessage(`{broken`))
	require.Error(t, err)

	_, err = db.Get(ctx, "tags", "x")
	require.ErrorIs(t, err, common.ErrUnknownPartition, "tags arrives only at version 2")
}

func TestUpdate_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	_, db := openDB(t, 2)

	err := db.Update(ctx, func(ctx context.Context, rw ReadWriter) error {
		if _, err := PutValue(ctx, rw, "notes", note{ID: "n1"}); err != nil {
			return err
		}
		_, err := rw.Put(ctx, "tags", json.RawMessage(`{"name":"t1"}`))
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.Update(ctx, func(ctx context.Context, rw ReadWriter) error {
		require.NoError(t, rw.Delete(ctx, "notes", "n1"))
		_, err := PutValue(ctx, rw, "notes", note{ID: "n2"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := GetAllAs[note](ctx, db, "notes")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "n1", all[0].ID)

	tag, err := db.Get(ctx, "tags", "t1")
	require.NoError(t, err)
	assert.NotNil(t, tag)
}

func TestOpen_CachedAndConcurrent(t *testing.T) {
	c := newClient(t, filepath.Join(t.TempDir(), "store.db"), 0)

	var wg sync.WaitGroup
	handles := make([]*DB, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := c.Open(context.Background())
			assert.NoError(t, err)
			handles[i] = db
		}(i)
	}
	wg.Wait()

	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, int64(3), handles[0].Version(), "zero version opens at the highest step")
}

func TestOpen_StateTransitions(t *testing.T) {
	var (
		mu     sync.Mutex
		states []State
	)
	c := New(Options{
		Path:       filepath.Join(t.TempDir(), "store.db"),
		Version:    2,
		Migrations: testSteps(),
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, StateUnopened, c.State())
	_, err := c.Open(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateOpening, StateMigrating, StateMigrated, StateReady}, states)
}

func TestOpen_NoMigrationWhenCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	c := newClient(t, path, 2)
	_, err := c.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	var states []State
	c2 := New(Options{Path: path, Version: 2, Migrations: testSteps(), OnStateChange: func(s State) { states = append(states, s) }})
	t.Cleanup(func() { _ = c2.Close() })
	_, err = c2.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []State{StateOpening, StateReady}, states)
}

func TestOpen_Downgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	c := newClient(t, path, 2)
	_, err := c.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	old := newClient(t, path, 1)
	_, err = old.Open(context.Background())
	require.ErrorIs(t, err, common.ErrVersionDowngrade)
	assert.Equal(t, StateFailed, old.State())
}

func TestOpen_UnknownVersion(t *testing.T) {
	c := newClient(t, filepath.Join(t.TempDir(), "store.db"), 9)
	_, err := c.Open(context.Background())
	require.ErrorIs(t, err, common.ErrUnknownVersion)
	assert.Equal(t, StateFailed, c.State())
}

func TestOpen_ResetStepDropsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	c := newClient(t, path, 2)
	db, err := c.Open(ctx)
	require.NoError(t, err)
	_, err = PutValue(ctx, db, "notes", note{ID: "keep?"})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c3 := newClient(t, path, 3)
	db3, err := c3.Open(ctx)
	require.NoError(t, err)

	all, err := db3.GetAll(ctx, "notes")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.ElementsMatch(t, []string{"notes", "tags"}, db3.Partitions())
}

func TestOpen_AdditiveStepKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	c := newClient(t, path, 1)
	db, err := c.Open(ctx)
	require.NoError(t, err)
	_, err = PutValue(ctx, db, "notes", note{ID: "kept"})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c2 := newClient(t, path, 2)
	db2, err := c2.Open(ctx)
	require.NoError(t, err)
	got, err := GetAs[note](ctx, db2, "notes", "kept")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestOpen_BlockedByOtherHandle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	holder := newClient(t, path, 1)
	_, err := holder.Open(ctx)
	require.NoError(t, err)

	upgrader := newClient(t, path, 2)
	_, err = upgrader.Open(ctx)
	require.ErrorIs(t, err, common.ErrBlocked)
	assert.Equal(t, StateFailed, upgrader.State())

	require.NoError(t, holder.Close())

	db, err := upgrader.Open(ctx)
	require.NoError(t, err, "retry after the other handle closed")
	assert.Equal(t, int64(2), db.Version())
}

func TestOpen_ConcurrentColdOpenOnSamePath(t *testing.T) {
	ctx := context.Background()

	for round := range 5 {
		path := filepath.Join(t.TempDir(), "store.db")
		clients := make([]*Client, 2)
		for i := range clients {
			clients[i] = New(Options{Path: path, Migrations: testSteps(), BlockedTimeout: 5 * time.Second})
			t.Cleanup(func() { _ = clients[i].Close() })
		}

		var wg sync.WaitGroup
		errs := make([]error, len(clients))
		versions := make([]int64, len(clients))
		for i, c := range clients {
			wg.Add(1)
			go func() {
				defer wg.Done()
				db, err := c.Open(ctx)
				errs[i] = err
				if err == nil {
					versions[i] = db.Version()
				}
			}()
		}
		wg.Wait()

		for i := range clients {
			require.NoError(t, errs[i], "round %d client %d", round, i)
			assert.Equal(t, int64(3), versions[i], "round %d client %d", round, i)
			assert.Equal(t, StateReady, clients[i].State())
		}
	}
}

func TestOpen_SharedHandlesCoexist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	a := newClient(t, path, 1)
	dbA, err := a.Open(ctx)
	require.NoError(t, err)

	b := newClient(t, path, 1)
	dbB, err := b.Open(ctx)
	require.NoError(t, err)

	_, err = PutValue(ctx, dbA, "notes", note{ID: "shared"})
	require.NoError(t, err)
	got, err := GetAs[note](ctx, dbB, "notes", "shared")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestOpen_StorageUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	c := newClient(t, filepath.Join(blocker, "store.db"), 1)
	_, err := c.Open(context.Background())
	require.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.Equal(t, StateFailed, c.State())

	empty := New(Options{Migrations: testSteps()})
	_, err = empty.Open(context.Background())
	require.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestPut_StorageFull(t *testing.T) {
	ctx := context.Background()
	c := New(Options{
		Path:       filepath.Join(t.TempDir(), "store.db"),
		Migrations: testSteps(),
		Version:    1,
		Pragmas:    []string{"max_page_count(64)"},
	})
	t.Cleanup(func() { _ = c.Close() })
	db, err := c.Open(ctx)
	require.NoError(t, err)

	big := note{ID: "big", Body: strings.Repeat("x", 1<<20)}
	_, err = PutValue(ctx, db, "notes", big)
	require.ErrorIs(t, err, common.ErrStorageFull)
}

func TestClosedHandle(t *testing.T) {
	c, db := openDB(t, 1)
	require.NoError(t, c.Close())
	assert.Equal(t, StateUnopened, c.State())

	_, err := db.Get(context.Background(), "notes", "a")
	require.ErrorIs(t, err, common.ErrClosed)
	err = db.Update(context.Background(), func(context.Context, ReadWriter) error { return nil })
	require.ErrorIs(t, err, common.ErrClosed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "migrating", StateMigrating.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestClientStore_ReopensAfterClose(t *testing.T) {
	c := newClient(t, filepath.Join(t.TempDir(), "store.db"), 1)
	st := c.Store()
	ctx := context.Background()

	_, err := PutValue(ctx, st, "notes", note{ID: "a", Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, StateReady, c.State(), "first use opens")

	require.NoError(t, c.Close())
	assert.Equal(t, StateUnopened, c.State())

	got, err := GetAs[note](ctx, st, "notes", "a")
	require.NoError(t, err)
	assert.Equal(t, &note{ID: "a", Body: "x"}, got)
	assert.Equal(t, StateReady, c.State())

	require.NoError(t, c.Close())
	err = st.Update(ctx, func(ctx context.Context, rw ReadWriter) error {
		return rw.Delete(ctx, "notes", "a")
	})
	require.NoError(t, err)
	all, err := st.GetAll(ctx, "notes")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestClientStore_RecoversFromFailedOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	holder := newClient(t, path, 1)
	_, err := holder.Open(context.Background())
	require.NoError(t, err)

	c := newClient(t, path, 2)
	st := c.Store()
	ctx := context.Background()

	_, err = st.Get(ctx, "notes", "a")
	require.ErrorIs(t, err, common.ErrBlocked)
	assert.Equal(t, StateFailed, c.State())

	require.NoError(t, holder.Close())

	_, err = PutValue(ctx, st, "tags", map[string]string{"name": "t"})
	require.NoError(t, err)
	assert.Equal(t, StateReady, c.State())
}
