package objectstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/soundboard/internal/common"
	"github.com/dmitrijs2005/soundboard/internal/filex"
	"github.com/dmitrijs2005/soundboard/internal/logging"
)

// DefaultBlockedTimeout bounds how long Open waits for other handles before
// reporting common.ErrBlocked.
const DefaultBlockedTimeout = 5 * time.Second

// Options configure a Client.
type Options struct {
	// Path of the SQLite database file. Parent directories are created.
	Path string
	// Version is the schema version to open at. Zero means the highest
	// registered migration.
	Version int64
	// Migrations are the schema steps, in any order.
	Migrations []Migration
	// BlockedTimeout defaults to DefaultBlockedTimeout.
	BlockedTimeout time.Duration
	// Pragmas are extra connection pragmas, e.g. "max_page_count(256)".
	Pragmas []string
	// OnStateChange, when set, observes every lifecycle transition.
	OnStateChange func(State)
	Logger        logging.Logger
}

// Client owns the lifecycle of one store. Construct it once with New and
// share it; Open is safe for concurrent use and returns the cached handle.
type Client struct {
	opts  Options
	log   logging.Logger
	group singleflight.Group

	mu    sync.Mutex
	db    *DB
	state State
}

// New returns an unopened Client.
func New(opts Options) *Client {
	if opts.BlockedTimeout <= 0 {
		opts.BlockedTimeout = DefaultBlockedTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Client{
		opts: opts,
		log:  opts.Logger.With("component", "objectstore", "path", opts.Path),
	}
}

// State reports the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()

	c.log.Debug(context.Background(), "store state", "state", s.String())
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// Open returns the ready handle, opening and migrating the database on the
// first call. Concurrent first calls share a single open. After a failure the
// next call tries again.
func (c *Client) Open(ctx context.Context) (*DB, error) {
	if db := c.cached(); db != nil {
		return db, nil
	}

	v, err, _ := c.group.Do("open", func() (any, error) {
		if db := c.cached(); db != nil {
			return db, nil
		}

		c.setState(StateOpening)
		db, err := c.open(ctx)
		if err != nil {
			c.setState(StateFailed)
			c.log.Error(ctx, "open store", "error", err)
			return nil, err
		}

		c.mu.Lock()
		c.db = db
		c.mu.Unlock()
		c.setState(StateReady)
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DB), nil
}

func (c *Client) cached() *DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// Close releases the handle. A later Open reopens the store.
func (c *Client) Close() error {
	c.mu.Lock()
	db := c.db
	c.db = nil
	c.mu.Unlock()

	if db == nil {
		return nil
	}
	err := db.close()
	c.setState(StateUnopened)
	return err
}

func (c *Client) dsn() string {
	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_txlock=immediate",
	}
	for _, p := range c.opts.Pragmas {
		params = append(params, "_pragma="+p)
	}
	return c.opts.Path + "?" + strings.Join(params, "&")
}

func (c *Client) open(ctx context.Context) (_ *DB, err error) {
	if c.opts.Path == "" {
		return nil, fmt.Errorf("%w: empty path", common.ErrStorageUnavailable)
	}
	if _, err := filex.EnsureParentDir(c.opts.Path); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	// Openers take turns through the gate, so the schema version read below
	// cannot go stale before this handle acts on it.
	gate, err := openLock(c.opts.Path + ".open.lock")
	if err != nil {
		return nil, err
	}
	defer func() { _ = gate.release() }()
	if err := gate.exclusive(ctx, c.opts.BlockedTimeout); err != nil {
		return nil, err
	}

	lock, err := openLock(c.opts.Path + ".lock")
	if err != nil {
		return nil, err
	}
	if err := lock.shared(ctx, c.opts.BlockedTimeout); err != nil {
		_ = lock.release()
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", c.dsn())
	if err != nil {
		_ = lock.release()
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = sqlDB.Close()
			_ = lock.release()
		}
	}()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	if err := ensureCatalog(ctx, sqlDB); err != nil {
		if isBusy(err) {
			return nil, fmt.Errorf("%w: %w", common.ErrBlocked, err)
		}
		return nil, fmt.Errorf("%w: init catalog: %w", common.ErrStorageUnavailable, mapError(err))
	}

	version, err := c.migrate(ctx, sqlDB, lock)
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalog(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", mapError(err))
	}

	c.log.Info(ctx, "store opened", "version", version, "partitions", len(catalog))
	return &DB{
		sql:     sqlDB,
		lock:    lock,
		catalog: catalog,
		version: version,
		log:     c.log,
	}, nil
}
