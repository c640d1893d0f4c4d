package objectstore

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/dmitrijs2005/soundboard/internal/common"
)

// migrate brings the database to the requested version and returns the
// version it ends at. Steps run through goose, one transaction per step.
func (c *Client) migrate(ctx context.Context, db *sql.DB, lock *fileLock) (int64, error) {
	steps := slices.Clone(c.opts.Migrations)
	slices.SortFunc(steps, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	if len(steps) == 0 {
		return 0, fmt.Errorf("%w: no migrations registered", common.ErrUnknownVersion)
	}
	highest := steps[len(steps)-1].Version

	target := c.opts.Version
	if target == 0 {
		target = highest
	}

	var stepErr error
	provider, err := newProvider(db, steps, &stepErr)
	if err != nil {
		return 0, err
	}

	current, err := provider.GetDBVersion(ctx)
	if errors.Is(err, database.ErrVersionNotFound) {
		current, err = 0, nil
	}
	if err != nil {
		if isBusy(err) {
			return 0, fmt.Errorf("%w: read schema version: %w", common.ErrBlocked, err)
		}
		return 0, fmt.Errorf("read schema version: %w", mapError(err))
	}

	switch {
	case target < current:
		return current, fmt.Errorf("%w: stored %d, requested %d", common.ErrVersionDowngrade, current, target)
	case target > highest:
		return current, fmt.Errorf("%w: requested %d, highest step %d", common.ErrUnknownVersion, target, highest)
	case target == current:
		return current, nil
	}

	c.setState(StateMigrating)
	c.log.Info(ctx, "migrating store", "from", current, "to", target)

	if err := lock.exclusive(ctx, c.opts.BlockedTimeout); err != nil {
		return current, err
	}
	defer func() { _ = lock.shared(ctx, c.opts.BlockedTimeout) }()

	if _, err := provider.UpTo(ctx, target); err != nil {
		cause := err
		if stepErr != nil {
			cause = stepErr
		}
		if isBusy(cause) {
			return current, fmt.Errorf("%w: %w", common.ErrBlocked, err)
		}
		return current, fmt.Errorf("migrate %d -> %d: %w", current, target, mapError(err))
	}

	c.setState(StateMigrated)
	return target, nil
}

func newProvider(db *sql.DB, steps []Migration, stepErr *error) (*goose.Provider, error) {
	gm := make([]*goose.Migration, 0, len(steps))
	for _, s := range steps {
		gm = append(gm, goose.NewGoMigration(s.Version, &goose.GoFunc{RunTx: runStep(s, stepErr)}, nil))
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, nil,
		goose.WithGoMigrations(gm...),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return nil, fmt.Errorf("build migration provider: %w", err)
	}
	return p, nil
}

func runStep(m Migration, stepErr *error) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		s := &Schema{tx: tx}
		err := func() error {
			if m.Kind == Reset {
				if err := s.dropAll(ctx); err != nil {
					return fmt.Errorf("reset: %w", err)
				}
			}
			if m.Up == nil {
				return nil
			}
			return m.Up(ctx, s)
		}()
		if err != nil && *stepErr == nil {
			*stepErr = err
		}
		return err
	}
}
