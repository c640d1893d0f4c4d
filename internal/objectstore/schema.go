package objectstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/dmitrijs2005/soundboard/internal/dbx"
)

const catalogTable = "_partitions"

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// MigrationKind selects how a step treats existing partitions.
type MigrationKind int

const (
	// Additive steps only add or alter partitions; existing data survives.
	Additive MigrationKind = iota
	// Reset steps drop every partition before Up runs. All stored data is lost.
	Reset
)

// Migration is one versioned schema step. Versions start at 1 and must be unique.
type Migration struct {
	Version int64
	Kind    MigrationKind
	Up      func(ctx context.Context, s *Schema) error
}

// Schema is the DDL surface handed to a migration step. It is bound to the
// step's transaction.
type Schema struct {
	tx dbx.DBTX
}

func quoteIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

func ensureCatalog(ctx context.Context, q dbx.DBTX) error {
	_, err := q.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+catalogTable+` (
		name     TEXT PRIMARY KEY,
		key_path TEXT NOT NULL
	)`)
	return err
}

func loadCatalog(ctx context.Context, q dbx.DBTX) (map[string]string, error) {
	type row struct{ name, keyPath string }

	rows, err := q.QueryContext(ctx, `SELECT name, key_path FROM `+catalogTable)
	if err != nil {
		return nil, err
	}
	list, err := dbx.CollectRows(rows, func(r *sql.Rows) (row, error) {
		var v row
		return v, r.Scan(&v.name, &v.keyPath)
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(list))
	for _, r := range list {
		out[r.name] = r.keyPath
	}
	return out, nil
}

// CreatePartition creates a partition whose documents are keyed by keyPath
// (a gjson path such as "id"). Creating an existing partition updates its key path.
func (s *Schema) CreatePartition(ctx context.Context, name, keyPath string) error {
	table, err := quoteIdent(name)
	if err != nil {
		return err
	}
	if keyPath == "" {
		return fmt.Errorf("partition %s: empty key path", name)
	}
	if _, err := s.tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create partition %s: %w", name, err)
	}
	if _, err := s.tx.ExecContext(ctx,
		`INSERT INTO `+catalogTable+`(name, key_path) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET key_path = excluded.key_path`, name, keyPath); err != nil {
		return fmt.Errorf("register partition %s: %w", name, err)
	}
	return nil
}

// DropPartition removes a partition and all its documents.
func (s *Schema) DropPartition(ctx context.Context, name string) error {
	table, err := quoteIdent(name)
	if err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return fmt.Errorf("drop partition %s: %w", name, err)
	}
	if _, err := s.tx.ExecContext(ctx, `DELETE FROM `+catalogTable+` WHERE name = ?`, name); err != nil {
		return fmt.Errorf("unregister partition %s: %w", name, err)
	}
	return nil
}

// fieldExpr is the SQL expression for a top-level document field. Indexes and
// queries share it so the planner can match them.
func fieldExpr(field string) string {
	return `json_extract(value, '$.` + field + `')`
}

// CreateIndex adds a secondary index over a top-level document field.
func (s *Schema) CreateIndex(ctx context.Context, partition, field string) error {
	table, err := quoteIdent(partition)
	if err != nil {
		return err
	}
	if !identRe.MatchString(field) {
		return fmt.Errorf("invalid index field %q", field)
	}
	idx := `"idx_` + partition + `_` + field + `"`
	_, err = s.tx.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS `+idx+` ON `+table+` (`+fieldExpr(field)+`)`)
	if err != nil {
		return fmt.Errorf("create index on %s.%s: %w", partition, field, err)
	}
	return nil
}

// Partitions lists the registered partition names.
func (s *Schema) Partitions(ctx context.Context) ([]string, error) {
	cat, err := loadCatalog(ctx, s.tx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cat))
	for n := range cat {
		names = append(names, n)
	}
	return names, nil
}

func (s *Schema) dropAll(ctx context.Context) error {
	names, err := s.Partitions(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := s.DropPartition(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
