// Package migrate owns the board schema: projects, sections, tasks, the
// append-only status history, the event log, users and API keys.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// Migration is one numbered schema step, named NNN_description.sql.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// loadMigrations reads every .sql file under dir of fsys, ordered by version.
// Two files claiming the same version are rejected.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	byVersion := map[int]string{}
	var steps []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return nil, fmt.Errorf("migration %s: name must start with a version: %w", entry.Name(), err)
		}
		if prev, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, entry.Name(), version)
		}
		byVersion[version] = entry.Name()
		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		steps = append(steps, Migration{Version: version, Name: entry.Name(), UpSQL: string(body)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	return steps, nil
}

// Migrate brings the workspace database up to the embedded schema and
// returns its version. All pending steps commit together or not at all.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	steps, err := loadMigrations(schemaFS, "sql")
	if err != nil {
		return 0, err
	}
	return apply(ctx, db, steps)
}

func apply(ctx context.Context, db *sql.DB, steps []Migration) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	version, err := schemaVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	for _, step := range steps {
		if step.Version <= version {
			continue
		}
		if _, err := tx.ExecContext(ctx, step.UpSQL); err != nil {
			return 0, fmt.Errorf("migration %s: %w", step.Name, err)
		}
		version = step.Version
	}
	if _, err := tx.ExecContext(ctx, `UPDATE schema_version SET version=?`, version); err != nil {
		return 0, fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// schemaVersion reads the single-row version table, creating it at 0 on a
// fresh workspace.
func schemaVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}
	var version int
	err := tx.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return 0, fmt.Errorf("init schema_version: %w", err)
		}
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return version, nil
}
