package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	v1, err := Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	v2, err := Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestStatusHistoryRejectsUpdates(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	_, err = Migrate(ctx, conn)
	require.NoError(t, err)

	ts := "2024-01-01T00:00:00Z"
	_, err = conn.ExecContext(ctx, `INSERT INTO projects(id,name,created_at,updated_at) VALUES ('p1','P',?,?)`, ts, ts)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,status,position,created_at,updated_at) VALUES ('t1','p1','T','pending',0,?,?)`, ts, ts)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO task_status_history(task_id,status,changed_by,changed_at) VALUES ('t1','pending','u1',?)`, ts)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, `UPDATE task_status_history SET status='completed' WHERE task_id='t1'`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")
}

func TestLoadMigrationsOrdersAndRejectsDuplicates(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/010_later.sql":  {Data: []byte("SELECT 1;")},
		"sql/002_second.sql": {Data: []byte("SELECT 2;")},
		"sql/README.md":      {Data: []byte("notes")},
	}
	steps, err := loadMigrations(fsys, "sql")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 2, steps[0].Version)
	assert.Equal(t, 10, steps[1].Version)

	fsys["sql/002_clash.sql"] = &fstest.MapFile{Data: []byte("SELECT 3;")}
	_, err = loadMigrations(fsys, "sql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share version 2")

	_, err = loadMigrations(fstest.MapFS{"sql/init.sql": {Data: []byte("")}}, "sql")
	require.Error(t, err)
}

func TestFailedStepLeavesVersionUntouched(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	v, err := Migrate(ctx, conn)
	require.NoError(t, err)

	_, err = apply(ctx, conn, []Migration{
		{Version: v + 1, Name: "ok.sql", UpSQL: "CREATE TABLE extra(id TEXT);"},
		{Version: v + 2, Name: "bad.sql", UpSQL: "NOT SQL;"},
	})
	require.Error(t, err)
	var got int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT version FROM schema_version`).Scan(&got))
	assert.Equal(t, v, got)
	_, err = conn.ExecContext(ctx, `SELECT * FROM extra`)
	require.Error(t, err)
}
