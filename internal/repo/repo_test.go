package repo_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
)

const stamp = "2024-01-01T00:00:00Z"

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	_, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	r := repo.Repo{DB: conn}
	require.NoError(t, r.InsertProject(ctx, nil, domain.Project{ID: "p1", Name: "P", Assignee: domain.AssigneeSet{}, CreatedAt: stamp, UpdatedAt: stamp}))
	return r, ctx
}

func insertTask(t *testing.T, r repo.Repo, ctx context.Context, id string, sectionID *string, order int) {
	t.Helper()
	require.NoError(t, r.InsertTask(ctx, nil, domain.Task{
		ID: id, ProjectID: "p1", SectionID: sectionID, Title: id, Status: "pending",
		Assignee: domain.AssigneeSet{}, Order: order, CreatedAt: stamp, UpdatedAt: stamp,
	}))
}

func orders(t *testing.T, r repo.Repo, ctx context.Context) map[string]int {
	t.Helper()
	tasks, err := r.ListTasksByProject(ctx, nil, "p1")
	require.NoError(t, err)
	out := map[string]int{}
	for _, task := range tasks {
		out[task.ID] = task.Order
	}
	return out
}

func TestListSectionsBreaksTiesByCreation(t *testing.T) {
	r, ctx := newRepo(t)
	for _, s := range []domain.Section{
		{ID: "b", Name: "Second", Order: 1, CreatedAt: "2024-01-01T00:00:02Z"},
		{ID: "a", Name: "First", Order: 1, CreatedAt: "2024-01-01T00:00:01Z"},
		{ID: "z", Name: "Zero", Order: 0, CreatedAt: "2024-01-01T00:00:09Z"},
	} {
		s.ProjectID = "p1"
		s.UpdatedAt = s.CreatedAt
		require.NoError(t, r.InsertSection(ctx, nil, s))
	}
	got, err := r.ListSections(ctx, nil, "p1")
	require.NoError(t, err)
	var ids []string
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	require.Equal(t, []string{"z", "a", "b"}, ids)

	maxPos, err := r.MaxSectionPosition(ctx, nil, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, maxPos)
}

func TestDefaultSectionSlotIsClaimedOnce(t *testing.T) {
	r, ctx := newRepo(t)
	sec := domain.Section{ID: "s1", ProjectID: "p1", Name: "To Do", Order: 0, CreatedAt: stamp, UpdatedAt: stamp}
	ok, err := r.InsertDefaultSection(ctx, nil, sec, 0)
	require.NoError(t, err)
	require.True(t, ok)

	sec.ID = "s1-dup"
	ok, err = r.InsertDefaultSection(ctx, nil, sec, 0)
	require.NoError(t, err)
	require.False(t, ok)

	n, err := r.CountSections(ctx, nil, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestShiftStaysInsideScope(t *testing.T) {
	r, ctx := newRepo(t)
	require.NoError(t, r.InsertSection(ctx, nil, domain.Section{ID: "s1", ProjectID: "p1", Name: "A", CreatedAt: stamp, UpdatedAt: stamp}))
	s1 := "s1"
	insertTask(t, r, ctx, "t0", &s1, 0)
	insertTask(t, r, ctx, "t1", &s1, 1)
	insertTask(t, r, ctx, "t2", &s1, 2)
	insertTask(t, r, ctx, "orphan", nil, 1)

	require.NoError(t, r.ShiftRange(ctx, nil, repo.SectionScope("p1", "s1"), 0, 1, 1, "t2"))
	require.NoError(t, r.UpdatePlacement(ctx, nil, "t2", &s1, 0, stamp))
	require.Equal(t, map[string]int{"t2": 0, "t0": 1, "t1": 2, "orphan": 1}, orders(t, r, ctx))

	require.NoError(t, r.ShiftFrom(ctx, nil, repo.Scope{ProjectID: "p1"}, 0, 5, ""))
	require.Equal(t, 6, orders(t, r, ctx)["orphan"])

	n, err := r.CountInScope(ctx, nil, repo.SectionScope("p1", "s1"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	maxPos, err := r.MaxPositionInScope(ctx, nil, repo.SectionScope("p1", "missing"))
	require.NoError(t, err)
	require.Equal(t, -1, maxPos)
}

func TestStatusHistoryIsAppendOnly(t *testing.T) {
	r, ctx := newRepo(t)
	insertTask(t, r, ctx, "t1", nil, 0)
	require.NoError(t, r.AppendStatusHistory(ctx, nil, "t1", domain.StatusHistoryEntry{Status: "pending", Timestamp: stamp, ChangedBy: "u1"}))
	require.NoError(t, r.AppendStatusHistory(ctx, nil, "t1", domain.StatusHistoryEntry{Status: "completed", Timestamp: "2024-01-02T00:00:00Z", ChangedBy: "u2"}))

	_, err := r.DB.ExecContext(ctx, `UPDATE task_status_history SET status='pending'`)
	require.Error(t, err)

	got, err := r.ListStatusHistory(ctx, nil, "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "pending", got[0].Status)
	require.Equal(t, "completed", got[1].Status)
	require.Equal(t, "u2", got[1].ChangedBy)
}

func TestMissingRowsMapToErrNotFound(t *testing.T) {
	r, ctx := newRepo(t)
	_, err := r.GetTask(ctx, nil, "nope")
	require.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.GetSection(ctx, nil, "nope")
	require.ErrorIs(t, err, repo.ErrNotFound)
	require.ErrorIs(t, r.DeleteSection(ctx, nil, "nope"), repo.ErrNotFound)
	require.ErrorIs(t, r.UpdatePlacement(ctx, nil, "nope", nil, 0, stamp), repo.ErrNotFound)
}

func TestAPIKeyLookupByHash(t *testing.T) {
	r, ctx := newRepo(t)
	require.Equal(t, repo.HashAPIKey("secret"), repo.HashAPIKey("  secret "))
	require.NoError(t, r.InsertAPIKey(ctx, nil, domain.APIKey{ID: "k1", UserID: "u1", Role: "member", KeyHash: repo.HashAPIKey("secret")}))

	key, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("secret"))
	require.NoError(t, err)
	require.Equal(t, "u1", key.UserID)
	require.NotEmpty(t, key.CreatedAt)

	_, err = r.GetAPIKeyByHash(ctx, repo.HashAPIKey("other"))
	require.ErrorIs(t, err, repo.ErrNotFound)

	require.Error(t, r.InsertAPIKey(ctx, nil, domain.APIKey{ID: "k2", UserID: "u1"}))
}

func TestLatestEventsCursorIsExclusive(t *testing.T) {
	r, ctx := newRepo(t)
	for i := 0; i < 5; i++ {
		_, err := r.DB.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
			stamp, "task.created", "p1", "task", "t", "u1", "{}")
		require.NoError(t, err)
	}
	first, err := r.LatestEvents(ctx, repo.EventFilter{ProjectID: "p1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.EqualValues(t, 5, first[0].ID)

	next, err := r.LatestEvents(ctx, repo.EventFilter{ProjectID: "p1", Limit: 2, Cursor: first[1].ID})
	require.NoError(t, err)
	require.Len(t, next, 2)
	require.EqualValues(t, 3, next[0].ID)

	none, err := r.LatestEvents(ctx, repo.EventFilter{ProjectID: "p1", Type: "section.created"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestUsersByIDsSpansBatches(t *testing.T) {
	r, ctx := newRepo(t)
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	var ids []string
	for i := 0; i < 1201; i++ {
		id := fmt.Sprintf("u%04d", i)
		ids = append(ids, id)
		require.NoError(t, r.UpsertUser(ctx, tx, domain.User{UserInfo: domain.UserInfo{ID: id, FirstName: id}, CreatedAt: stamp}))
	}
	require.NoError(t, tx.Commit())

	got, err := r.UsersByIDs(ctx, nil, append(ids, "missing"))
	require.NoError(t, err)
	require.Len(t, got, 1201)
	require.Equal(t, "u1200", got["u1200"].FirstName)
	require.NotContains(t, got, "missing")

	empty, err := r.UsersByIDs(ctx, nil, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}
