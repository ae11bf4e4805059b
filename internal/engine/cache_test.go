package engine_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/redis/go-redis/v9"

	"taskboard/internal/cache"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
)

// newCachedEnv is newTestEnv with a Redis board cache in front of reads.
func newCachedEnv(t *testing.T) (testEnv, *cache.BoardCache) {
	t.Helper()
	env := newTestEnv(t)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bc := cache.NewBoardCache(client, time.Minute)
	env.Engine.Cache = bc
	return env, bc
}

// assertBoardFresh reads the board twice, once possibly from a miss and once
// from the cache, and compares both against a direct build.
func assertBoardFresh(t *testing.T, env testEnv, step string) {
	t.Helper()
	want, err := env.Engine.BuildBoard(env.Ctx, env.Admin, "proj-1")
	if err != nil {
		t.Fatalf("%s: build: %v", step, err)
	}
	for i := 0; i < 2; i++ {
		got, err := env.Engine.Board(env.Ctx, env.Admin, "proj-1")
		if err != nil {
			t.Fatalf("%s: board: %v", step, err)
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("%s: cached board is stale (-want +got):\n%s", step, diff)
		}
	}
}

func TestCachedBoardFollowsEveryMutation(t *testing.T) {
	env, _ := newCachedEnv(t)
	sections := env.sections(t)
	todo, doing := sections[0].ID, sections[1].ID
	assertBoardFresh(t, env, "initial")

	a := env.create(t, "A", todo)
	b := env.create(t, "B", todo)
	assertBoardFresh(t, env, "create task")

	env.move(t, a.ID, doing, 0)
	assertBoardFresh(t, env, "move task")

	status, title := "completed", "B2"
	if _, err := env.Engine.UpdateTask(env.Ctx, env.Admin, engine.TaskUpdateOptions{TaskID: b.ID, Status: &status, Title: &title}); err != nil {
		t.Fatal(err)
	}
	assertBoardFresh(t, env, "update task")

	custom, err := env.Engine.CreateSection(env.Ctx, env.Admin, "proj-1", "Backlog")
	if err != nil {
		t.Fatal(err)
	}
	assertBoardFresh(t, env, "create section")

	name, order := "Icebox", 0
	if _, err := env.Engine.UpdateSection(env.Ctx, env.Admin, custom.ID, engine.SectionUpdate{Name: &name, Order: &order}); err != nil {
		t.Fatal(err)
	}
	assertBoardFresh(t, env, "update section")

	if err := env.Engine.DeleteSection(env.Ctx, env.Admin, custom.ID); err != nil {
		t.Fatal(err)
	}
	assertBoardFresh(t, env, "delete section")

	if err := env.Engine.DeleteTask(env.Ctx, env.Admin, b.ID); err != nil {
		t.Fatal(err)
	}
	assertBoardFresh(t, env, "delete task")

	members := domain.NewAssigneeSet("u1", "u2")
	if _, err := env.Engine.UpdateProject(env.Ctx, env.Admin, "proj-1", engine.ProjectUpdateOptions{Assignee: &members}); err != nil {
		t.Fatal(err)
	}
	assertBoardFresh(t, env, "update project")
}

func TestBoardBuiltBeforeConcurrentMoveIsNotServed(t *testing.T) {
	env, bc := newCachedEnv(t)
	sections := env.sections(t)
	todo, done := sections[0].ID, sections[2].ID
	a := env.create(t, "A", todo)

	// The move commits after the build has read the store and before the
	// build is stored.
	_, err := bc.Get(env.Ctx, "proj-1", func(ctx context.Context, id string) (domain.Board, error) {
		built, err := env.Engine.BuildBoard(ctx, env.Admin, id)
		if err != nil {
			return domain.Board{}, err
		}
		env.move(t, a.ID, done, 0)
		return built, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	board, err := env.Engine.Board(env.Ctx, env.Admin, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if n := len(board.Sections[0].Tasks); n != 0 {
		t.Fatalf("first section still holds %d task(s) after the move", n)
	}
	if got := board.Sections[2].Tasks; len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("completed section = %+v, want task %s", got, a.ID)
	}
}

func TestUserRenameRefreshesCachedBoard(t *testing.T) {
	env, _ := newCachedEnv(t)
	todo := env.sections(t)[0].ID
	if _, err := env.Engine.CreateTask(env.Ctx, env.Admin, engine.TaskCreateOptions{
		ProjectID: "proj-1", SectionID: todo, Title: "A", Assignee: domain.AssigneeSet{"u1"},
	}); err != nil {
		t.Fatal(err)
	}
	assertBoardFresh(t, env, "before rename")

	if _, err := env.Engine.UpsertUser(env.Ctx, env.Admin, domain.User{UserInfo: domain.UserInfo{
		ID: "u1", FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com",
	}}); err != nil {
		t.Fatal(err)
	}
	board, err := env.Engine.Board(env.Ctx, env.Admin, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	info := board.Sections[0].Tasks[0].AssigneeInfo
	if len(info) != 1 || info[0].FirstName != "Grace" || info[0].Email != "grace@example.com" {
		t.Fatalf("assigneeInfo = %+v, want the renamed user", info)
	}
	assertBoardFresh(t, env, "after rename")
}
