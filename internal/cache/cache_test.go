package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/domain"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// boardKeys lists the cached board entries of a project.
func boardKeys(mr *miniredis.Miniredis, projectID string) []string {
	var out []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "board:"+projectID+":") {
			out = append(out, k)
		}
	}
	return out
}

func sampleBoard(projectID string) domain.Board {
	sectionID := "s1"
	return domain.Board{
		ProjectID: projectID,
		Sections: []domain.BoardSection{{
			Section: domain.Section{ID: sectionID, ProjectID: projectID, Name: "To Do", IsDefault: true},
			Tasks: []domain.TaskCard{{
				Task: domain.Task{
					ID: "t1", ProjectID: projectID, SectionID: &sectionID, Title: "Write code",
					Assignee:      domain.AssigneeSet{"u1"},
					Status:        "pending",
					StatusHistory: []domain.StatusHistoryEntry{{Status: "pending", Timestamp: "2024-01-01T00:00:00Z", ChangedBy: "u1"}},
					Attachments:   []domain.Attachment{},
					Subtasks:      []domain.Subtask{},
				},
				AssigneeInfo: []domain.UserInfo{{ID: "u1", FirstName: "Ada"}},
			}},
		}},
	}
}

func TestBoardCacheMissThenHit(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	c := NewBoardCache(client, time.Minute)

	calls := 0
	load := func(_ context.Context, id string) (domain.Board, error) {
		calls++
		return sampleBoard(id), nil
	}
	first, err := c.Get(ctx, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Equal(t, []string{boardKey("p1", 0, 0)}, boardKeys(mr, "p1"))
	ttl := mr.TTL(boardKey("p1", 0, 0))
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl %v", ttl)

	second, err := c.Get(ctx, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestBoardCacheEvict(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	c := NewBoardCache(client, time.Minute)
	_, err := c.Get(ctx, "p1", func(_ context.Context, id string) (domain.Board, error) { return sampleBoard(id), nil })
	require.NoError(t, err)
	require.True(t, mr.Exists(boardKey("p1", 0, 0)))

	c.Evict(ctx, "p1")
	calls := 0
	_, err = c.Get(ctx, "p1", func(_ context.Context, id string) (domain.Board, error) {
		calls++
		return sampleBoard(id), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(boardKey("p1", 1, 0)))
}

func TestEvictDuringLoadDiscardsTheBuild(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	c := NewBoardCache(client, time.Minute)

	stale := sampleBoard("p1")
	_, err := c.Get(ctx, "p1", func(ctx context.Context, id string) (domain.Board, error) {
		c.Evict(ctx, id)
		return stale, nil
	})
	require.NoError(t, err)

	fresh := sampleBoard("p1")
	fresh.Sections[0].Tasks = []domain.TaskCard{}
	got, err := c.Get(ctx, "p1", func(context.Context, string) (domain.Board, error) { return fresh, nil })
	require.NoError(t, err)
	assert.Empty(t, got.Sections[0].Tasks)
}

func TestEvictUsersInvalidatesEveryProject(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	c := NewBoardCache(client, time.Minute)
	calls := 0
	load := func(_ context.Context, id string) (domain.Board, error) {
		calls++
		return sampleBoard(id), nil
	}
	for _, id := range []string{"p1", "p2", "p1", "p2"} {
		_, err := c.Get(ctx, id, load)
		require.NoError(t, err)
	}
	require.Equal(t, 2, calls)

	c.EvictUsers(ctx)
	for _, id := range []string{"p1", "p2"} {
		_, err := c.Get(ctx, id, load)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, calls)
	assert.True(t, mr.Exists(boardKey("p2", 0, 1)))
}

func TestBoardCacheLoadErrorIsNotCached(t *testing.T) {
	mr, client := newRedis(t)
	c := NewBoardCache(client, time.Minute)
	_, err := c.Get(context.Background(), "p1", func(context.Context, string) (domain.Board, error) {
		return domain.Board{}, errors.New("boom")
	})
	require.Error(t, err)
	assert.Empty(t, boardKeys(mr, "p1"))
}

func TestBoardCacheFallsBackWhenRedisIsDown(t *testing.T) {
	mr, client := newRedis(t)
	c := NewBoardCache(client, time.Minute)
	mr.Close()

	calls := 0
	b, err := c.Get(context.Background(), "p1", func(_ context.Context, id string) (domain.Board, error) {
		calls++
		return sampleBoard(id), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "p1", b.ProjectID)
	c.Evict(context.Background(), "p1")
	c.EvictUsers(context.Background())
}

func TestBoardCacheDropsCorruptEntries(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set(boardKey("p1", 0, 0), "{not json"))
	c := NewBoardCache(client, time.Minute)

	calls := 0
	_, err := c.Get(context.Background(), "p1", func(_ context.Context, id string) (domain.Board, error) {
		calls++
		return sampleBoard(id), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	_, err = c.Get(context.Background(), "p1", func(_ context.Context, id string) (domain.Board, error) {
		calls++
		return sampleBoard(id), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestZeroTTLDisablesWrites(t *testing.T) {
	mr, client := newRedis(t)
	c := NewBoardCache(client, 0)
	_, err := c.Get(context.Background(), "p1", func(_ context.Context, id string) (domain.Board, error) { return sampleBoard(id), nil })
	require.NoError(t, err)
	assert.Empty(t, boardKeys(mr, "p1"))
}
