package app

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/config"
	"taskboard/internal/engine"
	"taskboard/internal/engine/auth"
)

func TestOpenWithoutCache(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	a, err := Open(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Engine.Cache)
}

func TestOpenWiresBoardCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Cache.RedisURL = "redis://" + mr.Addr()

	ctx := context.Background()
	a, err := Open(ctx, t.TempDir(), cfg)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Engine.Cache)

	admin := auth.System()
	_, err = a.Engine.CreateProject(ctx, admin, engine.ProjectCreateOptions{ID: "p1", Name: "P"})
	require.NoError(t, err)
	_, err = a.Engine.Board(ctx, admin, "p1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("board:p1:0:0"))

	_, err = a.Engine.CreateSection(ctx, admin, "p1", "Review")
	require.NoError(t, err)
	gen, err := mr.Get("board:gen:p1")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)

	board, err := a.Engine.Board(ctx, admin, "p1")
	require.NoError(t, err)
	assert.Len(t, board.Sections, 4)
	assert.True(t, mr.Exists("board:p1:1:0"))
}

func TestOpenToleratesUnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.RedisURL = "redis://127.0.0.1:1"
	a, err := Open(context.Background(), t.TempDir(), cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Engine.Cache)
}

func TestConfigureLogging(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	require.NoError(t, ConfigureLogging(cfg))
	cfg.Log.Level = "loud"
	assert.Error(t, ConfigureLogging(cfg))
}
