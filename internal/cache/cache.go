package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/domain"
	"taskboard/internal/engine"
)

// BoardCache stores assembled boards in Redis. Any Redis failure falls back
// to building the board from the store; the request never fails because of
// the cache.
type BoardCache struct {
	redis *redis.Client
	ttl   time.Duration
}

var _ engine.Cache = (*BoardCache)(nil)

// NewBoardCache returns a cache over client. A zero ttl disables writes.
func NewBoardCache(client *redis.Client, ttl time.Duration) *BoardCache {
	if ttl < 0 {
		ttl = 0
	}
	return &BoardCache{redis: client, ttl: ttl}
}

// Connect parses a redis:// URL, following the REDIS_URL convention.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Get serves the board for the project's current generation. The generation
// is read before load runs, so a build that raced a write is stored under a
// key no later read uses.
func (c *BoardCache) Get(ctx context.Context, projectID string, load engine.BoardLoader) (domain.Board, error) {
	key, versioned := c.versionedKey(ctx, projectID)
	if versioned {
		if b, ok := c.load(ctx, projectID, key); ok {
			return b, nil
		}
	}
	b, err := load(ctx, projectID)
	if err != nil {
		return domain.Board{}, err
	}
	if versioned {
		c.store(ctx, projectID, key, b)
	}
	return b, nil
}

// Evict bumps the project's generation. Entries under the old generation
// expire with their TTL.
func (c *BoardCache) Evict(ctx context.Context, projectID string) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Incr(ctx, generationKey(projectID)).Err(); err != nil {
		log.WithError(err).WithField("project_id", projectID).Warn("board cache evict failed")
	}
}

// EvictUsers invalidates every board, since any of them may show the
// identity of a changed user.
func (c *BoardCache) EvictUsers(ctx context.Context) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Incr(ctx, usersGenerationKey).Err(); err != nil {
		log.WithError(err).Warn("board cache user evict failed")
	}
}

func (c *BoardCache) versionedKey(ctx context.Context, projectID string) (string, bool) {
	if c == nil || c.redis == nil {
		return "", false
	}
	vals, err := c.redis.MGet(ctx, generationKey(projectID), usersGenerationKey).Result()
	if err != nil {
		log.WithError(err).WithField("project_id", projectID).Warn("board cache read failed")
		return "", false
	}
	return boardKey(projectID, generation(vals[0]), generation(vals[1])), true
}

func (c *BoardCache) load(ctx context.Context, projectID, key string) (domain.Board, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).WithField("project_id", projectID).Warn("board cache read failed")
		}
		return domain.Board{}, false
	}
	var b domain.Board
	if err := json.Unmarshal(data, &b); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return domain.Board{}, false
	}
	return b, true
}

func (c *BoardCache) store(ctx context.Context, projectID, key string, b domain.Board) {
	if c.ttl == 0 {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("project_id", projectID).Warn("board cache write failed")
	}
}

const usersGenerationKey = "board:gen:users"

func generationKey(projectID string) string {
	return "board:gen:" + projectID
}

func boardKey(projectID string, gen, usersGen int64) string {
	return fmt.Sprintf("board:%s:%d:%d", projectID, gen, usersGen)
}

// generation reads an MGET value; a missing counter is generation 0.
func generation(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
