package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/cache"
	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/engine"
	"taskboard/internal/migrate"
)

// App bundles the opened workspace: database, engine and optional board cache.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	redis     *redis.Client
}

// Open migrates the workspace database and wires the engine. When a Redis URL
// is configured but unreachable the app starts without a cache.
func Open(ctx context.Context, workspace string, cfg *config.Config) (*App, error) {
	if cfg == nil {
		loaded, err := config.Load(workspace)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.WithFields(log.Fields{"db": db.Path(workspace), "schema_version": version}).Debug("database ready")

	a := &App{Workspace: workspace, Config: cfg, DB: conn, Engine: engine.New(conn, cfg)}
	if url := redisURL(cfg); url != "" {
		client, err := cache.Connect(ctx, url)
		if err != nil {
			log.WithError(err).Warn("board cache disabled")
		} else {
			ttl, _ := cfg.CacheTTL()
			a.redis = client
			a.Engine.Cache = cache.NewBoardCache(client, ttl)
			log.WithField("ttl", ttl.String()).Info("board cache enabled")
		}
	}
	return a, nil
}

// redisURL prefers the config value and falls back to REDIS_URL.
func redisURL(cfg *config.Config) string {
	if v := strings.TrimSpace(cfg.Cache.RedisURL); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("REDIS_URL"))
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return a.DB.Close()
}

// ConfigureLogging applies log.level and log.format.
func ConfigureLogging(cfg *config.Config) error {
	level := strings.TrimSpace(cfg.Log.Level)
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("config.log.level: %w", err)
	}
	log.SetLevel(lvl)
	if strings.EqualFold(cfg.Log.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
