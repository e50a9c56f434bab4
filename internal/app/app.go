// Package app wires the config into the runtime dependencies shared by the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/pokedex-client/internal/config"
	"github.com/Sternrassler/pokedex-client/pkg/client"
	"github.com/Sternrassler/pokedex-client/pkg/position"
	"github.com/Sternrassler/pokedex-client/pkg/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Deps are the runtime dependencies built from a Config.
type Deps struct {
	Redis  *redis.Client
	Client *client.Client
	Repo   repository.PageRepository
	Store  position.Store
}

// New connects to Redis when configured and builds the transport and repository.
// Redis is required once configured: a failed ping is an error.
func New(ctx context.Context, cfg *config.Config) (*Deps, error) {
	deps := &Deps{}

	if opts := cfg.RedisOptions(); opts != nil {
		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")
		deps.Redis = rdb
	} else {
		log.Info().Msg("Redis disabled - no response cache, positions kept in memory")
	}

	c, err := client.New(cfg.Client(deps.Redis))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("create pokeapi client: %w", err)
	}
	deps.Client = c
	deps.Repo = repository.NewHTTPRepository(c)

	if deps.Redis != nil {
		store, err := position.NewRedisStore(deps.Redis, cfg.Redis.PositionTTL)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Store = store
	} else {
		deps.Store = position.NewMemoryStore()
	}

	return deps, nil
}

// Ready pings Redis when it is configured.
func (d *Deps) Ready(ctx context.Context) error {
	if d.Redis == nil {
		return nil
	}
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases the client and the Redis connection.
func (d *Deps) Close() {
	if d.Client != nil {
		d.Client.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
}
