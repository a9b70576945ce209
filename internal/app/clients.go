package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/selftune/selftune-backend/internal/pkg/envutil"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/temporalx"
)

type Clients struct {
	Redis    *goredis.Client
	Temporal temporalsdkclient.Client
}

// wireClients builds the optional external clients. Both Redis and Temporal
// are feature gates: without REDIS_ADDR the catalog cache is skipped, without
// TEMPORAL_ADDRESS tuning sessions store results but never launch chains.
func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	var rdb *goredis.Client
	if addr := envutil.GetEnv("REDIS_ADDR", "", log); addr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: envutil.GetEnv("REDIS_PASSWORD", "", log),
			DB:       envutil.GetEnvAsInt("REDIS_DB", 0, log),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			return Clients{}, fmt.Errorf("redis ping: %w", err)
		}
	}

	tc, err := temporalx.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}

	return Clients{Redis: rdb, Temporal: tc}, nil
}

func (c Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
