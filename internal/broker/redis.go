package broker

import (
	"context"
	"time"

	"socialfeed/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const pingTimeout = 2 * time.Second

// ConnectRedis returns nil when no address is configured, which disables the
// stream hub's Redis relay. An unreachable server is logged but the client is
// still returned; go-redis redials on the next command.
func ConnectRedis(ctx context.Context, cfg config.Config, log logrus.FieldLogger) *redis.Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.RedisAddr == "" {
		log.Info("redis relay disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	entry := log.WithField("addr", cfg.RedisAddr)
	if err := client.Ping(pingCtx).Err(); err != nil {
		entry.WithError(err).Warn("redis unreachable")
		return client
	}
	entry.Info("redis connected")
	return client
}
