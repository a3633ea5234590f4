package app

import (
	"context"
	"fmt"
	"os"

	"socialfeed/internal/config"
	"socialfeed/internal/social"
	"socialfeed/internal/stream"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type App struct {
	Cfg     config.Config
	Network *social.Network
	Stream  *stream.Hub
	Redis   *redis.Client
	Log     *logrus.Logger
}

// New wires a Network and a stream hub from cfg. rdb may be nil, in which
// case the hub only delivers to local clients.
func New(cfg config.Config, rdb *redis.Client) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	ids, err := social.NewIDGenerator(cfg.PostIDScheme)
	if err != nil {
		return nil, err
	}

	network := social.NewNetwork(social.Options{
		FeedLimit:       cfg.FeedLimit,
		NotifyWorkers:   cfg.NotifyWorkers,
		NotifyQueueSize: cfg.NotifyQueueSize,
		NotifyRetries:   cfg.NotifyRetries,
		IDs:             ids,
		Logger:          log.WithField("component", "network"),
	})

	return &App{
		Cfg:     cfg,
		Network: network,
		Stream:  stream.NewHub(rdb, log.WithField("component", "stream")),
		Redis:   rdb,
		Log:     log,
	}, nil
}

func NewLogger(cfg config.Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	log.SetLevel(lvl)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

// Close drains notifications within ctx, then stops the hub and the Redis
// client. The drain error is returned after everything is released.
func (a *App) Close(ctx context.Context) error {
	err := a.Network.Shutdown(ctx)
	a.Stream.Close()
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	return err
}
