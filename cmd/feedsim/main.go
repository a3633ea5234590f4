package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialfeed/internal/app"
	"socialfeed/internal/broker"
	"socialfeed/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	if err := mainRunner(mainDepsProvider()); err != nil {
		os.Exit(1)
	}
}

type mainDeps struct {
	args         []string
	loadConfig   func() config.Config
	connectRedis func(config.Config) *redis.Client
	notify       func(chan<- os.Signal, ...os.Signal)
	run          func(context.Context, config.Config, *redis.Client, <-chan os.Signal, io.Writer) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		args:         os.Args[1:],
		loadConfig:   config.Load,
		connectRedis: func(cfg config.Config) *redis.Client {
			return broker.ConnectRedis(context.Background(), cfg, logrus.WithField("component", "broker"))
		},
		notify:       signal.Notify,
		run:          Run,
	}
}

func realMain(deps mainDeps) error {
	cmd := newRootCmd(deps)
	cmd.SetArgs(deps.args)
	if err := cmd.Execute(); err != nil {
		logrus.WithError(err).Error("feedsim exited with error")
		return err
	}
	return nil
}

// flagKeys maps command line flags onto the environment keys read by
// config.Load. A flag that is set wins over the environment.
var flagKeys = map[string]string{
	"feed-limit":       "FEED_LIMIT",
	"workers":          "NOTIFY_WORKERS",
	"queue-size":       "NOTIFY_QUEUE_SIZE",
	"retries":          "NOTIFY_RETRIES",
	"shutdown-timeout": "SHUTDOWN_TIMEOUT",
	"id-scheme":        "POST_ID_SCHEME",
	"redis-addr":       "REDIS_ADDR",
	"log-level":        "LOG_LEVEL",
	"log-format":       "LOG_FORMAT",
}

func newRootCmd(deps mainDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "feedsim",
		Short:         "Run the social feed walkthrough against an in-memory network",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.loadConfig()
			rdb := deps.connectRedis(cfg)

			signals := make(chan os.Signal, 1)
			deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

			return deps.run(cmd.Context(), cfg, rdb, signals, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.Int("feed-limit", 10, "maximum posts returned by a feed")
	flags.Int("workers", 10, "notification worker goroutines")
	flags.Int("queue-size", 100, "pending notification capacity")
	flags.Int("retries", 0, "extra attempts for a failing observer callback")
	flags.Duration("shutdown-timeout", 60*time.Second, "how long shutdown waits for notifications")
	flags.String("id-scheme", "sequence", "post id scheme: sequence or uuid")
	flags.String("redis-addr", "", "redis address for the stream relay")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "text", "log format: text or json")

	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
	return cmd
}

// Run executes the walkthrough and waits for it to finish or for a signal,
// then drains notifications within cfg.ShutdownTimeout.
func Run(ctx context.Context, cfg config.Config, rdb *redis.Client, signals <-chan os.Signal, out io.Writer) error {
	a, err := app.New(cfg, rdb)
	if err != nil {
		return err
	}

	demoCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- runDemo(demoCtx, a, out)
	}()

	var demoErr error
	select {
	case demoErr = <-errCh:
	case sig := <-signals:
		a.Log.WithField("signal", fmt.Sprint(sig)).Info("interrupted")
		cancel()
		demoErr = <-errCh
	case <-ctx.Done():
		demoErr = <-errCh
	}
	if errors.Is(demoErr, context.Canceled) {
		demoErr = nil
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()
	if err := a.Close(shutdownCtx); err != nil && demoErr == nil {
		demoErr = err
	}
	return demoErr
}
