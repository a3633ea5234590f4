package broker

import (
	"context"
	"testing"

	"socialfeed/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestConnectRedisEmpty(t *testing.T) {
	logger, hook := test.NewNullLogger()
	client := ConnectRedis(context.Background(), config.Config{RedisAddr: ""}, logger)
	if client != nil {
		t.Fatalf("expected nil redis client when addr empty")
	}
	if hook.LastEntry() == nil || hook.LastEntry().Message != "redis relay disabled" {
		t.Fatalf("expected disabled relay logged")
	}
}

func TestConnectRedisConfigured(t *testing.T) {
	s := miniredis.RunT(t)
	s.RequireAuth("secret")
	logger, hook := test.NewNullLogger()

	client := ConnectRedis(context.Background(), config.Config{RedisAddr: s.Addr(), RedisPassword: "secret"}, logger)
	if client == nil {
		t.Fatalf("expected redis client")
	}
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Message != "redis connected" || entry.Data["addr"] != s.Addr() {
		t.Fatalf("expected connection logged")
	}
}

func TestConnectRedisUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()
	logger, hook := test.NewNullLogger()

	client := ConnectRedis(context.Background(), config.Config{RedisAddr: addr}, logger)
	if client == nil {
		t.Fatalf("expected client even when unreachable")
	}
	defer client.Close()

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel || entry.Message != "redis unreachable" {
		t.Fatalf("expected unreachable warning")
	}
}

func TestConnectRedisWrongPassword(t *testing.T) {
	s := miniredis.RunT(t)
	s.RequireAuth("secret")
	logger, hook := test.NewNullLogger()

	client := ConnectRedis(context.Background(), config.Config{RedisAddr: s.Addr(), RedisPassword: "wrong"}, logger)
	defer client.Close()

	if hook.LastEntry() == nil || hook.LastEntry().Message != "redis unreachable" {
		t.Fatalf("expected auth failure logged")
	}
}
