package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"socialfeed/internal/social"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
)

func readEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.Send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for event")
	}
	return Event{}
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected message %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubNewPost(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("alice")
	defer hub.Unregister(client)

	post := social.NewPost("POST_1", "bob", "hello", time.Now())
	if err := hub.OnNewPost(post, "alice"); err != nil {
		t.Fatalf("on new post: %v", err)
	}

	ev := readEvent(t, client)
	if ev.Type != EventNewPost || ev.FollowerID != "alice" || ev.Post == nil || ev.Post.Content != "hello" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Origin != hub.ID() {
		t.Fatalf("expected origin to be the hub id")
	}
}

func TestHubPostDeletedOnlyForRecipient(t *testing.T) {
	hub := NewHub(nil, nil)
	alice := hub.Register("alice")
	bob := hub.Register("bob")
	defer hub.Unregister(alice)
	defer hub.Unregister(bob)

	_ = hub.OnPostDeleted("POST_7", "alice")

	ev := readEvent(t, alice)
	if ev.Type != EventPostDeleted || ev.PostID != "POST_7" || ev.Post != nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	expectSilence(t, bob)
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "feed:abc:events" {
		t.Fatalf("unexpected channel %s", ch)
	}
	if userIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected user id")
	}
	if userIDFromChannel("bad") != "" || userIDFromChannel("feed::events") != "" {
		t.Fatalf("expected empty user id")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("alice")
	hub.Unregister(client)
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
	_ = hub.OnPostDeleted("POST_1", "alice")
}

func TestHubFullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("alice")
	defer hub.Unregister(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(client.Send)+10; i++ {
			_ = hub.OnPostDeleted("POST_1", "alice")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a full client")
	}
}

func TestHubRedisRelayBetweenHubs(t *testing.T) {
	s := miniredis.RunT(t)
	rdbA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	rdbB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdbA.Close()
	defer rdbB.Close()

	hubA := NewHub(rdbA, nil)
	hubB := NewHub(rdbB, nil)
	defer hubA.Close()
	defer hubB.Close()

	local := hubA.Register("alice")
	remote := hubB.Register("alice")
	defer hubA.Unregister(local)
	defer hubB.Unregister(remote)

	post := social.NewPost("POST_1", "bob", "ping", time.Now())
	if err := hubA.OnNewPost(post, "alice"); err != nil {
		t.Fatalf("on new post: %v", err)
	}

	if ev := readEvent(t, local); ev.PostID != "POST_1" {
		t.Fatalf("unexpected local event %+v", ev)
	}
	if ev := readEvent(t, remote); ev.PostID != "POST_1" || ev.Origin != hubA.ID() {
		t.Fatalf("unexpected relayed event %+v", ev)
	}
	// hubA must not deliver its own echo a second time
	expectSilence(t, local)
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	logger, hook := test.NewNullLogger()
	hub := NewHub(client, logger)
	defer hub.Close()
	server.Close()

	ws := hub.Register("alice")
	defer hub.Unregister(ws)

	if err := hub.OnPostDeleted("POST_1", "alice"); err != nil {
		t.Fatalf("expected publish failure to be swallowed: %v", err)
	}
	readEvent(t, ws)

	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "redis publish error" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected publish error logged")
	}
}

func TestHubAsNetworkObserver(t *testing.T) {
	logger, _ := test.NewNullLogger()
	n := social.NewNetwork(social.Options{Logger: logger})
	defer func() { _ = n.Shutdown(context.Background()) }()
	hub := NewHub(nil, logger)
	for _, id := range []string{"alice", "bob"} {
		if _, err := n.CreateUser(id, id); err != nil {
			t.Fatalf("create user: %v", err)
		}
		n.Subscribe(hub, id)
	}
	if err := n.FollowUser("alice", "bob"); err != nil {
		t.Fatalf("follow: %v", err)
	}

	client := hub.Register("alice")
	defer hub.Unregister(client)

	id, err := n.UploadPost("bob", "hi alice")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	ev := readEvent(t, client)
	if ev.Type != EventNewPost || ev.PostID != id || ev.FollowerID != "alice" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
