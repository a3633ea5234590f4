package social

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// stepClock advances by step on every Now call, so consecutive posts never
// share a timestamp unless step is zero.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type call struct {
	kind       string
	postID     string
	followerID string
}

// recorder is an Observer that records every callback.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) OnNewPost(post Post, followerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{kind: "new", postID: post.ID, followerID: followerID})
	return nil
}

func (r *recorder) OnPostDeleted(postID, followerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{kind: "deleted", postID: postID, followerID: followerID})
	return nil
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]call, len(r.calls))
	copy(out, r.calls)
	return out
}

func newTestNetwork(t *testing.T, opts Options) (*Network, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	if opts.Logger == nil {
		opts.Logger = logger
	}
	if opts.Clock == nil {
		opts.Clock = newStepClock(time.Second)
	}
	n := NewNetwork(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = n.Shutdown(ctx)
	})
	return n, hook
}

// drain waits for every scheduled notification to be delivered.
func drain(t *testing.T, n *Network) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func mustCreate(t *testing.T, n *Network, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := n.CreateUser(id, "name-"+id); err != nil {
			t.Fatalf("create user %s: %v", id, err)
		}
	}
}

func mustUpload(t *testing.T, n *Network, userID, content string) string {
	t.Helper()
	id, err := n.UploadPost(userID, content)
	if err != nil {
		t.Fatalf("upload post: %v", err)
	}
	return id
}

func postIDs(posts []Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
