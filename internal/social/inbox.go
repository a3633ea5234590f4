package social

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrInboxStopped = errors.New("inbox stopped")

// Inbox is an Observer that queues new posts for one user. Events delivered
// for other recipients are ignored, so one Inbox can be subscribed broadly.
type Inbox struct {
	userID string
	active atomic.Bool

	mu      sync.Mutex
	posts   []Post
	deleted []string
	signal  chan struct{}
}

func NewInbox(userID string) *Inbox {
	in := &Inbox{
		userID: userID,
		signal: make(chan struct{}),
	}
	in.active.Store(true)
	return in
}

func (in *Inbox) UserID() string { return in.userID }

func (in *Inbox) OnNewPost(post Post, followerID string) error {
	if !in.active.Load() || followerID != in.userID {
		return nil
	}
	in.mu.Lock()
	in.posts = append(in.posts, post)
	in.wakeLocked()
	in.mu.Unlock()
	return nil
}

func (in *Inbox) OnPostDeleted(postID, followerID string) error {
	if !in.active.Load() || followerID != in.userID {
		return nil
	}
	in.mu.Lock()
	in.deleted = append(in.deleted, postID)
	in.mu.Unlock()
	return nil
}

// Poll returns the oldest queued post without waiting.
func (in *Inbox) Poll() (Post, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.posts) == 0 {
		return Post{}, false
	}
	p := in.posts[0]
	in.posts = in.posts[1:]
	return p, true
}

// Next waits for a post, ctx cancellation, or Stop.
func (in *Inbox) Next(ctx context.Context) (Post, error) {
	for {
		in.mu.Lock()
		if len(in.posts) > 0 {
			p := in.posts[0]
			in.posts = in.posts[1:]
			in.mu.Unlock()
			return p, nil
		}
		wait := in.signal
		in.mu.Unlock()

		if !in.active.Load() {
			return Post{}, ErrInboxStopped
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return Post{}, ctx.Err()
		}
	}
}

// Deleted returns the ids of deleted posts seen so far.
func (in *Inbox) Deleted() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, len(in.deleted))
	copy(out, in.deleted)
	return out
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.posts)
}

// Stop makes the inbox ignore further events and releases waiters.
func (in *Inbox) Stop() {
	if !in.active.Swap(false) {
		return
	}
	in.mu.Lock()
	in.wakeLocked()
	in.mu.Unlock()
}

func (in *Inbox) Active() bool { return in.active.Load() }

func (in *Inbox) wakeLocked() {
	close(in.signal)
	in.signal = make(chan struct{})
}
