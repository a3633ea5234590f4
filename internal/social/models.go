package social

import (
	"sort"
	"sync"
	"time"
)

type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPost builds a post with an explicit id and timestamp, for reconstruction and tests.
func NewPost(id, userID, content string, createdAt time.Time) Post {
	return Post{
		ID:        id,
		UserID:    userID,
		Content:   content,
		CreatedAt: createdAt,
	}
}

// PostFactory assigns ids and timestamps to new posts. Safe for concurrent use
// as long as its generator and clock are.
type PostFactory struct {
	ids   IDGenerator
	clock Clock
}

func NewPostFactory(ids IDGenerator, clock Clock) *PostFactory {
	if ids == nil {
		ids = NewSequenceGenerator(postIDPrefix)
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &PostFactory{ids: ids, clock: clock}
}

func (f *PostFactory) Create(userID, content string) Post {
	return NewPost(f.ids.New(), userID, content, f.clock.Now())
}

// User is created once and never destroyed. Name is immutable; the following
// set has its own lock so follow/unfollow need no outer synchronization.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	mu        sync.RWMutex
	following map[string]struct{}
}

func NewUser(id, name string) *User {
	return &User{
		ID:        id,
		Name:      name,
		following: map[string]struct{}{},
	}
}

// Follow adds userID to the following set. Self-follow is ignored and
// reported as false.
func (u *User) Follow(userID string) bool {
	if userID == u.ID {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.following[userID] = struct{}{}
	return true
}

func (u *User) Unfollow(userID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.following, userID)
}

func (u *User) IsFollowing(userID string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.following[userID]
	return ok
}

// Following returns a sorted snapshot of followed user ids.
func (u *User) Following() []string {
	u.mu.RLock()
	ids := make([]string, 0, len(u.following))
	for id := range u.following {
		ids = append(ids, id)
	}
	u.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
