package social

import "sync"

// StoreView is the read-only surface a FeedStrategy sees.
type StoreView interface {
	User(userID string) (*User, bool)
	Post(postID string) (Post, bool)
	UserPostIDs(userID string) []string
}

// Store owns users, posts and the per-user post index. Each map has its own
// lock, so every method is safe for concurrent use, but keeping posts and
// userPosts consistent with each other is the caller's job (Network holds a
// write lock around AddPost/RemovePost).
type Store struct {
	usersMu sync.RWMutex
	users   map[string]*User

	postsMu sync.RWMutex
	posts   map[string]Post

	indexMu   sync.RWMutex
	userPosts map[string][]string
}

func NewStore() *Store {
	return &Store{
		users:     map[string]*User{},
		posts:     map[string]Post{},
		userPosts: map[string][]string{},
	}
}

// AddUser inserts user and gives it an empty post index. Callers check
// UserExists first; an existing entry is replaced.
func (s *Store) AddUser(user *User) {
	s.usersMu.Lock()
	s.users[user.ID] = user
	s.usersMu.Unlock()

	s.indexMu.Lock()
	if _, ok := s.userPosts[user.ID]; !ok {
		s.userPosts[user.ID] = []string{}
	}
	s.indexMu.Unlock()
}

func (s *Store) User(userID string) (*User, bool) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[userID]
	return u, ok
}

func (s *Store) UserExists(userID string) bool {
	_, ok := s.User(userID)
	return ok
}

// AddPost records the post and appends its id to the author's index. The
// index entry must already exist (created by AddUser); otherwise only the
// post map is updated.
func (s *Store) AddPost(post Post) {
	s.postsMu.Lock()
	s.posts[post.ID] = post
	s.postsMu.Unlock()

	s.indexMu.Lock()
	if ids, ok := s.userPosts[post.UserID]; ok {
		s.userPosts[post.UserID] = append(ids, post.ID)
	}
	s.indexMu.Unlock()
}

func (s *Store) Post(postID string) (Post, bool) {
	s.postsMu.RLock()
	defer s.postsMu.RUnlock()
	p, ok := s.posts[postID]
	return p, ok
}

func (s *Store) PostExists(postID string) bool {
	_, ok := s.Post(postID)
	return ok
}

// RemovePost hard-deletes the post and drops its id from the author's index.
// It returns the removed post, or false when nothing was stored under postID.
func (s *Store) RemovePost(postID string) (Post, bool) {
	s.postsMu.Lock()
	post, ok := s.posts[postID]
	if ok {
		delete(s.posts, postID)
	}
	s.postsMu.Unlock()
	if !ok {
		return Post{}, false
	}

	s.indexMu.Lock()
	ids := s.userPosts[post.UserID]
	for i, id := range ids {
		if id == postID {
			// copy instead of in-place shift; earlier snapshots share the backing array
			next := make([]string, 0, len(ids)-1)
			next = append(next, ids[:i]...)
			s.userPosts[post.UserID] = append(next, ids[i+1:]...)
			break
		}
	}
	s.indexMu.Unlock()
	return post, true
}

// UserPostIDs returns a copy of the author's post ids in upload order. Unknown
// users and users without posts both yield an empty, non-nil slice.
func (s *Store) UserPostIDs(userID string) []string {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	ids := s.userPosts[userID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Users returns a snapshot of the user map; later inserts are not reflected.
func (s *Store) Users() map[string]*User {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	out := make(map[string]*User, len(s.users))
	for id, u := range s.users {
		out[id] = u
	}
	return out
}
