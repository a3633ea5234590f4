package social

import (
	"context"
	"fmt"
	"sync"

	"socialfeed/internal/worker"

	"github.com/sirupsen/logrus"
)

// Options configures a Network. Zero values fall back to defaults.
type Options struct {
	FeedLimit       int
	NotifyWorkers   int
	NotifyQueueSize int
	NotifyRetries   int

	Strategy FeedStrategy
	IDs      IDGenerator
	Clock    Clock
	Logger   logrus.FieldLogger
}

// Network is the single entry point for reads and writes. Post and user
// mutations take the write lock; reads share the read lock. Notifications
// are handed to the dispatcher after the lock is released.
type Network struct {
	mu         sync.RWMutex
	store      *Store
	registry   *Registry
	strategy   FeedStrategy
	posts      *PostFactory
	pool       *worker.Pool
	dispatcher *Dispatcher
	log        logrus.FieldLogger
}

func NewNetwork(opts Options) *Network {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	strategy := opts.Strategy
	if strategy == nil {
		strategy = NewRecentFeed(opts.FeedLimit)
	}

	store := NewStore()
	registry := NewRegistry()
	pool := worker.New(worker.Config{
		Workers:   opts.NotifyWorkers,
		QueueSize: opts.NotifyQueueSize,
	}, log.WithField("component", "notify_pool"))

	return &Network{
		store:      store,
		registry:   registry,
		strategy:   strategy,
		posts:      NewPostFactory(opts.IDs, opts.Clock),
		pool:       pool,
		dispatcher: NewDispatcher(store, registry, pool, opts.NotifyRetries, log.WithField("component", "dispatcher")),
		log:        log,
	}
}

func (n *Network) CreateUser(userID, name string) (*User, error) {
	if userID == "" {
		return nil, invalidArgument("user id required")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.store.UserExists(userID) {
		return nil, fmt.Errorf("user %q: %w", userID, ErrAlreadyExists)
	}
	user := NewUser(userID, name)
	n.store.AddUser(user)
	n.registry.Ensure(userID)

	n.log.WithField("user", userID).Debug("user created")
	return user, nil
}

// UploadPost stores a new post and returns its id without waiting for
// notification delivery.
func (n *Network) UploadPost(userID, content string) (string, error) {
	n.mu.RLock()
	exists := n.store.UserExists(userID)
	n.mu.RUnlock()
	if !exists {
		return "", userNotFound(userID)
	}

	post := n.posts.Create(userID, content)

	n.mu.Lock()
	if n.store.PostExists(post.ID) {
		n.mu.Unlock()
		return "", fmt.Errorf("post %q: %w", post.ID, ErrConflict)
	}
	n.store.AddPost(post)
	n.mu.Unlock()

	n.log.WithFields(logrus.Fields{"user": userID, "post_id": post.ID}).Debug("post uploaded")
	n.dispatcher.NotifyNewPost(post, userID)
	return post.ID, nil
}

// DeletePost removes postID if userID wrote it. An unknown post reports
// false with no error; a post by someone else is ErrForbidden.
func (n *Network) DeletePost(userID, postID string) (bool, error) {
	n.mu.Lock()
	post, ok := n.store.Post(postID)
	if !ok {
		n.mu.Unlock()
		return false, nil
	}
	if post.UserID != userID {
		n.mu.Unlock()
		return false, fmt.Errorf("user %q deleting post %q of %q: %w", userID, postID, post.UserID, ErrForbidden)
	}
	n.store.RemovePost(postID)
	n.mu.Unlock()

	n.log.WithFields(logrus.Fields{"user": userID, "post_id": postID}).Debug("post deleted")
	n.dispatcher.NotifyPostDeleted(postID, userID)
	return true, nil
}

// FollowUser validates under the read lock, then mutates the user's own
// following set outside it. Feed reads are not serialized against this.
func (n *Network) FollowUser(userID, followID string) error {
	n.mu.RLock()
	user, ok := n.store.User(userID)
	targetExists := n.store.UserExists(followID)
	n.mu.RUnlock()

	if !ok {
		return userNotFound(userID)
	}
	if !targetExists {
		return userNotFound(followID)
	}
	if userID == followID {
		return invalidArgument("user %q cannot follow themselves", userID)
	}
	user.Follow(followID)
	return nil
}

// UnfollowUser only requires userID to exist; unfollowing someone not
// followed, or oneself, is a no-op.
func (n *Network) UnfollowUser(userID, unfollowID string) error {
	n.mu.RLock()
	user, ok := n.store.User(userID)
	n.mu.RUnlock()

	if !ok {
		return userNotFound(userID)
	}
	user.Unfollow(unfollowID)
	return nil
}

func (n *Network) Feed(userID string) ([]Post, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.store.UserExists(userID) {
		return nil, userNotFound(userID)
	}
	return n.strategy.GenerateFeed(userID, n.store), nil
}

// UserPosts returns every post by userID, newest first.
func (n *Network) UserPosts(userID string) ([]Post, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.store.UserExists(userID) {
		return nil, userNotFound(userID)
	}
	return sortPosts(resolvePosts(n.store, n.store.UserPostIDs(userID))), nil
}

func (n *Network) User(userID string) (*User, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.store.User(userID)
}

// Subscribe registers observer for userID's feed events. It fails with
// ErrInvalidArgument for a nil or non-comparable observer.
func (n *Network) Subscribe(observer Observer, userID string) error {
	return n.registry.Register(observer, userID)
}

func (n *Network) Unsubscribe(observer Observer, userID string) {
	n.registry.Unregister(observer, userID)
}

func (n *Network) NotifyStats() NotifyStats {
	return n.dispatcher.Stats()
}

// Shutdown drains pending notifications until ctx is done, then cancels the
// rest. Later writes still commit but their notifications are dropped.
func (n *Network) Shutdown(ctx context.Context) error {
	err := n.pool.Shutdown(ctx)
	stats := n.pool.Stats()
	entry := n.log.WithFields(logrus.Fields{
		"completed": stats.Completed,
		"abandoned": stats.Abandoned,
	})
	if err != nil {
		entry.WithError(err).Warn("notification drain cut short")
		return err
	}
	entry.Info("notifications drained")
	return nil
}
