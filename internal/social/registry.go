package social

import (
	"reflect"
	"sync"
)

// Observer receives feed events. followerID is the recipient the event is
// delivered for, so one observer registered under several users can tell
// them apart. Implementations must be comparable (typically pointers):
// Unsubscribe matches by identity.
type Observer interface {
	OnNewPost(post Post, followerID string) error
	OnPostDeleted(postID, followerID string) error
}

// ObserverFuncs adapts plain functions to Observer. Register it by pointer.
type ObserverFuncs struct {
	NewPost     func(post Post, followerID string) error
	PostDeleted func(postID, followerID string) error
}

func (o *ObserverFuncs) OnNewPost(post Post, followerID string) error {
	if o.NewPost == nil {
		return nil
	}
	return o.NewPost(post, followerID)
}

func (o *ObserverFuncs) OnPostDeleted(postID, followerID string) error {
	if o.PostDeleted == nil {
		return nil
	}
	return o.PostDeleted(postID, followerID)
}

// Registry maps a user id to the observers interested in that user's feed.
// Slices are copy-on-write: Observers hands out a snapshot that later
// Register/Unregister calls never mutate.
type Registry struct {
	mu        sync.RWMutex
	observers map[string][]Observer
}

func NewRegistry() *Registry {
	return &Registry{observers: map[string][]Observer{}}
}

// Ensure creates an empty slot for userID if none exists.
func (r *Registry) Ensure(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.observers[userID]; !ok {
		r.observers[userID] = nil
	}
}

// Register appends observer for userID. Duplicates are kept. Observers whose
// dynamic type is not comparable are rejected since Unregister matches by ==.
func (r *Registry) Register(observer Observer, userID string) error {
	if observer == nil {
		return invalidArgument("nil observer for %q", userID)
	}
	if !isComparable(observer) {
		return invalidArgument("observer %T is not comparable", observer)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.observers[userID]
	next := make([]Observer, 0, len(current)+1)
	next = append(next, current...)
	r.observers[userID] = append(next, observer)
	return nil
}

// Unregister removes the first registration of observer for userID.
func (r *Registry) Unregister(observer Observer, userID string) {
	if observer == nil || !isComparable(observer) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.observers[userID]
	if !ok {
		return
	}
	for i, o := range current {
		if o == observer {
			next := make([]Observer, 0, len(current)-1)
			next = append(next, current[:i]...)
			r.observers[userID] = append(next, current[i+1:]...)
			return
		}
	}
}

// Observers returns userID's observers in registration order.
func (r *Registry) Observers(userID string) []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.observers[userID]
}

func isComparable(observer Observer) bool {
	return reflect.TypeOf(observer).Comparable()
}
