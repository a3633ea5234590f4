package social

import (
	"context"
	"fmt"
	"sync/atomic"

	"socialfeed/internal/worker"

	"github.com/sirupsen/logrus"
)

// NotifyStats counts what happened to notifications. Scheduled, Dropped and
// Abandoned are per event: Abandoned events were queued but never started
// because shutdown ran out of time. Delivered, Failed, Retried and Cancelled
// are per observer callback: Cancelled callbacks were skipped when shutdown
// cancelled a fanout part way through.
type NotifyStats struct {
	Scheduled uint64
	Dropped   uint64
	Abandoned uint64
	Delivered uint64
	Failed    uint64
	Retried   uint64
	Cancelled uint64
}

// Dispatcher fans author events out to the observers of every interested
// user, on the worker pool rather than the caller's goroutine.
type Dispatcher struct {
	store    *Store
	registry *Registry
	pool     *worker.Pool
	retries  int
	log      logrus.FieldLogger

	scheduled atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	retried   atomic.Uint64
	cancelled atomic.Uint64
}

func NewDispatcher(store *Store, registry *Registry, pool *worker.Pool, retries int, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if retries < 0 {
		retries = 0
	}
	return &Dispatcher{
		store:    store,
		registry: registry,
		pool:     pool,
		retries:  retries,
		log:      log,
	}
}

// NotifyNewPost schedules onNewPost delivery and returns immediately. A
// rejected submission is dropped and counted; it never fails the caller.
func (d *Dispatcher) NotifyNewPost(post Post, authorID string) {
	d.schedule("new_post", post.ID, authorID, func(ctx context.Context) {
		d.DeliverNewPost(ctx, post, authorID)
	})
}

// NotifyPostDeleted schedules onPostDeleted delivery.
func (d *Dispatcher) NotifyPostDeleted(postID, authorID string) {
	d.schedule("post_deleted", postID, authorID, func(ctx context.Context) {
		d.DeliverPostDeleted(ctx, postID, authorID)
	})
}

func (d *Dispatcher) schedule(event, postID, authorID string, job worker.Job) {
	if err := d.pool.Submit(job); err != nil {
		d.dropped.Add(1)
		d.log.WithFields(logrus.Fields{
			"event":   event,
			"post_id": postID,
			"author":  authorID,
		}).WithError(err).Warn("notification dropped")
		return
	}
	d.scheduled.Add(1)
}

// DeliverNewPost runs the fanout synchronously.
func (d *Dispatcher) DeliverNewPost(ctx context.Context, post Post, authorID string) {
	for _, recipient := range d.Recipients(authorID) {
		for _, o := range d.registry.Observers(recipient) {
			if ctx.Err() != nil {
				d.cancelled.Add(1)
				continue
			}
			o := o
			d.deliver(ctx, o, recipient, "new_post", func() error {
				return o.OnNewPost(post, recipient)
			})
		}
	}
}

// DeliverPostDeleted runs the deletion fanout synchronously.
func (d *Dispatcher) DeliverPostDeleted(ctx context.Context, postID, authorID string) {
	for _, recipient := range d.Recipients(authorID) {
		for _, o := range d.registry.Observers(recipient) {
			if ctx.Err() != nil {
				d.cancelled.Add(1)
				continue
			}
			o := o
			d.deliver(ctx, o, recipient, "post_deleted", func() error {
				return o.OnPostDeleted(postID, recipient)
			})
		}
	}
}

// Recipients returns the author plus every user currently following the
// author, or nil if the author is unknown.
//
// This scans every user's following set, O(users) per event. It is the
// scaling limit of the service; a reverse follower index maintained by
// Follow/Unfollow would replace the scan.
func (d *Dispatcher) Recipients(authorID string) []string {
	if !d.store.UserExists(authorID) {
		return nil
	}
	recipients := []string{authorID}
	for id, u := range d.store.Users() {
		if id != authorID && u.IsFollowing(authorID) {
			recipients = append(recipients, id)
		}
	}
	return recipients
}

func (d *Dispatcher) Stats() NotifyStats {
	return NotifyStats{
		Scheduled: d.scheduled.Load(),
		Dropped:   d.dropped.Load(),
		Abandoned: d.pool.Stats().Abandoned,
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Retried:   d.retried.Load(),
		Cancelled: d.cancelled.Load(),
	}
}

func (d *Dispatcher) deliver(ctx context.Context, o Observer, recipient, event string, call func() error) {
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				break
			}
			d.retried.Add(1)
		}
		err := invoke(call)
		if err == nil {
			d.delivered.Add(1)
			return
		}
		d.log.WithFields(logrus.Fields{
			"event":     event,
			"recipient": recipient,
			"observer":  fmt.Sprintf("%T", o),
			"attempt":   attempt + 1,
		}).WithError(err).Warn("observer callback failed")
	}
	d.failed.Add(1)
	d.log.WithFields(logrus.Fields{
		"event":     event,
		"recipient": recipient,
		"observer":  fmt.Sprintf("%T", o),
	}).Error("notification lost")
}

// invoke turns a panicking callback into an error.
func invoke(call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return call()
}
