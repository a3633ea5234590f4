package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"socialfeed/internal/app"
	"socialfeed/internal/social"
	"socialfeed/internal/stream"

	"golang.org/x/sync/errgroup"
)

const realtimeWait = 2 * time.Second

var demoUsers = []struct{ id, name string }{
	{"user1", "Alice"},
	{"user2", "Bob"},
	{"user3", "Charlie"},
	{"user4", "Diana"},
}

var demoFollows = [][2]string{
	{"user1", "user2"},
	{"user1", "user3"},
	{"user2", "user1"},
	{"user2", "user4"},
	{"user3", "user1"},
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

// runDemo walks through every network operation: users, observers, follows,
// concurrent uploads and reads, realtime delivery, delete and unfollow.
func runDemo(ctx context.Context, a *app.App, w io.Writer) error {
	out := &syncWriter{w: w}
	n := a.Network

	out.printf("== creating users\n")
	for _, u := range demoUsers {
		if _, err := n.CreateUser(u.id, u.name); err != nil {
			return fmt.Errorf("create %s: %w", u.id, err)
		}
		if err := n.Subscribe(a.Stream, u.id); err != nil {
			return err
		}
	}

	inboxes := map[string]*social.Inbox{}
	for _, id := range []string{"user1", "user2", "user3"} {
		inboxes[id] = social.NewInbox(id)
		if err := n.Subscribe(inboxes[id], id); err != nil {
			return err
		}
	}
	defer func() {
		for id, in := range inboxes {
			n.Unsubscribe(in, id)
			in.Stop()
		}
	}()

	client := a.Stream.Register("user1")
	defer a.Stream.Unregister(client)

	out.printf("== following\n")
	for _, f := range demoFollows {
		if err := n.FollowUser(f[0], f[1]); err != nil {
			return fmt.Errorf("follow %s -> %s: %w", f[0], f[1], err)
		}
		out.printf("%s follows %s\n", f[0], f[1])
	}

	out.printf("== initial posts\n")
	first, err := upload(n, out, "user1", "Hello world! This is my first post.")
	if err != nil {
		return err
	}
	if _, err := upload(n, out, "user2", "Just finished a great workout!"); err != nil {
		return err
	}
	if _, err := upload(n, out, "user3", "Working on a new project."); err != nil {
		return err
	}

	out.printf("== concurrent writers and a reader\n")
	if err := concurrentPhase(ctx, n, out); err != nil {
		return err
	}

	for _, id := range []string{"user1", "user2"} {
		if err := printFeed(n, out, id, 0); err != nil {
			return err
		}
	}

	out.printf("== realtime delivery to user1\n")
	alice := inboxes["user1"]
	for {
		if _, ok := alice.Poll(); !ok {
			break
		}
	}
	for _, p := range []struct{ author, content string }{
		{"user2", "Realtime: Bob just posted this"},
		{"user1", "Realtime: Alice posted too"},
	} {
		id, err := upload(n, out, p.author, p.content)
		if err != nil {
			return err
		}
		post, err := awaitPost(ctx, alice, id)
		if err != nil {
			return fmt.Errorf("realtime %s: %w", id, err)
		}
		out.printf("user1 received %s: %s\n", post.ID, post.Content)
	}

	out.printf("== deleting %s\n", first)
	deleted, err := n.DeletePost("user1", first)
	if err != nil {
		return err
	}
	out.printf("deleted %s: %t\n", first, deleted)
	if err := awaitDeletion(ctx, client, first); err != nil {
		return fmt.Errorf("stream deletion: %w", err)
	}
	out.printf("stream client for user1 saw %s removed\n", first)
	if err := printFeed(n, out, "user1", 5); err != nil {
		return err
	}

	out.printf("== user1 unfollows user3\n")
	if err := n.UnfollowUser("user1", "user3"); err != nil {
		return err
	}
	if err := printFeed(n, out, "user1", 5); err != nil {
		return err
	}

	stats := n.NotifyStats()
	out.printf("notifications: scheduled=%d delivered=%d failed=%d dropped=%d abandoned=%d cancelled=%d\n",
		stats.Scheduled, stats.Delivered, stats.Failed, stats.Dropped, stats.Abandoned, stats.Cancelled)
	out.printf("== done\n")
	return nil
}

func upload(n *social.Network, out *syncWriter, userID, content string) (string, error) {
	id, err := n.UploadPost(userID, content)
	if err != nil {
		return "", fmt.Errorf("upload for %s: %w", userID, err)
	}
	out.printf("%s uploaded %s\n", userID, id)
	return id, nil
}

func concurrentPhase(ctx context.Context, n *social.Network, out *syncWriter) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, author := range []struct{ id, name string }{{"user1", "Alice"}, {"user2", "Bob"}} {
		author := author
		g.Go(func() error {
			for i := 1; i <= 3; i++ {
				id, err := n.UploadPost(author.id, fmt.Sprintf("Concurrent post %d from %s", i, author.name))
				if err != nil {
					return err
				}
				out.printf("[writer %s] uploaded %s\n", author.id, id)
				if err := pause(gctx, 100*time.Millisecond); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < 3; i++ {
			feed, err := n.Feed("user3")
			if err != nil {
				return err
			}
			out.printf("[reader user3] feed size %d\n", len(feed))
			if err := pause(gctx, 150*time.Millisecond); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

// printFeed prints at most max entries; zero prints the whole feed.
func printFeed(n *social.Network, out *syncWriter, userID string, max int) error {
	feed, err := n.Feed(userID)
	if err != nil {
		return err
	}
	out.printf("-- feed for %s (%d posts)\n", userID, len(feed))
	for i, p := range feed {
		if max > 0 && i == max {
			break
		}
		out.printf("%d. [%s] %s (%s)\n", i+1, p.UserID, p.Content, p.CreatedAt.Format(time.RFC3339Nano))
	}
	return nil
}

// awaitPost skips older notifications until postID arrives.
func awaitPost(ctx context.Context, in *social.Inbox, postID string) (social.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, realtimeWait)
	defer cancel()
	for {
		post, err := in.Next(ctx)
		if err != nil {
			return social.Post{}, err
		}
		if post.ID == postID {
			return post, nil
		}
	}
}

func awaitDeletion(ctx context.Context, client *stream.Client, postID string) error {
	timeout := time.NewTimer(realtimeWait)
	defer timeout.Stop()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return errors.New("stream client closed")
			}
			var ev stream.Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				return err
			}
			if ev.Type == stream.EventPostDeleted && ev.PostID == postID {
				return nil
			}
		case <-timeout.C:
			return context.DeadlineExceeded
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
