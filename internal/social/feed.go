package social

import "sort"

const DefaultFeedLimit = 10

// FeedStrategy computes a feed for userID from a read-only view of the store.
type FeedStrategy interface {
	GenerateFeed(userID string, view StoreView) []Post
}

// RecentFeed returns the Limit most recent posts of the user and everyone
// they follow.
type RecentFeed struct {
	Limit int
}

func NewRecentFeed(limit int) RecentFeed {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return RecentFeed{Limit: limit}
}

// GenerateFeed is a pure read. Unknown users get an empty feed; ids that no
// longer resolve (deleted concurrently) are skipped.
func (f RecentFeed) GenerateFeed(userID string, view StoreView) []Post {
	user, ok := view.User(userID)
	if !ok {
		return []Post{}
	}

	authors := append([]string{userID}, user.Following()...)
	seen := make(map[string]struct{}, len(authors))

	var posts []Post
	for _, authorID := range authors {
		if _, dup := seen[authorID]; dup {
			continue
		}
		seen[authorID] = struct{}{}
		posts = append(posts, resolvePosts(view, view.UserPostIDs(authorID))...)
	}

	posts = sortPosts(posts)
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts
}

func resolvePosts(view StoreView, ids []string) []Post {
	posts := make([]Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := view.Post(id); ok {
			posts = append(posts, p)
		}
	}
	return posts
}

// sortPosts orders newest first; equal timestamps fall back to the post id,
// higher (later) id first, so output is reproducible.
func sortPosts(posts []Post) []Post {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return compareIDs(posts[i].ID, posts[j].ID) > 0
	})
	return posts
}
