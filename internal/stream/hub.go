package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"socialfeed/internal/social"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	EventNewPost     = "post.created"
	EventPostDeleted = "post.deleted"
)

// Event is the JSON payload pushed to clients and mirrored through Redis.
type Event struct {
	Origin     string       `json:"origin"`
	Type       string       `json:"type"`
	FollowerID string       `json:"follower_id"`
	Post       *social.Post `json:"post,omitempty"`
	PostID     string       `json:"post_id"`
}

// Hub is a social.Observer that turns feed events into JSON messages for
// per-user clients. With a Redis client it also publishes every event and
// relays events published by other hubs.
type Hub struct {
	id      string
	redis   *redis.Client
	log     logrus.FieldLogger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}
}

type Client struct {
	UserID string
	Send   chan []byte
}

func NewHub(redisClient *redis.Client, log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		log:     log,
		clients: map[string]map[*Client]struct{}{},
		done:    make(chan struct{}),
	}

	if redisClient == nil {
		close(h.done)
		return h
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	pubsub := redisClient.PSubscribe(ctx, redisPattern)
	// wait for the subscription so events published right after NewHub are seen
	if _, err := pubsub.Receive(ctx); err != nil {
		log.WithError(err).Warn("redis subscribe failed")
	}
	go h.subscribeRedis(ctx, pubsub)
	return h
}

func (h *Hub) ID() string { return h.id }

func (h *Hub) Register(userID string) *Client {
	client := &Client{
		UserID: userID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := userClients[client]; !ok {
		return
	}
	delete(userClients, client)
	if len(userClients) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.Send)
}

func (h *Hub) OnNewPost(post social.Post, followerID string) error {
	return h.broadcast(Event{
		Origin:     h.id,
		Type:       EventNewPost,
		FollowerID: followerID,
		Post:       &post,
		PostID:     post.ID,
	})
}

func (h *Hub) OnPostDeleted(postID, followerID string) error {
	return h.broadcast(Event{
		Origin:     h.id,
		Type:       EventPostDeleted,
		FollowerID: followerID,
		PostID:     postID,
	})
}

// Close stops the Redis relay. Registered clients stay open.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	<-h.done
}

func (h *Hub) broadcast(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.deliverLocal(ev.FollowerID, payload)

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(ev.FollowerID), payload).Err()
		if err != nil {
			h.log.WithError(err).WithField("follower", ev.FollowerID).Warn("redis publish error")
		}
	}
	return nil
}

// deliverLocal never blocks; a client whose buffer is full misses the message.
func (h *Hub) deliverLocal(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.Send <- payload:
		default:
			h.log.WithField("user", userID).Debug("stream client buffer full")
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer close(h.done)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.WithError(err).WithField("channel", msg.Channel).Warn("bad stream event")
				continue
			}
			if ev.Origin == h.id {
				continue
			}
			userID := userIDFromChannel(msg.Channel)
			if userID == "" {
				continue
			}
			h.deliverLocal(userID, []byte(msg.Payload))
		}
	}
}

const (
	channelPrefix = "feed:"
	channelSuffix = ":events"
	redisPattern  = channelPrefix + "*" + channelSuffix
)

func redisChannel(userID string) string {
	return channelPrefix + userID + channelSuffix
}

func userIDFromChannel(ch string) string {
	// feed:{user}:events
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
