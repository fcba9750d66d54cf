package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPattern = "collection:*:changes"

// Change is pushed to every subscriber of a collection after a successful write.
type Change struct {
	Collection string `json:"collection"`
	Action     string `json:"action"`
	EventID    int64  `json:"event_id,omitempty"`
}

// Hub fans collection changes out to websocket clients. With Redis configured
// every change goes through pub/sub so that clients connected to other
// instances see it too; without Redis it is delivered locally.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Collection string
	Send       chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx := context.Background()
		h.pubsub = redisClient.PSubscribe(ctx, channelPattern)
		if _, err := h.pubsub.Receive(ctx); err != nil {
			log.Printf("redis subscribe error: %v", err)
		}
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(collection string) *Client {
	client := &Client{
		Collection: collection,
		Send:       make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[collection] == nil {
		h.clients[collection] = map[*Client]struct{}{}
	}
	h.clients[collection][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if collectionClients, ok := h.clients[client.Collection]; ok {
		delete(collectionClients, client)
		if len(collectionClients) == 0 {
			delete(h.clients, client.Collection)
		}
	}
	close(client.Send)
}

// Notify publishes a change for collection. It never fails the caller.
func (h *Hub) Notify(collection, action string, eventID int64) {
	payload, err := json.Marshal(Change{Collection: collection, Action: action, EventID: eventID})
	if err != nil {
		log.Printf("change encode error: %v", err)
		return
	}
	h.Broadcast(collection, payload)
}

func (h *Hub) Broadcast(collection string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(collection), payload).Err()
		if err == nil {
			return
		}
		log.Printf("redis publish error: %v", err)
	}
	h.deliver(collection, payload)
}

func (h *Hub) Close() error {
	if h.pubsub != nil {
		return h.pubsub.Close()
	}
	return nil
}

func (h *Hub) subscribers(collection string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[collection])
}

func (h *Hub) deliver(collection string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[collection] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	for msg := range h.pubsub.Channel() {
		collection := collectionFromChannel(msg.Channel)
		if collection == "" {
			continue
		}
		h.deliver(collection, []byte(msg.Payload))
	}
}

func redisChannel(collection string) string {
	return "collection:" + collection + ":changes"
}

func collectionFromChannel(ch string) string {
	// collection:{name}:changes
	const prefix = "collection:"
	const suffix = ":changes"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
