package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// outboxSize bounds how many events may wait for one slow subscriber.
const outboxSize = 32

// Hub manages change-feed subscriptions by session ID. Each subscriber is
// written from its own goroutine; one whose queue fills up is dropped.
type Hub struct {
	clients   map[string]map[Subscriber]*outbox
	register  chan subscription
	unreg     chan subscription
	broadcast chan Event
	count     chan chan int
	done      chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

// tableFilter is the set of tables a subscriber wants; nil means all.
type tableFilter map[string]struct{}

func (f tableFilter) accepts(table string) bool {
	if f == nil {
		return true
	}
	_, ok := f[table]
	return ok
}

// subscription defines register/unregister requests.
type subscription struct {
	sessionID string
	client    Subscriber
	filter    tableFilter
}

// outbox queues payloads for one subscriber. Only the hub loop sends on or
// closes queue.
type outbox struct {
	filter tableFilter
	queue  chan []byte
}

// NewHub creates an initialized Hub and starts its loop.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:   make(map[string]map[Subscriber]*outbox),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan Event, outboxSize),
		count:     make(chan chan int),
		done:      make(chan struct{}),
		log:       logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.sessionID]; !ok {
				h.clients[sub.sessionID] = make(map[Subscriber]*outbox)
			}
			if _, dup := h.clients[sub.sessionID][sub.client]; dup {
				continue
			}
			box := &outbox{filter: sub.filter, queue: make(chan []byte, outboxSize)}
			h.clients[sub.sessionID][sub.client] = box
			go h.write(sub.sessionID, sub.client, box.queue)
		case sub := <-h.unreg:
			h.drop(sub.sessionID, sub.client)
		case ev := <-h.broadcast:
			h.deliver(ev)
		case reply := <-h.count:
			n := 0
			for _, clients := range h.clients {
				n += len(clients)
			}
			reply <- n
		case <-h.done:
			for _, clients := range h.clients {
				for c, box := range clients {
					close(box.queue)
					c.Close()
				}
			}
			h.clients = nil
			return
		}
	}
}

// write drains one subscriber's queue. A failed send closes the
// subscriber and removes it from the hub.
func (h *Hub) write(sessionID string, client Subscriber, queue <-chan []byte) {
	for payload := range queue {
		if err := client.Send(payload); err != nil {
			client.Close()
			h.Unregister(sessionID, client)
			for range queue {
			}
			return
		}
	}
}

// drop removes a subscriber and stops its writer. Must run on the loop.
func (h *Hub) drop(sessionID string, client Subscriber) {
	clients, ok := h.clients[sessionID]
	if !ok {
		return
	}
	if box, ok := clients[client]; ok {
		close(box.queue)
		delete(clients, client)
	}
	if len(clients) == 0 {
		delete(h.clients, sessionID)
	}
}

func (h *Hub) deliver(ev Event) {
	clients, ok := h.clients[ev.SessionID]
	if !ok {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to encode change event", "error", err, "table", ev.Table)
		return
	}
	for c, box := range clients {
		if !box.filter.accepts(ev.Table) {
			continue
		}
		select {
		case box.queue <- payload:
		default:
			h.log.Warn("dropping slow change-feed subscriber", "session_id", ev.SessionID)
			c.Close()
			h.drop(ev.SessionID, c)
		}
	}
}

// Register adds a client to a session stream. With no tables the client
// receives every table's events.
func (h *Hub) Register(sessionID string, client Subscriber, tables ...string) {
	var filter tableFilter
	if len(tables) > 0 {
		filter = make(tableFilter, len(tables))
		for _, t := range tables {
			filter[t] = struct{}{}
		}
	}
	select {
	case h.register <- subscription{sessionID: sessionID, client: client, filter: filter}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(sessionID string, client Subscriber) {
	select {
	case h.unreg <- subscription{sessionID: sessionID, client: client}:
	case <-h.done:
	}
}

// Broadcast sends the event to every matching client of its session.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// Publish implements Publisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.Broadcast(ev)
	return nil
}

// Subscribers reports how many clients are registered across all sessions.
func (h *Hub) Subscribers() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Close stops the loop and closes every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}
