// Package sse fans out notification events to connected browser sessions.
package sse

import (
	"sync"
)

const bufferSize = 10

// Event is one server-sent event addressed to a user
type Event struct {
	ID          string
	UserID      string
	WorkspaceID string
	Event       string
	Data        any
}

type subscriber struct {
	ch chan Event
	// workspaceID filters events; empty receives events of every workspace
	workspaceID string
}

// Hub keeps the open streams per user
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a stream for userID scoped to workspaceID and returns the
// event channel and the function that unregisters it
func (h *Hub) Subscribe(userID, workspaceID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, bufferSize), workspaceID: workspaceID}
	if h.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[userID][sub]; !ok {
				return
			}
			delete(h.subs[userID], sub)
			close(sub.ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
		})
	}
	return sub.ch, cleanup
}

// Publish delivers event to the user's matching streams without blocking and
// returns how many streams received it. Full streams drop the event.
func (h *Hub) Publish(event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[event.UserID] {
		if sub.workspaceID != "" && event.WorkspaceID != "" && sub.workspaceID != event.WorkspaceID {
			continue
		}
		select {
		case sub.ch <- event:
			delivered++
		default:
		}
	}
	return delivered
}

// PublishToMany sends a copy of event to each user
func (h *Hub) PublishToMany(userIDs []string, event Event) {
	for _, userID := range userIDs {
		e := event
		e.UserID = userID
		h.Publish(e)
	}
}

func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subs {
		total += len(subs)
	}
	return total
}

// Close ends every stream; used on shutdown
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, subs := range h.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(h.subs, userID)
	}
	h.closed = true
}
