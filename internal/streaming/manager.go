// Package streaming provides in-process pub/sub of stage events so an
// external dashboard can follow a session over the admin websocket. The
// orchestrator core never depends on a subscriber being present.
package streaming

import (
	"encoding/json"
	"sync"
	"time"
)

// StageEvent reports one stage starting or finishing within a session.
type StageEvent struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"` // started | completed | failed
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
}

// Marshal returns the JSON form used on the websocket.
func (e StageEvent) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Hub fans stage events out to session subscribers, keeping a per-session
// ring buffer for late joiners.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan StageEvent]struct{}
	history     map[string]*ring
	capacity    int
}

var (
	defaultHub      *Hub
	once            sync.Once
	defaultCapacity = 256
)

// Get returns the global hub, initializing it lazily.
func Get() *Hub {
	once.Do(func() {
		defaultHub = &Hub{
			subscribers: make(map[string]map[chan StageEvent]struct{}),
			history:     make(map[string]*ring),
			capacity:    defaultCapacity,
		}
	})
	return defaultHub
}

// Subscribe registers a channel for a session's events; the caller must
// drain it and call Unsubscribe.
func (h *Hub) Subscribe(sessionID string, buffer int) chan StageEvent {
	ch := make(chan StageEvent, buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[sessionID]
	if subs == nil {
		subs = make(map[chan StageEvent]struct{})
		h.subscribers[sessionID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes the channel.
func (h *Hub) Unsubscribe(sessionID string, ch chan StageEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[sessionID]; ok {
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, sessionID)
		}
	}
}

// Publish delivers an event to every subscriber without blocking; slow
// subscribers miss events rather than stalling a stage.
func (h *Hub) Publish(evt StageEvent) {
	h.mu.Lock()
	rg := h.history[evt.SessionID]
	if rg == nil {
		rg = newRing(h.capacity)
		h.history[evt.SessionID] = rg
	}
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)
	subs := h.subscribers[evt.SessionID]
	h.mu.Unlock()

	for ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ReplaySince returns buffered events with Seq > since, best effort within
// the ring capacity.
func (h *Hub) ReplaySince(sessionID string, since uint64) []StageEvent {
	h.mu.RLock()
	rg := h.history[sessionID]
	h.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Forget drops a finished session's buffer.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	delete(h.history, sessionID)
	h.mu.Unlock()
}

type ring struct {
	buf     []StageEvent
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]StageEvent, capacity)} }

func (r *ring) push(e StageEvent) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []StageEvent {
	if r.count == 0 {
		return nil
	}
	out := make([]StageEvent, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
