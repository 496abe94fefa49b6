package publish

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/swingfeed/internal/domain"
	"github.com/betbot/swingfeed/internal/metrics"
	"github.com/betbot/swingfeed/pkg/sigchan"
)

var log = logrus.WithField("component", "publish")

const subscriberBuffer = 64

// Hub keeps an append-only result buffer per event and fans new results
// out to subscribers. A subscriber joins with an offset and receives the
// backlog from that offset plus the live tail, so a dropped connection
// can resume without losing results.
type Hub struct {
	mu      sync.Mutex
	buffers map[string][]domain.PlayResult
	subs    map[string]map[string]*Subscription
}

// Subscription is one consumer's view of an event's result stream.
// Results arrive on C; Close detaches from the hub.
type Subscription struct {
	ID      string
	EventID string
	C       chan domain.PlayResult
	lagged  *sigchan.Chan
	hub     *Hub
}

func (s *Subscription) Close() {
	s.hub.unsubscribe(s.EventID, s.ID)
}

// Lagged fires when a publish could not be buffered for this
// subscription. The consumer resubscribes from its last offset to
// recover the gap from the backlog.
func (s *Subscription) Lagged() <-chan struct{} {
	return s.lagged.C()
}

func NewHub() *Hub {
	return &Hub{
		buffers: make(map[string][]domain.PlayResult),
		subs:    make(map[string]map[string]*Subscription),
	}
}

// Publish appends the result to the event's buffer and wakes subscribers.
// A subscriber whose channel is full misses the direct send; it can
// resubscribe with its last offset to recover the gap.
func (h *Hub) Publish(r domain.PlayResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buffers[r.EventID] = append(h.buffers[r.EventID], r)
	for _, sub := range h.subs[r.EventID] {
		select {
		case sub.C <- r:
		default:
			sub.lagged.Emit()
			log.Warnf("subscriber %s lagging on event %s", sub.ID, r.EventID)
		}
	}
}

// Subscribe attaches to an event's stream from the given offset. It
// returns the backlog already buffered past that offset and a live
// subscription for everything after.
func (h *Hub) Subscribe(eventID string, since int) ([]domain.PlayResult, *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := h.buffers[eventID]
	if since < 0 {
		since = 0
	}
	var backlog []domain.PlayResult
	if since < len(buf) {
		backlog = append(backlog, buf[since:]...)
	}

	sub := &Subscription{
		ID:      uuid.NewString(),
		EventID: eventID,
		C:       make(chan domain.PlayResult, subscriberBuffer),
		lagged:  sigchan.New(1),
		hub:     h,
	}
	if h.subs[eventID] == nil {
		h.subs[eventID] = make(map[string]*Subscription)
	}
	h.subs[eventID][sub.ID] = sub
	metrics.StreamSubscribers.Add(1)
	return backlog, sub
}

func (h *Hub) unsubscribe(eventID, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[eventID]; ok {
		if _, ok := subs[id]; ok {
			delete(subs, id)
			metrics.StreamSubscribers.Add(-1)
		}
		if len(subs) == 0 {
			delete(h.subs, eventID)
		}
	}
}

// Results returns a copy of everything buffered for an event past the
// given offset.
func (h *Hub) Results(eventID string, since int) []domain.PlayResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := h.buffers[eventID]
	if since < 0 {
		since = 0
	}
	if since >= len(buf) {
		return nil
	}
	out := make([]domain.PlayResult, len(buf)-since)
	copy(out, buf[since:])
	return out
}

// Len reports how many results an event has buffered.
func (h *Hub) Len(eventID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffers[eventID])
}
