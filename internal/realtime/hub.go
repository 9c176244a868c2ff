// Package realtime delivers change notifications to subscribers.
//
// A Hub fans events out per topic. Every subscription gets its own queue and
// delivery goroutine, so events on one subscription arrive in publish order and
// a slow subscriber never blocks a publisher. Nothing is ordered across topics.
package realtime

import (
	"context"
	"sync"
	"time"
)

// Op describes what happened to the subject of an event.
type Op string

const (
	OpInsert  Op = "insert"
	OpDelete  Op = "delete"
	OpSignIn  Op = "sign_in"
	OpSignOut Op = "sign_out"
)

// Event is a change notification. Subject is the id of the changed record
// (document id, profile id or session token id).
type Event struct {
	Topic   string    `json:"topic"`
	Op      Op        `json:"op"`
	Subject string    `json:"subject"`
	At      time.Time `json:"at"`
}

// Notifier publishes events. The Hub notifies in-process, PGNotifier routes
// through PostgreSQL so every instance's Hub receives them.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Subscriber registers callbacks for a topic.
type Subscriber interface {
	Subscribe(topic string, fn func(Event)) *Subscription
}

// Hub is an in-process topic broker. The zero value is not usable; use NewHub.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]*Subscription)}
}

var (
	_ Notifier   = (*Hub)(nil)
	_ Subscriber = (*Hub)(nil)
)

// Subscribe registers fn for events on topic until the returned subscription is closed.
// Subscribing to a closed hub returns an already closed subscription.
func (h *Hub) Subscribe(topic string, fn func(Event)) *Subscription {
	s := &Subscription{
		hub:    h,
		topic:  topic,
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.once.Do(func() {
			s.closed = true
			close(s.done)
		})
		return s
	}
	h.nextID++
	s.id = h.nextID
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]*Subscription)
	}
	h.subs[topic][s.id] = s
	h.mu.Unlock()

	go s.run()
	return s
}

// Publish enqueues ev for every current subscriber of ev.Topic. It never blocks on subscribers.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.subs[ev.Topic]))
	for _, s := range h.subs[ev.Topic] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.enqueue(ev)
	}
}

// Notify implements Notifier by publishing locally.
func (h *Hub) Notify(_ context.Context, ev Event) error {
	h.Publish(ev)
	return nil
}

// SubscriberCount returns the number of open subscriptions on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

// Close cancels every subscription. Later subscriptions are born closed.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	all := make([]*Subscription, 0)
	for _, m := range h.subs {
		for _, s := range m {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.subs[s.topic]; m != nil {
		delete(m, s.id)
		if len(m) == 0 {
			delete(h.subs, s.topic)
		}
	}
}

// Subscription is a cancellable registration on a Hub topic.
type Subscription struct {
	hub   *Hub
	topic string
	id    uint64
	fn    func(Event)

	mu     sync.Mutex
	queue  []Event
	closed bool

	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Done is closed once the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close cancels the subscription. Queued events are dropped; a callback that is
// already running finishes, but no further callback starts. Close is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		if s.hub != nil {
			s.hub.remove(s)
		}
		close(s.done)
	})
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			if s.closed || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.fn(ev)
		}
	}
}
