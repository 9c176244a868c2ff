package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"docportal/internal/apperr"
	"docportal/internal/document"
	"docportal/internal/http/middleware"
	"docportal/internal/model"
	"docportal/internal/realtime"
	"docportal/internal/service"
	"docportal/internal/session"
)

const defaultKeepAlive = 15 * time.Second

type streamConfig struct {
	backend   session.Backend
	timeout   time.Duration
	keepAlive time.Duration
	log       *zap.Logger
}

type sseEvent struct {
	Name string
	Data any
}

// latestQueue hands events from publisher goroutines to the stream writer.
// Every payload is a full snapshot, so a pending event is replaced by a newer
// one instead of queueing behind it. A final event ends the stream.
type latestQueue struct {
	mu      sync.Mutex
	pending *sseEvent
	final   *sseEvent
	done    bool
	ready   chan struct{}
}

func newLatestQueue() *latestQueue {
	return &latestQueue{ready: make(chan struct{}, 1)}
}

func (q *latestQueue) push(ev sseEvent) {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return
	}
	q.pending = &ev
	q.mu.Unlock()
	q.signal()
}

func (q *latestQueue) finish(ev sseEvent) {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return
	}
	q.done = true
	q.final = &ev
	q.mu.Unlock()
	q.signal()
}

func (q *latestQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *latestQueue) take() (events []sseEvent, last bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending != nil {
		events = append(events, *q.pending)
		q.pending = nil
	}
	if q.final != nil {
		events = append(events, *q.final)
		q.final = nil
		last = true
	}
	return events, last
}

func writeEvent(w io.Writer, ev sseEvent) error {
	b, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, b)
	return err
}

type sessionPayload struct {
	State string `json:"state"`
}

type viewPayload struct {
	document.View
	Error string `json:"error,omitempty"`
}

func newViewPayload(v document.View) viewPayload {
	p := viewPayload{View: v}
	if v.Err != nil {
		p.Error = apperr.Message(v.Err)
	}
	return p
}

type clientsPayload struct {
	Data  []model.Profile `json:"data"`
	Error string          `json:"error,omitempty"`
}

// serve runs a session-bound event stream. setup wires the domain source into
// the queue and returns its teardown; the stream ends when the session of the
// request's token becomes anonymous or the client goes away.
func (s streamConfig) serve(c *fiber.Ctx, setup func(q *latestQueue) (teardown func())) error {
	log := s.log.With(
		zap.String("request_id", middleware.RequestIDFrom(c)),
		zap.String("stream_id", uuid.NewString()),
		zap.String("path", c.Path()),
	)

	q := newLatestQueue()
	teardown := setup(q)

	store := session.NewStore(s.backend, middleware.TokenFrom(c),
		session.WithTimeout(s.timeout), session.WithLogger(log))
	unsubscribe := store.Subscribe(func(snap session.Snapshot) {
		if snap.State == session.StateAnonymous {
			q.finish(sseEvent{Name: "session", Data: sessionPayload{State: snap.State.String()}})
		}
	})
	store.Start(context.Background())

	keepAlive := s.keepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The fiber context is not valid inside the stream writer goroutine.
	c.Status(fiber.StatusOK).Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			unsubscribe()
			store.Close()
			teardown()
			log.Debug("event stream closed")
		}()

		if err := w.Flush(); err != nil {
			return
		}
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-q.ready:
				events, last := q.take()
				for _, ev := range events {
					if err := writeEvent(w, ev); err != nil {
						log.Warn("event encoding failed", zap.String("event", ev.Name), zap.Error(err))
						return
					}
				}
				if err := w.Flush(); err != nil {
					log.Debug("client disconnected", zap.Error(err))
					return
				}
				if last {
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": keepalive\n\n")
				if err := w.Flush(); err != nil {
					log.Debug("client disconnected", zap.Error(err))
					return
				}
			}
		}
	})
	return nil
}

// streamDocuments pushes the live, filtered document list of the viewer (or
// of the client named by :clientId) as Server-Sent Events. Every "documents"
// event carries the complete current view. A final "session" event is sent
// when the session signs out.
//
// @Summary Live document list (SSE)
// @Tags documents
// @Security BearerAuth
// @Produce text/event-stream
// @Param q query string false "case-insensitive filename search"
// @Param sort query string false "newest|oldest"
// @Param window query string false "all|7days|30days"
// @Router /documents/stream [get]
func streamDocuments(svc service.DocumentService, s streamConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := parseFilter(c)
		if err != nil {
			return err
		}

		ctx, cancel := backendContext(c, s.timeout)
		live, err := svc.Watch(ctx, middleware.IdentityFrom(c), ownerParam(c))
		cancel()
		if err != nil {
			return err
		}
		live.SetFilter(f)

		return s.serve(c, func(q *latestQueue) func() {
			unsubscribe := live.OnChange(func(v document.View) {
				q.push(sseEvent{Name: "documents", Data: newViewPayload(v)})
			})
			// The first load may finish before OnChange is registered.
			q.push(sseEvent{Name: "documents", Data: newViewPayload(live.View())})
			return func() {
				unsubscribe()
				live.Close()
			}
		})
	}
}

// streamClients pushes the firm's client list whenever a client registers
// with its invite code.
//
// @Summary Live client list (SSE)
// @Tags clients
// @Security BearerAuth
// @Produce text/event-stream
// @Router /clients/stream [get]
func streamClients(svc service.ClientService, s streamConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		viewer := middleware.IdentityFrom(c)

		ctx, cancel := backendContext(c, s.timeout)
		initial, err := svc.ListClients(ctx, viewer)
		cancel()
		if err != nil {
			return err
		}

		reload := func() clientsPayload {
			ctx, cancel := context.WithTimeout(context.Background(), orDefault(s.timeout))
			defer cancel()
			clients, err := svc.ListClients(ctx, viewer)
			if err != nil {
				s.log.Warn("client list reload failed", zap.String("firm_id", viewer.ID), zap.Error(err))
				return clientsPayload{Data: []model.Profile{}, Error: apperr.Message(err)}
			}
			return clientsPayload{Data: clients}
		}

		return s.serve(c, func(q *latestQueue) func() {
			q.push(sseEvent{Name: "clients", Data: clientsPayload{Data: initial}})
			sub, err := svc.WatchClients(viewer, func(realtime.Event) {
				q.push(sseEvent{Name: "clients", Data: reload()})
			})
			if err != nil {
				q.finish(sseEvent{Name: "error", Data: errorEnvelope{Code: "STREAM_ERROR", Message: apperr.Message(err)}})
				return func() {}
			}
			return sub.Close
		})
	}
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Second
	}
	return d
}
