// Package session tracks the identity behind one session token and tells
// listeners when it signs in or out.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"docportal/internal/model"
	"docportal/internal/realtime"
)

// State is the lifecycle stage of a Store.
type State int

const (
	StateLoading State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Principal is a resolved session: the identity merged with its profile role,
// plus the id of the token it was resolved from.
type Principal struct {
	Identity model.Identity
	TokenID  string
}

// Backend is the authentication capability the store depends on.
type Backend interface {
	Resolve(ctx context.Context, token string) (*Principal, error)
	WatchSession(userID string, fn func(realtime.Event)) *realtime.Subscription
}

// Snapshot is the observable state. Identity is nil unless authenticated.
type Snapshot struct {
	State    State
	Identity *model.Identity
}

// Store is the session store for one token. Resolution starts with Start and
// runs asynchronously; until it completes the state is StateLoading.
type Store struct {
	backend Backend
	token   string
	timeout time.Duration
	log     *zap.Logger

	mu        sync.Mutex
	state     State
	principal *Principal
	watch     *realtime.Subscription
	seq       uint64
	listeners map[int]func(Snapshot)
	nextID    int
	closed    bool
	started   bool
}

type Option func(*Store)

// WithTimeout bounds each resolution call.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

func NewStore(backend Backend, token string, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		token:     token,
		log:       zap.NewNop(),
		state:     StateLoading,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start begins resolving the token. Calling it more than once has no effect.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.resolve(ctx)
}

func (s *Store) resolve(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	var (
		p   *Principal
		err error
	)
	if s.token != "" {
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		p, err = s.backend.Resolve(ctx, s.token)
		if err != nil {
			s.log.Debug("session not resolved", zap.Error(err))
		}
	}

	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	if p == nil {
		s.becomeAnonymousLocked()
	} else {
		s.state = StateAuthenticated
		s.principal = p
		if s.watch == nil {
			s.watch = s.backend.WatchSession(p.Identity.ID, s.onEvent)
		}
	}
	s.mu.Unlock()

	s.emit()
}

func (s *Store) onEvent(ev realtime.Event) {
	s.mu.Lock()
	if s.closed || s.principal == nil {
		s.mu.Unlock()
		return
	}
	tokenID := s.principal.TokenID
	s.mu.Unlock()

	switch ev.Op {
	case realtime.OpSignOut:
		if ev.Subject != tokenID {
			return
		}
		s.mu.Lock()
		s.seq++
		s.becomeAnonymousLocked()
		s.mu.Unlock()
		s.emit()
	case realtime.OpSignIn:
		s.resolve(context.Background())
	}
}

func (s *Store) becomeAnonymousLocked() {
	s.state = StateAnonymous
	s.principal = nil
	if s.watch != nil {
		s.watch.Close()
		s.watch = nil
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state}
	if s.principal != nil {
		id := s.principal.Identity
		snap.Identity = &id
	}
	return snap
}

// Principal returns the resolved principal or nil.
func (s *Store) Principal() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

// Subscribe registers fn for every state change and returns its deregistration.
// The returned function is safe to call more than once.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) emit() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Close releases the session watch and all listeners. It is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.watch != nil {
		s.watch.Close()
		s.watch = nil
	}
	s.listeners = nil
}
