package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docportal/internal/model"
	"docportal/internal/realtime"
)

type fakeBackend struct {
	hub *realtime.Hub

	mu      sync.Mutex
	valid   map[string]*Principal
	gate    chan struct{}
	resolve int
}

func (f *fakeBackend) Resolve(ctx context.Context, token string) (*Principal, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolve++
	p, ok := f.valid[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeBackend) WatchSession(userID string, fn func(realtime.Event)) *realtime.Subscription {
	return f.hub.Subscribe(realtime.SessionTopic(userID), fn)
}

func (f *fakeBackend) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.valid, token)
}

func newBackend(t *testing.T) *fakeBackend {
	hub := realtime.NewHub()
	t.Cleanup(hub.Close)
	return &fakeBackend{
		hub: hub,
		valid: map[string]*Principal{
			"tok-1": {Identity: model.Identity{ID: "u1", Email: "anna@example.com", Role: model.RoleClient}, TokenID: "jti-1"},
		},
	}
}

func waitState(t *testing.T, s *Store, want State) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = s.Snapshot()
		return snap.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestStoreLoadingThenAuthenticated(t *testing.T) {
	b := newBackend(t)
	b.gate = make(chan struct{})

	s := NewStore(b, "tok-1")
	defer s.Close()

	changes := make(chan Snapshot, 4)
	unsubscribe := s.Subscribe(func(snap Snapshot) { changes <- snap })
	defer unsubscribe()

	s.Start(context.Background())
	assert.Equal(t, StateLoading, s.Snapshot().State)
	assert.Nil(t, s.Snapshot().Identity)

	close(b.gate)
	snap := <-changes
	assert.Equal(t, StateAuthenticated, snap.State)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, model.RoleClient, snap.Identity.Role)
	assert.Equal(t, "jti-1", s.Principal().TokenID)
}

func TestStoreAnonymous(t *testing.T) {
	b := newBackend(t)

	for _, token := range []string{"", "bogus"} {
		s := NewStore(b, token)
		s.Start(context.Background())
		snap := waitState(t, s, StateAnonymous)
		assert.Nil(t, snap.Identity)
		assert.Nil(t, s.Principal())
		s.Close()
	}
}

func TestStoreSignOut(t *testing.T) {
	b := newBackend(t)
	s := NewStore(b, "tok-1")
	defer s.Close()
	s.Start(context.Background())
	waitState(t, s, StateAuthenticated)

	b.hub.Publish(realtime.Event{Topic: realtime.SessionTopic("u1"), Op: realtime.OpSignOut, Subject: "other-jti"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateAuthenticated, s.Snapshot().State)

	b.hub.Publish(realtime.Event{Topic: realtime.SessionTopic("u1"), Op: realtime.OpSignOut, Subject: "jti-1"})
	waitState(t, s, StateAnonymous)
	assert.Equal(t, 0, b.hub.SubscriberCount(realtime.SessionTopic("u1")))
}

func TestStoreSignInRefreshes(t *testing.T) {
	b := newBackend(t)
	s := NewStore(b, "tok-1")
	defer s.Close()
	s.Start(context.Background())
	waitState(t, s, StateAuthenticated)

	b.revoke("tok-1")
	b.hub.Publish(realtime.Event{Topic: realtime.SessionTopic("u1"), Op: realtime.OpSignIn, Subject: "jti-2"})
	waitState(t, s, StateAnonymous)
}

func TestStoreCloseDeregisters(t *testing.T) {
	b := newBackend(t)
	s := NewStore(b, "tok-1")
	s.Start(context.Background())
	waitState(t, s, StateAuthenticated)

	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })
	s.Close()
	s.Close()

	assert.Equal(t, 0, b.hub.SubscriberCount(realtime.SessionTopic("u1")))
	b.hub.Publish(realtime.Event{Topic: realtime.SessionTopic("u1"), Op: realtime.OpSignOut, Subject: "jti-1"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, calls)
}

func TestStoreResolvesAfterHubClosed(t *testing.T) {
	b := newBackend(t)
	b.hub.Close()

	s := NewStore(b, "tok-1")
	s.Start(context.Background())
	waitState(t, s, StateAuthenticated)
	assert.NotPanics(t, s.Close)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "anonymous", StateAnonymous.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
}
