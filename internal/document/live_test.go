package document

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

type fakeStore struct {
	mu   sync.Mutex
	docs map[string][]model.Document
	gate map[string]chan struct{}
	err  error
}

func (f *fakeStore) load(ctx context.Context, owner string) ([]model.Document, error) {
	f.mu.Lock()
	gate := f.gate[owner]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Document(nil), f.docs[owner]...), nil
}

func (f *fakeStore) set(owner string, docs ...model.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[owner] = docs
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string][]model.Document{}, gate: map[string]chan struct{}{}}
}

func waitFor(t *testing.T, l *LiveList, cond func(View) bool) View {
	t.Helper()
	var v View
	require.Eventually(t, func() bool {
		v = l.View()
		return cond(v)
	}, 2*time.Second, 5*time.Millisecond)
	return v
}

func TestLiveListLoadsAndFollowsChanges(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	store := newFakeStore()
	store.set("u1", doc("1", "a.pdf", time.Hour))

	l := NewLiveList(store.load, hub, WithClock(func() time.Time { return now }))
	defer l.Close()

	l.SetOwner("u1")
	v := waitFor(t, l, func(v View) bool { return !v.Loading })
	assert.Equal(t, []string{"1"}, ids(v.Documents))

	store.set("u1", doc("2", "b.pdf", time.Minute), doc("1", "a.pdf", time.Hour))
	hub.Publish(realtime.Event{Topic: realtime.DocumentsTopic("u1"), Op: realtime.OpInsert, Subject: "2"})

	waitFor(t, l, func(v View) bool { return v.Total == 2 })
}

func TestLiveListOwnerSwitchDropsStaleResults(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	store := newFakeStore()
	store.set("a", doc("a1", "a.pdf", time.Hour))
	store.set("b", doc("b1", "b.pdf", time.Hour))
	release := make(chan struct{})
	store.gate["a"] = release

	l := NewLiveList(store.load, hub, WithClock(func() time.Time { return now }))
	defer l.Close()

	l.SetOwner("a")
	l.SetOwner("b")
	waitFor(t, l, func(v View) bool { return !v.Loading })
	close(release)

	time.Sleep(20 * time.Millisecond)
	v := l.View()
	assert.Equal(t, "b", v.OwnerID)
	assert.Equal(t, []string{"b1"}, ids(v.Documents))
	assert.Equal(t, 0, hub.SubscriberCount(realtime.DocumentsTopic("a")))
	assert.Equal(t, 1, hub.SubscriberCount(realtime.DocumentsTopic("b")))
}

func TestLiveListMutatorsNotify(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	store := newFakeStore()
	store.set("u1", doc("1", "Rechnung.pdf", time.Hour), doc("2", "urlaub.png", 10*day))

	l := NewLiveList(store.load, hub, WithClock(func() time.Time { return now }))
	defer l.Close()
	l.SetOwner("u1")
	waitFor(t, l, func(v View) bool { return v.Total == 2 })

	changes := make(chan View, 8)
	unsubscribe := l.OnChange(func(v View) { changes <- v })

	l.SetQuery("rechnung")
	v := <-changes
	assert.Equal(t, []string{"1"}, ids(v.Documents))

	l.SetQuery("")
	<-changes
	l.SetSort(SortOldest)
	v = <-changes
	assert.Equal(t, []string{"2", "1"}, ids(v.Documents))

	l.SetWindow(WindowLast7Days)
	v = <-changes
	assert.Equal(t, []string{"1"}, ids(v.Documents))
	assert.Equal(t, 2, v.Total)

	unsubscribe()
	unsubscribe()
	l.SetQuery("x")
	select {
	case <-changes:
		t.Fatal("listener called after unsubscribe")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLiveListLoadError(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	store := newFakeStore()
	store.err = errors.New("db down")

	l := NewLiveList(store.load, hub)
	defer l.Close()
	l.SetOwner("u1")

	v := waitFor(t, l, func(v View) bool { return !v.Loading })
	assert.EqualError(t, v.Err, "db down")
}

func TestLiveListClose(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	store := newFakeStore()

	l := NewLiveList(store.load, hub)
	l.SetOwner("u1")
	l.Close()
	l.Close()

	assert.Equal(t, 0, hub.SubscriberCount(realtime.DocumentsTopic("u1")))
	l.SetOwner("u2")
	assert.Equal(t, 0, hub.SubscriberCount(realtime.DocumentsTopic("u2")))
}

func TestLiveListAfterHubClosed(t *testing.T) {
	hub := realtime.NewHub()
	hub.Close()
	store := newFakeStore()

	l := NewLiveList(store.load, hub)
	assert.NotPanics(t, func() {
		l.SetOwner("u1")
		l.Close()
	})
}
