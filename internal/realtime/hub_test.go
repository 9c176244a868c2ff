package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, n int) (func(Event), func() []Event) {
	t.Helper()
	var mu sync.Mutex
	var got []Event
	done := make(chan struct{})
	fn := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
		if len(got) == n {
			close(done)
		}
	}
	wait := func() []Event {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d events", n)
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), got...)
	}
	return fn, wait
}

func TestHubDeliversInOrder(t *testing.T) {
	h := NewHub()
	defer h.Close()

	fn, wait := collect(t, 50)
	sub := h.Subscribe("documents:u1", fn)
	defer sub.Close()

	for i := 0; i < 50; i++ {
		h.Publish(Event{Topic: "documents:u1", Op: OpInsert, Subject: string(rune('a' + i%26))})
	}

	got := wait()
	require.Len(t, got, 50)
	for i, ev := range got {
		assert.Equal(t, string(rune('a'+i%26)), ev.Subject)
		assert.False(t, ev.At.IsZero())
	}
}

func TestHubTopicIsolation(t *testing.T) {
	h := NewHub()
	defer h.Close()

	other := make(chan Event, 1)
	h.Subscribe("documents:u2", func(ev Event) { other <- ev })

	fn, wait := collect(t, 1)
	h.Subscribe("documents:u1", fn)

	require.NoError(t, h.Notify(context.Background(), Event{Topic: "documents:u1", Op: OpDelete, Subject: "d1"}))

	got := wait()
	assert.Equal(t, "d1", got[0].Subject)
	select {
	case ev := <-other:
		t.Fatalf("unexpected event on other topic: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub()
	defer h.Close()

	calls := make(chan Event, 10)
	sub := h.Subscribe("session:u1", func(ev Event) { calls <- ev })
	assert.Equal(t, 1, h.SubscriberCount("session:u1"))

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, h.SubscriberCount("session:u1"))
	h.Publish(Event{Topic: "session:u1", Op: OpSignOut})

	select {
	case ev := <-calls:
		t.Fatalf("callback after close: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case <-sub.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	h := NewHub()
	defer h.Close()

	release := make(chan struct{})
	h.Subscribe("clients:f1", func(Event) { <-release })

	published := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(Event{Topic: "clients:f1", Op: OpInsert})
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked by slow subscriber")
	}
	close(release)
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("documents:u1", func(Event) {})
	h.Close()

	<-sub.Done()
	late := h.Subscribe("documents:u1", func(Event) {})
	<-late.Done()
	assert.Equal(t, 0, h.SubscriberCount("documents:u1"))

	assert.NotPanics(t, late.Close)
	assert.NotPanics(t, sub.Close)
	assert.NotPanics(t, h.Close)
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent(`{"topic":"documents:u1","op":"insert","subject":"d1","at":"2024-03-01T10:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, "documents:u1", ev.Topic)
	assert.Equal(t, OpInsert, ev.Op)

	_, err = decodeEvent(`{"op":"insert"}`)
	assert.Error(t, err)

	_, err = decodeEvent(`not json`)
	assert.Error(t, err)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "documents:u1", DocumentsTopic("u1"))
	assert.Equal(t, "clients:f1", ClientsTopic("f1"))
	assert.Equal(t, "session:u1", SessionTopic("u1"))
}
