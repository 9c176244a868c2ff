package document

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"docportal/internal/model"
	"docportal/internal/realtime"
)

// Loader returns every document of an owner, newest first.
type Loader func(ctx context.Context, ownerID string) ([]model.Document, error)

// View is a snapshot of a LiveList.
type View struct {
	OwnerID   string           `json:"owner_id"`
	Documents []model.Document `json:"documents"`
	// Total counts the owner's documents before filtering.
	Total   int    `json:"total"`
	Filter  Filter `json:"filter"`
	Loading bool   `json:"loading"`
	Err     error  `json:"-"`
}

// LiveList keeps the document list of one owner namespace current. Every
// change notification on the owner's topic replaces the whole list. Switching
// owners cancels the old subscription, and results that belong to a superseded
// owner are discarded.
//
// The list state is only written by its own refreshes and mutators.
type LiveList struct {
	load    Loader
	events  realtime.Subscriber
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger

	mu        sync.Mutex
	owner     string
	gen       uint64
	seq       uint64
	applied   uint64
	sub       *realtime.Subscription
	docs      []model.Document
	filter    Filter
	loading   bool
	err       error
	listeners map[int]func(View)
	nextID    int
	closed    bool
}

type LiveOption func(*LiveList)

// WithTimeout bounds every reload.
func WithTimeout(d time.Duration) LiveOption {
	return func(l *LiveList) { l.timeout = d }
}

// WithClock replaces time.Now for date windows.
func WithClock(now func() time.Time) LiveOption {
	return func(l *LiveList) { l.now = now }
}

func WithLogger(log *zap.Logger) LiveOption {
	return func(l *LiveList) { l.log = log }
}

func NewLiveList(load Loader, events realtime.Subscriber, opts ...LiveOption) *LiveList {
	l := &LiveList{
		load:      load,
		events:    events,
		now:       time.Now,
		log:       zap.NewNop(),
		filter:    DefaultFilter(),
		listeners: make(map[int]func(View)),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// SetOwner binds the list to ownerID, replacing any previous namespace.
// Setting the current owner again is a no-op.
func (l *LiveList) SetOwner(ownerID string) {
	l.mu.Lock()
	if l.closed || (ownerID == l.owner && l.sub != nil) {
		l.mu.Unlock()
		return
	}
	if l.sub != nil {
		l.sub.Close()
		l.sub = nil
	}
	l.gen++
	gen := l.gen
	l.owner = ownerID
	l.docs = nil
	l.err = nil
	l.loading = true
	l.seq, l.applied = 0, 0
	l.sub = l.events.Subscribe(realtime.DocumentsTopic(ownerID), func(realtime.Event) {
		l.refresh(gen)
	})
	l.mu.Unlock()

	l.emit()
	go l.refresh(gen)
}

// Owner returns the bound namespace.
func (l *LiveList) Owner() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Refresh reloads the current owner's list.
func (l *LiveList) Refresh() {
	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()
	l.refresh(gen)
}

func (l *LiveList) refresh(gen uint64) {
	l.mu.Lock()
	if l.closed || gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.seq++
	seq := l.seq
	owner := l.owner
	l.mu.Unlock()

	ctx := context.Background()
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	docs, err := l.load(ctx, owner)

	l.mu.Lock()
	if l.closed || gen != l.gen || seq <= l.applied {
		l.mu.Unlock()
		return
	}
	l.applied = seq
	l.loading = false
	l.err = err
	if err == nil {
		l.docs = docs
	} else {
		l.log.Warn("document list reload failed", zap.String("owner_id", owner), zap.Error(err))
	}
	l.mu.Unlock()

	l.emit()
}

// SetQuery sets the search text.
func (l *LiveList) SetQuery(q string) {
	l.update(func(f *Filter) { f.Query = q })
}

// SetSort sets the sort order.
func (l *LiveList) SetSort(s SortOrder) {
	l.update(func(f *Filter) { f.Sort = s })
}

// SetWindow sets the date window.
func (l *LiveList) SetWindow(w DateWindow) {
	l.update(func(f *Filter) { f.Window = w })
}

// SetFilter replaces the whole filter state.
func (l *LiveList) SetFilter(f Filter) {
	l.update(func(cur *Filter) { *cur = f })
}

func (l *LiveList) update(fn func(*Filter)) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	fn(&l.filter)
	l.mu.Unlock()
	l.emit()
}

// View derives the filtered, sorted snapshot.
func (l *LiveList) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewLocked()
}

func (l *LiveList) viewLocked() View {
	return View{
		OwnerID:   l.owner,
		Documents: Apply(l.docs, l.filter, l.now()),
		Total:     len(l.docs),
		Filter:    l.filter,
		Loading:   l.loading,
		Err:       l.err,
	}
}

// OnChange registers fn for every state change and returns its deregistration.
func (l *LiveList) OnChange(fn func(View)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return func() {}
	}
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.listeners, id)
			l.mu.Unlock()
		})
	}
}

func (l *LiveList) emit() {
	l.mu.Lock()
	if l.closed || len(l.listeners) == 0 {
		l.mu.Unlock()
		return
	}
	v := l.viewLocked()
	fns := make([]func(View), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Close cancels the subscription and drops all listeners.
func (l *LiveList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.gen++
	if l.sub != nil {
		l.sub.Close()
		l.sub = nil
	}
	l.listeners = nil
}
