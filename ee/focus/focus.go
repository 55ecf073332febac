// Package focus tracks which window of the host application, if any, holds
// input focus, and tells subscribers when that changes.
package focus

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Window identifies a host application window.
type Window struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Tracker publishes focus window changes. Subscribers are called
// synchronously, in subscription order, on the goroutine that reported the
// change. When events arrive through WithEvents they are all reported from
// the Execute goroutine, which gives subscribers a single writer.
type Tracker struct {
	logger log.Logger
	events <-chan *Window

	mu          sync.RWMutex
	window      *Window
	subscribers map[uint64]func(*Window)
	nextId      uint64

	interrupt   chan struct{}
	interrupted atomic.Bool
}

type Option func(*Tracker)

func WithLogger(logger log.Logger) Option {
	return func(t *Tracker) {
		t.logger = log.With(logger, "component", "focus_tracker")
	}
}

// WithEvents sets the channel Execute reads focus changes from.
func WithEvents(events <-chan *Window) Option {
	return func(t *Tracker) {
		t.events = events
	}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		logger:      log.NewNopLogger(),
		subscribers: make(map[uint64]func(*Window)),
		interrupt:   make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Subscribe registers fn for focus changes and returns a function that
// removes it.
func (t *Tracker) Subscribe(fn func(*Window)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextId
	t.nextId++
	t.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subscribers, id)
		})
	}
}

// FocusWindowChanged records w as the focus window (nil when no window of
// the host has focus) and notifies subscribers.
func (t *Tracker) FocusWindowChanged(w *Window) {
	if w != nil {
		copied := *w
		w = &copied
	}

	t.mu.Lock()
	t.window = w
	ids := make([]uint64, 0, len(t.subscribers))
	for id := range t.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	subscribers := make([]func(*Window), 0, len(ids))
	for _, id := range ids {
		subscribers = append(subscribers, t.subscribers[id])
	}
	t.mu.Unlock()

	level.Debug(t.logger).Log("msg", "focus window changed", "focused", w != nil)

	for _, fn := range subscribers {
		fn(w)
	}
}

// FocusWindow returns the current focus window, or nil.
func (t *Tracker) FocusWindow() *Window {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.window == nil {
		return nil
	}
	copied := *t.window
	return &copied
}

func (t *Tracker) Focused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.window != nil
}

// Execute reports events from the WithEvents channel until interrupted or
// until the channel is closed.
func (t *Tracker) Execute() error {
	for {
		select {
		case w, ok := <-t.events:
			if !ok {
				// A nil events channel blocks forever, so this is a closed one
				<-t.interrupt
				return nil
			}
			t.FocusWindowChanged(w)
		case <-t.interrupt:
			return nil
		}
	}
}

func (t *Tracker) Interrupt(_ error) {
	if t.interrupted.Swap(true) {
		return
	}
	t.interrupt <- struct{}{}
}
