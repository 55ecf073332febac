// Package history keeps a record of delivered notifications and prunes
// records older than the retention period.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/desktopnotification/ee/broadcast"
	"github.com/kolide/desktopnotification/pkg/storage"
	"github.com/mixer/clock"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// BucketName is the storage bucket delivery records live in.
	BucketName = "notification_history"

	// Approximately 6 months
	defaultRetentionPeriod = time.Hour * 24 * 30 * 6

	// How frequently to check for old records
	defaultCleanupInterval = time.Hour * 12
)

// Entry is one delivery attempt.
type Entry struct {
	ID      string    `msgpack:"id"`
	App     string    `msgpack:"app"`
	Alert   string    `msgpack:"alert"`
	Title   string    `msgpack:"title"`
	Text    string    `msgpack:"text"`
	Backend string    `msgpack:"backend,omitempty"`
	Error   string    `msgpack:"error,omitempty"`
	SentAt  time.Time `msgpack:"sent_at"`
}

// Delivered reports whether any backend accepted the notification.
func (e Entry) Delivered() bool {
	return e.Backend != "" && e.Error == ""
}

type Recorder struct {
	store           storage.KVStore
	logger          log.Logger
	clock           clock.Clock
	retentionPeriod time.Duration
	cleanupInterval time.Duration
	ctx             context.Context
	cancel          context.CancelFunc
}

type Option func(*Recorder)

func WithLogger(logger log.Logger) Option {
	return func(r *Recorder) {
		r.logger = log.With(logger, "component", "notification_history")
	}
}

func WithRetentionPeriod(retention time.Duration) Option {
	return func(r *Recorder) {
		if retention > 0 {
			r.retentionPeriod = retention
		}
	}
}

func WithCleanupInterval(interval time.Duration) Option {
	return func(r *Recorder) {
		if interval > 0 {
			r.cleanupInterval = interval
		}
	}
}

// WithClock replaces the realtime clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(r *Recorder) {
		r.clock = c
	}
}

func New(store storage.KVStore, opts ...Option) *Recorder {
	r := &Recorder{
		store:           store,
		logger:          log.NewNopLogger(),
		clock:           clock.DefaultClock{},
		retentionPeriod: defaultRetentionPeriod,
		cleanupInterval: defaultCleanupInterval,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())

	return r
}

// Record implements broadcast.Recorder. Storage errors are logged.
func (r *Recorder) Record(n broadcast.Notification, backend string, deliveryErr error) {
	entry := Entry{
		ID:      n.ID,
		App:     n.AppName(),
		Alert:   n.Alert.Key,
		Title:   n.Title,
		Text:    n.Text,
		Backend: backend,
		SentAt:  r.clock.Now(),
	}
	if deliveryErr != nil {
		entry.Error = deliveryErr.Error()
	}

	raw, err := msgpack.Marshal(entry)
	if err != nil {
		level.Error(r.logger).Log("msg", "could not marshal history entry", "id", n.ID, "err", err)
		return
	}

	if err := r.store.Set([]byte(n.ID), raw); err != nil {
		level.Error(r.logger).Log("msg", "could not store history entry", "id", n.ID, "err", err)
	}
}

var ErrNotFound = errors.New("history entry not found")

func (r *Recorder) Get(id string) (Entry, error) {
	raw, err := r.store.Get([]byte(id))
	if err != nil {
		return Entry{}, fmt.Errorf("reading history entry: %w", err)
	}
	if raw == nil {
		return Entry{}, ErrNotFound
	}

	var entry Entry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("decoding history entry %s: %w", id, err)
	}
	return entry, nil
}

// List returns all entries, oldest first.
func (r *Recorder) List() ([]Entry, error) {
	var entries []Entry
	if err := r.store.ForEach(func(k, v []byte) error {
		var entry Entry
		if err := msgpack.Unmarshal(v, &entry); err != nil {
			return fmt.Errorf("decoding history entry %s: %w", string(k), err)
		}
		entries = append(entries, entry)
		return nil
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SentAt.Before(entries[j].SentAt)
	})
	return entries, nil
}

// Execute runs the cleanup job until interrupted.
func (r *Recorder) Execute() error {
	r.cleanup()

	t := time.NewTicker(r.cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return nil
		case <-t.C:
			r.cleanup()
		}
	}
}

func (r *Recorder) Interrupt(_ error) {
	r.cancel()
}

func (r *Recorder) cleanup() {
	cutoff := r.clock.Now().Add(-r.retentionPeriod)

	keysToDelete := make([][]byte, 0)
	if err := r.store.ForEach(func(k, v []byte) error {
		var entry Entry
		if err := msgpack.Unmarshal(v, &entry); err != nil {
			level.Info(r.logger).Log("msg", "removing undecodable history entry", "key", string(k), "err", err)
			keysToDelete = append(keysToDelete, append([]byte{}, k...))
			return nil
		}

		if entry.SentAt.Before(cutoff) {
			keysToDelete = append(keysToDelete, append([]byte{}, k...))
		}

		return nil
	}); err != nil {
		level.Error(r.logger).Log("msg", "could not iterate over history to determine which entries are expired", "err", err)
	}

	if len(keysToDelete) == 0 {
		return
	}

	if err := r.store.Delete(keysToDelete...); err != nil {
		level.Error(r.logger).Log("msg", "could not delete expired history entries", "err", err)
		return
	}

	level.Debug(r.logger).Log("msg", "pruned notification history", "deleted", len(keysToDelete))
}
