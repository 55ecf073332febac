// Package broadcast routes notifications from registered applications to
// desktop notification backends.
//
// A Core owns the loaded backend plugins and the set of registered
// applications. BroadcastNotification never blocks: notifications are queued
// and delivered by the Core's Execute loop, which is meant to run as an
// oklog/run actor. Delivery failures are logged and recorded, never returned
// to the sender.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sync/errgroup"
)

const (
	defaultQueueSize       = 64
	defaultDeliveryTimeout = 10 * time.Second
)

var (
	ErrNoBackend     = errors.New("no notification backend loaded")
	ErrPluginMissing = errors.New("plugin not loaded")
)

// Recorder receives the outcome of every delivery attempt. backend is empty
// when no backend delivered the notification.
type Recorder interface {
	Record(n Notification, backend string, deliveryErr error)
}

type Core struct {
	logger          log.Logger
	factories       []PluginFactory
	preferred       string
	recorder        Recorder
	deliveryTimeout time.Duration

	mu           sync.RWMutex
	plugins      []Plugin
	primary      string
	applications map[string]*Application
	defaultApp   *Application

	queue       chan Notification
	interrupt   chan struct{}
	interrupted atomic.Bool
}

type Option func(*Core)

func WithLogger(logger log.Logger) Option {
	return func(c *Core) {
		c.logger = log.With(logger, "component", "broadcast_core")
	}
}

// WithPluginFactories fixes the factories this core loads from. Without it,
// the package level registry is consulted on every LoadPlugins call.
func WithPluginFactories(factories ...PluginFactory) Option {
	return func(c *Core) {
		c.factories = append([]PluginFactory{}, factories...)
	}
}

// WithPreferredBackend names the backend that should become primary when it
// loads, regardless of load order.
func WithPreferredBackend(name string) Option {
	return func(c *Core) {
		c.preferred = name
	}
}

func WithQueueSize(size int) Option {
	return func(c *Core) {
		if size > 0 {
			c.queue = make(chan Notification, size)
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(c *Core) {
		c.recorder = recorder
	}
}

func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(c *Core) {
		if timeout > 0 {
			c.deliveryTimeout = timeout
		}
	}
}

func New(opts ...Option) *Core {
	c := &Core{
		logger:          log.NewNopLogger(),
		deliveryTimeout: defaultDeliveryTimeout,
		applications:    make(map[string]*Application),
		queue:           make(chan Notification, defaultQueueSize),
		interrupt:       make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var (
	instanceOnce sync.Once
	instance     *Core
)

// Instance returns the process wide core. opts are only applied by the call
// that creates it.
func Instance(opts ...Option) *Core {
	instanceOnce.Do(func() {
		instance = New(opts...)
	})
	return instance
}

// PluginNames returns the loaded plugins in load order.
func (c *Core) PluginNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.plugins))
	for _, p := range c.plugins {
		names = append(names, p.Name())
	}
	return names
}

// LoadPlugins creates and probes every known plugin of the given types that
// is not loaded yet. Plugins that fail to create or report themselves
// unavailable are skipped. Probing runs concurrently since some backends
// need a round trip to a notification daemon.
func (c *Core) LoadPlugins(types PluginType) {
	var candidates []PluginFactory
	for _, f := range c.pluginFactories() {
		if f.Type&types == 0 || c.isLoaded(f.Name) {
			continue
		}
		candidates = append(candidates, f)
	}

	probed := make([]Plugin, len(candidates))
	var g errgroup.Group
	for i, f := range candidates {
		i, f := i, f
		g.Go(func() error {
			p, err := f.New(c.logger)
			if err != nil {
				return fmt.Errorf("creating plugin %s: %w", f.Name, err)
			}

			if ok, reason := p.Available(); !ok {
				level.Debug(c.logger).Log(
					"msg", "plugin not available",
					"plugin", f.Name,
					"reason", reason,
				)
				return nil
			}

			probed[i] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		level.Info(c.logger).Log("msg", "some plugins could not be created", "err", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range probed {
		if p == nil || c.isLoadedLocked(p.Name()) {
			continue
		}
		c.plugins = append(c.plugins, p)
		level.Debug(c.logger).Log("msg", "loaded plugin", "plugin", p.Name(), "type", p.Type())
	}

	c.choosePrimaryLocked()
}

// Plugin returns the loaded plugin with the given name.
func (c *Core) Plugin(name string) (Plugin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Listeners returns the loaded plugins that need to run alongside the core.
func (c *Core) Listeners() []Listener {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var listeners []Listener
	for _, p := range c.plugins {
		if l, ok := p.(Listener); ok {
			listeners = append(listeners, l)
		}
	}
	return listeners
}

func (c *Core) PrimaryNotificationBackend() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primary
}

func (c *Core) SetPrimaryNotificationBackend(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.plugins {
		if p.Name() == name && p.Type()&Backend != 0 {
			c.primary = name
			return nil
		}
	}

	return fmt.Errorf("setting primary backend %s: %w", name, ErrPluginMissing)
}

func (c *Core) RegisterApplication(app *Application) {
	if app == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.applications[app.Name()]; exists {
		level.Info(c.logger).Log("msg", "application already registered", "app", app.Name())
		return
	}

	c.applications[app.Name()] = app
	level.Debug(c.logger).Log("msg", "registered application", "app", app.Name())
}

func (c *Core) DeregisterApplication(app *Application) {
	if app == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.applications[app.Name()]; !exists {
		level.Info(c.logger).Log("msg", "deregistering unknown application", "app", app.Name())
		return
	}

	delete(c.applications, app.Name())
	if c.defaultApp != nil && c.defaultApp.Name() == app.Name() {
		c.defaultApp = nil
	}
	level.Debug(c.logger).Log("msg", "deregistered application", "app", app.Name())
}

// SetDefaultApplication marks a registered application as the default
// target. Unregistered applications are ignored.
func (c *Core) SetDefaultApplication(app *Application) {
	if app == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	registered, exists := c.applications[app.Name()]
	if !exists {
		level.Info(c.logger).Log("msg", "cannot make unregistered application the default", "app", app.Name())
		return
	}
	c.defaultApp = registered
}

func (c *Core) DefaultApplication() *Application {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultApp
}

// Applications returns the names of all registered applications.
func (c *Core) Applications() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.applications))
	for name := range c.applications {
		names = append(names, name)
	}
	return names
}

// BroadcastNotification queues n for delivery. It never blocks; when the
// queue is full the notification is dropped.
func (c *Core) BroadcastNotification(n Notification) {
	if n.Application == nil {
		n.Application = c.DefaultApplication()
	}

	if n.Application == nil || !c.isRegistered(n.Application.Name()) {
		level.Info(c.logger).Log(
			"msg", "dropping notification from unregistered application",
			"app", n.AppName(),
			"id", n.ID,
		)
		return
	}

	select {
	case c.queue <- n:
	default:
		level.Info(c.logger).Log(
			"msg", "notification queue full, dropping notification",
			"app", n.AppName(),
			"id", n.ID,
		)
	}
}

// Execute delivers queued notifications until interrupted.
func (c *Core) Execute() error {
	for {
		select {
		case n := <-c.queue:
			c.deliver(n)
		case <-c.interrupt:
			return nil
		}
	}
}

func (c *Core) Interrupt(_ error) {
	if c.interrupted.Swap(true) {
		return
	}
	c.interrupt <- struct{}{}
}

func (c *Core) deliver(n Notification) {
	chain := c.deliveryChain()
	if len(chain) == 0 {
		level.Info(c.logger).Log("msg", "cannot deliver notification", "id", n.ID, "err", ErrNoBackend)
		c.record(n, "", ErrNoBackend)
		return
	}

	var lastErr error
	for _, p := range chain {
		ctx, cancel := context.WithTimeout(context.Background(), c.deliveryTimeout)
		err := p.Notify(ctx, n)
		cancel()

		if err == nil {
			level.Debug(c.logger).Log("msg", "delivered notification", "id", n.ID, "backend", p.Name())
			c.record(n, p.Name(), nil)
			return
		}

		level.Info(c.logger).Log(
			"msg", "backend could not deliver notification, trying next",
			"id", n.ID,
			"backend", p.Name(),
			"err", err,
		)
		lastErr = err
	}

	level.Error(c.logger).Log("msg", "no backend delivered notification", "id", n.ID, "err", lastErr)
	c.record(n, "", lastErr)
}

// deliveryChain is the primary backend followed by the remaining backends
// in load order.
func (c *Core) deliveryChain() []Plugin {
	c.mu.RLock()
	defer c.mu.RUnlock()

	chain := make([]Plugin, 0, len(c.plugins))
	for _, p := range c.plugins {
		if p.Name() == c.primary {
			chain = append(chain, p)
		}
	}
	for _, p := range c.plugins {
		if p.Name() != c.primary && p.Type()&Backend != 0 {
			chain = append(chain, p)
		}
	}
	return chain
}

func (c *Core) record(n Notification, backend string, err error) {
	if c.recorder == nil {
		return
	}
	c.recorder.Record(n, backend, err)
}

func (c *Core) pluginFactories() []PluginFactory {
	if c.factories != nil {
		return c.factories
	}
	return registeredPluginFactories()
}

func (c *Core) choosePrimaryLocked() {
	if c.preferred != "" && c.isLoadedLocked(c.preferred) {
		c.primary = c.preferred
		return
	}

	if c.primary != "" && c.isLoadedLocked(c.primary) {
		return
	}

	c.primary = ""
	for _, p := range c.plugins {
		if p.Type()&Backend != 0 {
			c.primary = p.Name()
			return
		}
	}
}

func (c *Core) isLoaded(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isLoadedLocked(name)
}

func (c *Core) isLoadedLocked(name string) bool {
	for _, p := range c.plugins {
		if p.Name() == name {
			return true
		}
	}
	return false
}

func (c *Core) isRegistered(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.applications[name]
	return ok
}
