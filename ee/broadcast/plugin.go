package broadcast

import (
	"context"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
)

// PluginType is a bit set of plugin categories.
type PluginType uint8

const (
	// Backend plugins display notifications. The first loaded backend is
	// the primary one; the rest are used as fallbacks in load order.
	Backend PluginType = 1 << iota

	AllPlugins = Backend
)

func (t PluginType) String() string {
	var parts []string
	if t&Backend != 0 {
		parts = append(parts, "backend")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Plugin delivers notifications to the desktop.
type Plugin interface {
	Name() string
	Type() PluginType
	// Available reports whether the plugin can deliver on this machine, and
	// why not when it can't.
	Available() (bool, string)
	Notify(ctx context.Context, n Notification) error
}

// Listener is implemented by plugins that need a long running goroutine,
// for example to receive signals from a notification daemon. It has the
// same shape as an oklog/run actor.
type Listener interface {
	Execute() error
	Interrupt(err error)
}

// PluginFactory creates a plugin. Creation failures leave the plugin unloaded.
type PluginFactory struct {
	Name string
	Type PluginType
	New  func(logger log.Logger) (Plugin, error)
}

var (
	factoriesLock sync.Mutex
	factories     []PluginFactory
)

// RegisterPluginFactory makes a plugin known to cores that were not given an
// explicit factory list. Registration order is priority order. Registering a
// name twice replaces the earlier factory in place.
func RegisterPluginFactory(factory PluginFactory) {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()

	for i, f := range factories {
		if f.Name == factory.Name {
			factories[i] = factory
			return
		}
	}
	factories = append(factories, factory)
}

func registeredPluginFactories() []PluginFactory {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()

	out := make([]PluginFactory, len(factories))
	copy(out, factories)
	return out
}
