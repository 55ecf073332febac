// Package notification is the DesktopNotification bridge module. It
// registers the host application with the broadcast core and forwards
// message notifications to it while no window of the host has focus.
package notification

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/desktopnotification/ee/bridge"
	"github.com/kolide/desktopnotification/ee/broadcast"
	"github.com/kolide/desktopnotification/ee/focus"
)

const (
	ModuleName = "DesktopNotification"

	// NewMessageAlert is the only alert this module raises.
	NewMessageAlert = "NewMessage"

	NewMessageTitle = "New message"
)

// Result tells the caller what SendNotification did with a message.
type Result int

const (
	ResultSubmitted Result = iota
	ResultSuppressed
	ResultClosed
)

func (r Result) String() string {
	switch r {
	case ResultSubmitted:
		return "submitted"
	case ResultSuppressed:
		return "suppressed"
	case ResultClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(text []byte) error {
	switch string(text) {
	case "submitted":
		*r = ResultSubmitted
	case "suppressed":
		*r = ResultSuppressed
	case "closed":
		*r = ResultClosed
	default:
		return fmt.Errorf("unknown notification result %q", text)
	}
	return nil
}

// Broadcaster is the part of broadcast.Core the module uses.
type Broadcaster interface {
	PluginNames() []string
	LoadPlugins(types broadcast.PluginType)
	PrimaryNotificationBackend() string
	RegisterApplication(app *broadcast.Application)
	SetDefaultApplication(app *broadcast.Application)
	DeregisterApplication(app *broadcast.Application)
	BroadcastNotification(n broadcast.Notification)
}

// FocusSubscriber delivers focus window changes; focus.Tracker implements it.
type FocusSubscriber interface {
	Subscribe(fn func(*focus.Window)) (unsubscribe func())
}

type DesktopNotification struct {
	logger log.Logger
	core   Broadcaster
	app    *broadcast.Application
	icon   broadcast.Icon

	appName string

	// Written by focus events, read by SendNotification. The two may run on
	// different goroutines, hence atomic.
	appHasFocus atomic.Bool

	unsubscribe func()
	closeOnce   sync.Once
	closed      atomic.Bool

	bridgeLock sync.Mutex
	bridge     *bridge.Bridge
}

type Option func(*DesktopNotification)

// WithApplicationName overrides the application name, which defaults to
// the executable name.
func WithApplicationName(name string) Option {
	return func(d *DesktopNotification) {
		if name != "" {
			d.appName = name
		}
	}
}

func WithIcon(icon broadcast.Icon) Option {
	return func(d *DesktopNotification) {
		if icon.IsValid() {
			d.icon = icon
		}
	}
}

// New creates the module and registers its application with core. Backend
// plugins are only loaded when core has none loaded yet.
func New(logger log.Logger, core Broadcaster, focusSubscriber FocusSubscriber, opts ...Option) *DesktopNotification {
	d := &DesktopNotification{
		logger:  log.With(logger, "component", "desktop_notification"),
		core:    core,
		icon:    broadcast.DefaultIcon(),
		appName: executableName(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if focusSubscriber != nil {
		d.unsubscribe = focusSubscriber.Subscribe(d.focusWindowChanged)
	}

	d.app = broadcast.NewApplication(d.appName, d.icon)
	d.app.AddAlert(broadcast.NewAlert(NewMessageAlert, d.icon))

	if len(core.PluginNames()) == 0 {
		core.LoadPlugins(broadcast.Backend)
	}

	level.Debug(d.logger).Log(
		"msg", "loaded notification plugins",
		"plugins", strings.Join(core.PluginNames(), ","),
	)

	core.RegisterApplication(d.app)
	core.SetDefaultApplication(d.app)

	level.Debug(d.logger).Log(
		"msg", "current notification backend",
		"backend", core.PrimaryNotificationBackend(),
	)

	return d
}

// Close deregisters the application. It is safe to call more than once.
func (d *DesktopNotification) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		if d.unsubscribe != nil {
			d.unsubscribe()
		}
		d.core.DeregisterApplication(d.app)
	})
}

func (d *DesktopNotification) focusWindowChanged(w *focus.Window) {
	d.appHasFocus.Store(w != nil)
}

// SendNotification broadcasts text as a new message notification, unless
// a window of the host application has focus.
func (d *DesktopNotification) SendNotification(text string) Result {
	level.Debug(d.logger).Log("msg", "call of SendNotification")

	if d.closed.Load() {
		level.Info(d.logger).Log("msg", "not sending notification, module is closed")
		return ResultClosed
	}

	if d.appHasFocus.Load() {
		level.Debug(d.logger).Log("msg", "not sending notification since an application window is active")
		return ResultSuppressed
	}

	alert, _ := d.app.Alert(NewMessageAlert)
	d.core.BroadcastNotification(broadcast.NewNotification(d.app, alert, NewMessageTitle, text, d.icon))

	return ResultSubmitted
}

// Application returns the identity registered with the core.
func (d *DesktopNotification) Application() *broadcast.Application {
	return d.app
}

func (d *DesktopNotification) ModuleName() string {
	return ModuleName
}

func (d *DesktopNotification) MethodsToExport() []bridge.ModuleMethod {
	return []bridge.ModuleMethod{}
}

func (d *DesktopNotification) ConstantsToExport() map[string]interface{} {
	return map[string]interface{}{}
}

func (d *DesktopNotification) SetBridge(b *bridge.Bridge) {
	d.bridgeLock.Lock()
	defer d.bridgeLock.Unlock()
	d.bridge = b
}

func executableName() string {
	name := filepath.Base(os.Args[0])
	return strings.TrimSuffix(name, filepath.Ext(name))
}
