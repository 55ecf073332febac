// Package freedesktop delivers notifications through the
// org.freedesktop.Notifications service on the session bus.
//
// See: https://specifications.freedesktop.org/notification-spec/notification-spec-latest.html
package freedesktop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/godbus/dbus/v5"
	"github.com/kolide/desktopnotification/ee/broadcast"
)

const (
	Name = "freedesktop"

	notificationServiceObj       = "/org/freedesktop/Notifications"
	notificationServiceInterface = "org.freedesktop.Notifications"
	methodNotify                 = "org.freedesktop.Notifications.Notify"
	methodGetServerInformation   = "org.freedesktop.Notifications.GetServerInformation"
	signalNotificationClosed     = "org.freedesktop.Notifications.NotificationClosed"
	signalActionInvoked          = "org.freedesktop.Notifications.ActionInvoked"

	probeTimeout = 3 * time.Second
)

type dbusNotifier struct {
	logger    log.Logger
	iconDir   string
	conn      *dbus.Conn
	signal    chan *dbus.Signal
	interrupt chan struct{}

	interrupted atomic.Bool

	lock                sync.RWMutex
	sentNotificationIds map[uint32]string
}

// Factory returns the plugin factory. Icons are written to iconDir, since
// the notification daemon can only reference them by path.
func Factory(iconDir string) broadcast.PluginFactory {
	return broadcast.PluginFactory{
		Name: Name,
		Type: broadcast.Backend,
		New: func(logger log.Logger) (broadcast.Plugin, error) {
			return New(logger, iconDir)
		},
	}
}

func New(logger log.Logger, iconDir string) (*dbusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("could not connect to session bus: %w", err)
	}

	return newWithConn(logger, iconDir, conn), nil
}

func newWithConn(logger log.Logger, iconDir string, conn *dbus.Conn) *dbusNotifier {
	return &dbusNotifier{
		logger:              log.With(logger, "plugin", Name),
		iconDir:             iconDir,
		conn:                conn,
		signal:              make(chan *dbus.Signal, 10),
		interrupt:           make(chan struct{}, 1),
		sentNotificationIds: make(map[uint32]string),
	}
}

func (d *dbusNotifier) Name() string { return Name }

func (d *dbusNotifier) Type() broadcast.PluginType { return broadcast.Backend }

// Available asks the notification daemon to identify itself.
func (d *dbusNotifier) Available() (bool, string) {
	if d.conn == nil {
		return false, "no session bus connection"
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	var serverName, vendor, version, specVersion string
	call := d.conn.Object(notificationServiceInterface, notificationServiceObj).
		CallWithContext(ctx, methodGetServerInformation, 0)
	if call.Err != nil {
		return false, fmt.Sprintf("notification service not reachable: %v", call.Err)
	}

	if err := call.Store(&serverName, &vendor, &version, &specVersion); err != nil {
		return false, fmt.Sprintf("unexpected server information: %v", err)
	}

	level.Debug(d.logger).Log(
		"msg", "found notification server",
		"server", serverName,
		"vendor", vendor,
		"version", version,
		"spec_version", specVersion,
	)
	return true, ""
}

func (d *dbusNotifier) Notify(ctx context.Context, n broadcast.Notification) error {
	iconPath := ""
	if n.Icon.IsValid() {
		p, err := n.Icon.SaveTo(d.iconDir)
		if err != nil {
			level.Debug(d.logger).Log("msg", "could not write icon, sending without it", "err", err)
		} else {
			iconPath = p
		}
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(1)),
	}
	if n.Alert.Key != "" {
		hints["x-desktop-notification-alert"] = dbus.MakeVariant(n.Alert.Key)
	}

	call := d.conn.Object(notificationServiceInterface, notificationServiceObj).CallWithContext(ctx, methodNotify,
		0,
		n.AppName(), // app_name
		uint32(0),   // replaces_id
		iconPath,    // app_icon
		n.Title,     // summary
		n.Text,      // body
		[]string{},  // actions
		hints,       // hints
		int32(-1),   // expire_timeout -- -1 lets the server decide
	)
	if call.Err != nil {
		return fmt.Errorf("could not send notification via dbus: %w", call.Err)
	}

	var notificationId uint32
	if err := call.Store(&notificationId); err != nil {
		level.Info(d.logger).Log("msg", "could not get notification ID from dbus call", "err", err)
		return nil
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	d.sentNotificationIds[notificationId] = n.ID

	return nil
}

// Execute listens for signals about notifications this plugin sent. Failing
// to subscribe only costs close tracking, so it is logged and Execute waits
// for the interrupt.
func (d *dbusNotifier) Execute() error {
	if err := d.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(notificationServiceObj),
		dbus.WithMatchInterface(notificationServiceInterface),
	); err != nil {
		level.Error(d.logger).Log("msg", "couldn't add match signal", "err", err)
		<-d.interrupt
		return nil
	}
	d.conn.Signal(d.signal)

	for {
		select {
		case signal := <-d.signal:
			d.handleSignal(signal)
		case <-d.interrupt:
			return nil
		}
	}
}

func (d *dbusNotifier) Interrupt(_ error) {
	if d.interrupted.Swap(true) {
		return
	}

	d.interrupt <- struct{}{}

	d.conn.RemoveSignal(d.signal)
	d.conn.RemoveMatchSignal(
		dbus.WithMatchObjectPath(notificationServiceObj),
		dbus.WithMatchInterface(notificationServiceInterface),
	)
}

func (d *dbusNotifier) handleSignal(signal *dbus.Signal) {
	if signal == nil || len(signal.Body) < 2 {
		return
	}

	dbusId, ok := signal.Body[0].(uint32)
	if !ok {
		return
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	notificationId, found := d.sentNotificationIds[dbusId]
	if !found {
		// Not one of ours
		return
	}

	switch signal.Name {
	case signalNotificationClosed:
		reason, _ := signal.Body[1].(uint32)
		delete(d.sentNotificationIds, dbusId)
		level.Debug(d.logger).Log(
			"msg", "notification closed",
			"id", notificationId,
			"reason", closeReason(reason),
		)
	case signalActionInvoked:
		action, _ := signal.Body[1].(string)
		level.Debug(d.logger).Log(
			"msg", "notification action invoked",
			"id", notificationId,
			"action", action,
		)
	}
}

func closeReason(reason uint32) string {
	switch reason {
	case 1:
		return "expired"
	case 2:
		return "dismissed"
	case 3:
		return "closed_by_call"
	default:
		return "undefined"
	}
}
