// Package notifysend delivers notifications by running notify-send. It is
// the fallback for systems where the session bus can't be reached directly.
package notifysend

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/desktopnotification/ee/broadcast"
)

const Name = "notify-send"

type notifySend struct {
	logger  log.Logger
	iconDir string
}

func Factory(iconDir string) broadcast.PluginFactory {
	return broadcast.PluginFactory{
		Name: Name,
		Type: broadcast.Backend,
		New: func(logger log.Logger) (broadcast.Plugin, error) {
			return New(logger, iconDir), nil
		},
	}
}

func New(logger log.Logger, iconDir string) *notifySend {
	return &notifySend{
		logger:  log.With(logger, "plugin", Name),
		iconDir: iconDir,
	}
}

func (n *notifySend) Name() string { return Name }

func (n *notifySend) Type() broadcast.PluginType { return broadcast.Backend }

func (n *notifySend) Available() (bool, string) {
	if _, err := exec.LookPath("notify-send"); err != nil {
		return false, "notify-send not installed"
	}
	return true, ""
}

func (n *notifySend) Notify(ctx context.Context, notification broadcast.Notification) error {
	notifySend, err := exec.LookPath("notify-send")
	if err != nil {
		return fmt.Errorf("notify-send not installed: %w", err)
	}

	args := []string{}
	if appName := notification.AppName(); appName != "" {
		args = append(args, "--app-name", appName)
	}
	if notification.Icon.IsValid() {
		if iconPath, err := notification.Icon.SaveTo(n.iconDir); err == nil {
			args = append(args, "-i", iconPath)
		} else {
			level.Debug(n.logger).Log("msg", "could not write icon, sending without it", "err", err)
		}
	}
	// "--" keeps message text that starts with a dash from being parsed as a flag
	args = append(args, "--", notification.Title, notification.Text)

	cmd := exec.CommandContext(ctx, notifySend, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("could not send notification via notify-send: %s: %w", string(out), err)
	}

	return nil
}
