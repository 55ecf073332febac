// Package toast delivers notifications as Windows toast notifications.
package toast

import (
	"context"
	"runtime"

	"github.com/go-kit/kit/log"
	"github.com/kolide/desktopnotification/ee/broadcast"
)

const Name = "windows-toast"

type toastNotifier struct {
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

func New(logger log.Logger, iconDir string) *toastNotifier {
	return &toastNotifier{
		logger:  log.With(logger, "plugin", Name),
		iconDir: iconDir,
	}
}

func (t *toastNotifier) Name() string { return Name }

func (t *toastNotifier) Type() broadcast.PluginType { return broadcast.Backend }

func (t *toastNotifier) Available() (bool, string) {
	if runtime.GOOS != "windows" {
		return false, "toast notifications require windows"
	}
	return true, ""
}

// Notify pushes the toast. The toast library runs powershell synchronously
// and takes no context, so ctx is only checked before starting.
func (t *toastNotifier) Notify(ctx context.Context, n broadcast.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return t.push(n)
}
