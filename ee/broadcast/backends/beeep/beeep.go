// Package beeep is the last resort backend, using the cross-platform beeep
// library.
package beeep

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/desktopnotification/ee/broadcast"
)

const Name = "beeep"

// beeep keeps the application name in a package variable
var beeepLock sync.Mutex

type beeepNotifier struct {
	logger  log.Logger
	iconDir string
	notify  func(title, message string, icon any) error
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

func New(logger log.Logger, iconDir string) *beeepNotifier {
	return &beeepNotifier{
		logger:  log.With(logger, "plugin", Name),
		iconDir: iconDir,
		notify:  beeep.Notify,
	}
}

func (b *beeepNotifier) Name() string { return Name }

func (b *beeepNotifier) Type() broadcast.PluginType { return broadcast.Backend }

// Available is always true: beeep handles platform detection internally and
// reports failures from Notify.
func (b *beeepNotifier) Available() (bool, string) {
	return true, ""
}

func (b *beeepNotifier) Notify(ctx context.Context, n broadcast.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	iconPath := ""
	if n.Icon.IsValid() {
		p, err := n.Icon.SaveTo(b.iconDir)
		if err != nil {
			level.Debug(b.logger).Log("msg", "could not write icon, sending without it", "err", err)
		} else {
			iconPath = p
		}
	}

	beeepLock.Lock()
	defer beeepLock.Unlock()

	if appName := n.AppName(); appName != "" {
		beeep.AppName = appName
	}

	if err := b.notify(n.Title, n.Text, iconPath); err != nil {
		return fmt.Errorf("could not send notification via beeep: %w", err)
	}
	return nil
}
