//go:build windows
// +build windows

package toast

import (
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/desktopnotification/ee/broadcast"
	"gopkg.in/toast.v1"
)

func (t *toastNotifier) push(n broadcast.Notification) error {
	notification := t.buildToast(n)
	return notification.Push()
}

func (t *toastNotifier) buildToast(n broadcast.Notification) toast.Notification {
	notification := toast.Notification{
		AppID:   n.AppName(),
		Title:   n.Title,
		Message: n.Text,
		Actions: []toast.Action{},
	}

	if notification.AppID == "" {
		notification.AppID = "Desktop Notification"
	}

	if n.Icon.IsValid() {
		iconPath, err := n.Icon.SaveTo(t.iconDir)
		if err != nil {
			level.Debug(t.logger).Log("msg", "could not write icon, sending without it", "err", err)
		} else {
			notification.Icon = iconPath
		}
	}

	return notification
}
