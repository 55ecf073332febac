//go:build !windows
// +build !windows

package toast

import (
	"errors"

	"github.com/kolide/desktopnotification/ee/broadcast"
)

func (t *toastNotifier) push(_ broadcast.Notification) error {
	return errors.New("toast notifications require windows")
}
