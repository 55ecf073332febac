//go:build windows
// +build windows

package toast

import (
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/kolide/desktopnotification/ee/broadcast"
	"github.com/stretchr/testify/assert"
)

func TestBuildToast(t *testing.T) {
	t.Parallel()

	iconDir := t.TempDir()
	notifier := New(log.NewNopLogger(), iconDir)

	app := broadcast.NewApplication("test-app", broadcast.DefaultIcon())
	n := broadcast.NewNotification(app, broadcast.Alert{}, "New message", "hello", broadcast.DefaultIcon())

	built := notifier.buildToast(n)
	assert.Equal(t, "test-app", built.AppID)
	assert.Equal(t, "New message", built.Title)
	assert.Equal(t, "hello", built.Message)
	assert.True(t, strings.HasPrefix(built.Icon, iconDir))

	noApp := notifier.buildToast(broadcast.Notification{Title: "t", Text: "b"})
	assert.Equal(t, "Desktop Notification", noApp.AppID)
	assert.Empty(t, noApp.Icon)
}
