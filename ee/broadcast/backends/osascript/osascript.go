// Package osascript delivers notifications through macOS Notification
// Center by running AppleScript.
package osascript

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/kolide/desktopnotification/ee/broadcast"
)

const Name = "osascript"

type osascriptNotifier struct {
	logger log.Logger
}

func Factory() broadcast.PluginFactory {
	return broadcast.PluginFactory{
		Name: Name,
		Type: broadcast.Backend,
		New: func(logger log.Logger) (broadcast.Plugin, error) {
			return New(logger), nil
		},
	}
}

func New(logger log.Logger) *osascriptNotifier {
	return &osascriptNotifier{
		logger: log.With(logger, "plugin", Name),
	}
}

func (o *osascriptNotifier) Name() string { return Name }

func (o *osascriptNotifier) Type() broadcast.PluginType { return broadcast.Backend }

func (o *osascriptNotifier) Available() (bool, string) {
	if runtime.GOOS != "darwin" {
		return false, "osascript notifications require macOS"
	}
	if _, err := exec.LookPath("osascript"); err != nil {
		return false, "osascript not found"
	}
	return true, ""
}

func (o *osascriptNotifier) Notify(ctx context.Context, n broadcast.Notification) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script(n))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("could not send notification via osascript: %s: %w", string(out), err)
	}
	return nil
}

// script renders the AppleScript. Notification Center shows the app name
// as the title and the notification title as the subtitle.
func script(n broadcast.Notification) string {
	s := fmt.Sprintf(`display notification "%s" with title "%s"`, quote(n.Text), quote(n.AppName()))
	if n.Title != "" {
		s += fmt.Sprintf(` subtitle "%s"`, quote(n.Title))
	}
	return s
}

var appleScriptEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return appleScriptEscaper.Replace(s)
}
