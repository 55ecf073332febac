// Package desktop holds helpers shared by the desktop notification server
// and its clients.
package desktop

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const socketBaseName = "desktop_notification.sock"

// SocketPath is the default socket, or named pipe on windows, the server of
// process pid listens on.
func SocketPath(pid int) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf(`\\.\pipe\%d_%s`, pid, socketBaseName)
	}

	return filepath.Join(os.TempDir(), fmt.Sprintf("%d_%s", pid, socketBaseName))
}
