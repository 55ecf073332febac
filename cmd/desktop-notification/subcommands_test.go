package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/kolide/desktopnotification/ee/desktop/notification"
	"github.com/kolide/desktopnotification/ee/desktop/server"
	"github.com/kolide/desktopnotification/ee/focus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAuthToken = "test-auth-token"

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingNotifier) SendNotification(text string) notification.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return notification.ResultSubmitted
}

func TestRunSendAndFocus(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	tracker := focus.NewTracker()

	socketPath := testSocketPath(t)
	srv, err := server.New(log.NewNopLogger(), testAuthToken, socketPath, make(chan struct{}),
		server.WithNotifier(notifier),
		server.WithFocusChanger(tracker),
	)
	require.NoError(t, err)

	go func() {
		srv.Serve()
	}()
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
	})

	clientArgs := []string{"-authtoken", testAuthToken, "-socket_path", socketPath}

	require.NoError(t, runSend(append(clientArgs, "hello", "there")))
	assert.Equal(t, []string{"hello there"}, notifier.texts)

	require.NoError(t, runFocus(append(clientArgs, "-window", "main", "-title", "Chat")))
	assert.Equal(t, &focus.Window{ID: "main", Title: "Chat"}, tracker.FocusWindow())

	require.NoError(t, runFocus(clientArgs))
	assert.False(t, tracker.Focused())

	require.Error(t, runSend([]string{"-socket_path", socketPath, "hello"}), "authtoken is required")
	require.Error(t, runSend([]string{"-authtoken", "wrong", "-socket_path", socketPath, "hello"}))
}

func TestMonitorParentProcess_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		monitorParentProcess(ctx, log.NewNopLogger())
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("parent monitor did not stop after cancel")
	}
}

func testSocketPath(t *testing.T) string {
	socketFileName := strings.Replace(t.Name(), "/", "_", -1)

	// using t.TempDir() creates a file path too long for a unix socket
	socketPath := filepath.Join(os.TempDir(), socketFileName)
	// truncate socket path to max length
	if len(socketPath) > 103 {
		socketPath = socketPath[:103]
	}

	if runtime.GOOS == "windows" {
		socketPath = fmt.Sprintf(`\\.\pipe\%s`, socketFileName)
	}

	t.Cleanup(func() {
		require.NoError(t, os.RemoveAll(socketPath))
	})

	return socketPath
}
