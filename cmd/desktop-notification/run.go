package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/desktopnotification/ee/bridge"
	"github.com/kolide/desktopnotification/ee/broadcast"
	"github.com/kolide/desktopnotification/ee/broadcast/backends/beeep"
	"github.com/kolide/desktopnotification/ee/broadcast/backends/freedesktop"
	"github.com/kolide/desktopnotification/ee/broadcast/backends/notifysend"
	"github.com/kolide/desktopnotification/ee/broadcast/backends/osascript"
	"github.com/kolide/desktopnotification/ee/broadcast/backends/toast"
	"github.com/kolide/desktopnotification/ee/broadcast/history"
	"github.com/kolide/desktopnotification/ee/desktop"
	"github.com/kolide/desktopnotification/ee/desktop/notification"
	"github.com/kolide/desktopnotification/ee/desktop/server"
	"github.com/kolide/desktopnotification/ee/focus"
	"github.com/kolide/desktopnotification/pkg/storage"
	agentbbolt "github.com/kolide/desktopnotification/pkg/storage/bbolt"
	"github.com/kolide/desktopnotification/pkg/storage/inmemory"
	"github.com/kolide/kit/ulid"
	"github.com/oklog/run"
)

const iconDirName = "desktop_notification_icons"

// focusQueue hands focus reports from server handlers to the tracker's
// Execute goroutine.
type focusQueue chan *focus.Window

func (q focusQueue) FocusWindowChanged(w *focus.Window) {
	q <- w
}

func runDesktopNotification(opts *options, logger log.Logger) error {
	logger = log.With(logger, "pid", os.Getpid())
	level.Info(logger).Log("msg", "starting")

	if opts.socketPath == "" {
		opts.socketPath = desktop.SocketPath(os.Getpid())
		level.Info(logger).Log(
			"msg", "using default socket path since none was provided",
			"socket_path", opts.socketPath,
		)
	}

	if opts.authToken == "" {
		opts.authToken = ulid.New()
		// The host reads the generated token from stdout, it is never logged.
		fmt.Fprintf(os.Stdout, "socket_path %s\nauthtoken %s\n", opts.socketPath, opts.authToken)
	}

	store, closeStore, err := historyStore(logger, opts.dbPath)
	if err != nil {
		return fmt.Errorf("opening notification history: %w", err)
	}
	defer closeStore()

	recorder := history.New(store,
		history.WithLogger(logger),
		history.WithRetentionPeriod(opts.historyRetention),
	)

	icon := broadcast.DefaultIcon()
	if opts.iconPath != "" {
		icon, err = broadcast.IconFromFile(opts.iconPath)
		if err != nil {
			return fmt.Errorf("loading icon: %w", err)
		}
	}

	registerBackends(filepath.Join(os.TempDir(), iconDirName))

	core := broadcast.Instance(
		broadcast.WithLogger(logger),
		broadcast.WithPreferredBackend(opts.backend),
		broadcast.WithQueueSize(opts.queueSize),
		broadcast.WithRecorder(recorder),
	)

	focusEvents := make(focusQueue, 16)
	tracker := focus.NewTracker(focus.WithLogger(logger), focus.WithEvents(focusEvents))

	module := notification.New(logger, core, tracker,
		notification.WithApplicationName(opts.appName),
		notification.WithIcon(icon),
	)
	defer module.Close()

	if len(core.PluginNames()) == 0 {
		level.Error(logger).Log("msg", "no notification backend available, notifications will only be recorded")
	}

	b := bridge.New()
	if err := b.RegisterModule(module); err != nil {
		return fmt.Errorf("registering %s module: %w", module.ModuleName(), err)
	}

	var runGroup run.Group

	// listen for signals
	runGroup.Add(func() error {
		listenSignals(logger)
		return nil
	}, func(error) {})

	// monitor parent
	parentCtx, cancelParentMonitor := context.WithCancel(context.Background())
	runGroup.Add(func() error {
		monitorParentProcess(parentCtx, logger)
		return nil
	}, func(error) {
		cancelParentMonitor()
	})

	runGroup.Add(core.Execute, core.Interrupt)
	for _, listener := range core.Listeners() {
		runGroup.Add(listener.Execute, listener.Interrupt)
	}
	runGroup.Add(tracker.Execute, tracker.Interrupt)
	runGroup.Add(recorder.Execute, recorder.Interrupt)

	shutdownChan := make(chan struct{})
	server, err := server.New(logger, opts.authToken, opts.socketPath, shutdownChan,
		server.WithNotifier(module),
		server.WithFocusChanger(focusEvents),
		server.WithModules(b),
	)
	if err != nil {
		return fmt.Errorf("creating desktop server: %w", err)
	}

	// start desktop server
	runGroup.Add(server.Serve, func(err error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			level.Error(logger).Log(
				"msg", "shutting down server",
				"err", err,
			)
		}
	})

	// listen on shutdown channel
	shutdownInterrupt := make(chan struct{})
	runGroup.Add(func() error {
		select {
		case <-shutdownChan:
			level.Info(logger).Log("msg", "shutdown requested")
		case <-shutdownInterrupt:
		}
		return nil
	}, func(error) {
		close(shutdownInterrupt)
	})

	level.Info(logger).Log(
		"msg", "desktop notification host running",
		"app", module.Application().Name(),
		"backends", strings.Join(core.PluginNames(), ","),
		"primary_backend", core.PrimaryNotificationBackend(),
	)

	if err := runGroup.Run(); err != nil {
		level.Error(logger).Log(
			"msg", "running run group",
			"err", err,
		)
	}

	return nil
}

// registerBackends makes every backend known to the process wide core, in
// priority order. Backends that are unavailable on this machine are skipped
// when plugins load.
func registerBackends(iconDir string) {
	broadcast.RegisterPluginFactory(freedesktop.Factory(iconDir))
	broadcast.RegisterPluginFactory(toast.Factory(iconDir))
	broadcast.RegisterPluginFactory(osascript.Factory())
	broadcast.RegisterPluginFactory(notifysend.Factory(iconDir))
	broadcast.RegisterPluginFactory(beeep.Factory(iconDir))
}

func historyStore(logger log.Logger, dbPath string) (storage.KVStore, func(), error) {
	if dbPath == "" {
		return inmemory.NewStore(), func() {}, nil
	}

	db, err := agentbbolt.OpenDB(dbPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := agentbbolt.NewStore(logger, db, history.BucketName)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return store, func() {
		if err := db.Close(); err != nil {
			level.Error(logger).Log("msg", "closing history database", "err", err)
		}
	}, nil
}
