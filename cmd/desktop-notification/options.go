package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kolide/kit/version"
	"github.com/peterbourgon/ff/v3"
)

const envVarPrefix = "DESKTOP_NOTIFICATION"

// options is the set of configurable options that may be set when running
// the desktop notification host.
type options struct {
	appName          string
	authToken        string
	socketPath       string
	dbPath           string
	backend          string
	iconPath         string
	queueSize        int
	historyRetention time.Duration
	debug            bool
	printVersion     bool
}

// parseOptions parses the options that may be configured via command-line
// flags, environment variables prefixed DESKTOP_NOTIFICATION_ and a plain
// config file. Flags win over the environment, which wins over the file.
func parseOptions(args []string) (*options, error) {
	flagset := flag.NewFlagSet("desktop-notification", flag.ContinueOnError)
	flagset.Usage = func() { usage(flagset) }

	var (
		flAppName = flagset.String(
			"app_name",
			"",
			"Application name notifications are shown under (default: executable name)",
		)
		flAuthToken = flagset.String(
			"authtoken",
			"",
			"Bearer token clients must present; generated and printed when empty",
		)
		flSocketPath = flagset.String(
			"socket_path",
			"",
			"Path of the socket (named pipe on windows) the server listens on",
		)
		flDbPath = flagset.String(
			"db_path",
			"",
			"Path of the notification history database; history is kept in memory when empty",
		)
		flBackend = flagset.String(
			"backend",
			"",
			"Preferred notification backend (freedesktop, windows-toast, osascript, notify-send, beeep)",
		)
		flIconPath = flagset.String(
			"icon_path",
			"",
			"Image file to use as the application icon",
		)
		flQueueSize = flagset.Int(
			"queue_size",
			64,
			"Number of notifications that may wait for delivery before new ones are dropped",
		)
		flHistoryRetention = flagset.Duration(
			"history_retention",
			0,
			"How long delivery records are kept (default: 6 months)",
		)
		flDebug = flagset.Bool(
			"debug",
			false,
			"Whether or not debug logging is enabled (default: false)",
		)
		flVersion = flagset.Bool(
			"version",
			false,
			"Print version and exit",
		)
		_ = flagset.String("config", "", "config file to parse options from (optional)")
	)

	if err := ff.Parse(flagset, args,
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix(envVarPrefix),
	); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if *flQueueSize <= 0 {
		return nil, fmt.Errorf("queue_size must be positive, got %d", *flQueueSize)
	}

	if *flHistoryRetention < 0 {
		return nil, fmt.Errorf("history_retention must not be negative, got %s", *flHistoryRetention)
	}

	opts := &options{
		appName:          *flAppName,
		authToken:        *flAuthToken,
		socketPath:       *flSocketPath,
		dbPath:           *flDbPath,
		backend:          *flBackend,
		iconPath:         *flIconPath,
		queueSize:        *flQueueSize,
		historyRetention: *flHistoryRetention,
		debug:            *flDebug,
		printVersion:     *flVersion,
	}

	return opts, nil
}

func usage(flagset *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Desktop notification host (version %s)\n\n", version.Version().Version)
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  desktop-notification [flags]\n")
	fmt.Fprintf(os.Stderr, "  desktop-notification send [flags] <text>\n")
	fmt.Fprintf(os.Stderr, "  desktop-notification focus [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flagset.PrintDefaults()
}
