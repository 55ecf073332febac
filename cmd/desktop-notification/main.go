package main

import (
	"fmt"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/kit/logutil"
	"github.com/kolide/kit/version"
	"github.com/pkg/errors"
)

func main() {
	var logger log.Logger
	logger = log.NewJSONLogger(os.Stderr) // only used until options are parsed.

	if isSubCommand() {
		if err := runSubcommands(); err != nil {
			logutil.Fatal(logger, "err", errors.Wrap(err, "run with positional args"))
		}
		os.Exit(0)
	}

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		level.Info(logger).Log("err", err)
		os.Exit(1)
	}

	if opts.printVersion {
		version.PrintFull()
		os.Exit(0)
	}

	logger = logutil.NewServerLogger(opts.debug)

	if err := runDesktopNotification(opts, logger); err != nil {
		logutil.Fatal(logger, "err", err, "msg", "run desktop notification", "stack", fmt.Sprintf("%+v", err))
	}
}

func isSubCommand() bool {
	if len(os.Args) < 2 {
		return false
	}

	subCommands := []string{
		"send",
		"focus",
	}

	for _, sc := range subCommands {
		if sc == os.Args[1] {
			return true
		}
	}

	return false
}

func runSubcommands() error {
	var run func([]string) error
	switch os.Args[1] {
	case "send":
		run = runSend
	case "focus":
		run = runFocus
	}
	err := run(os.Args[2:])
	return errors.Wrapf(err, "running subcommand %s", os.Args[1])
}
