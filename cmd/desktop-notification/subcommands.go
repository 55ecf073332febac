package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kolide/desktopnotification/ee/desktop/client"
	"github.com/kolide/desktopnotification/ee/focus"
	"github.com/peterbourgon/ff/v3"
)

type clientFlags struct {
	authToken  *string
	socketPath *string
}

func addClientFlags(flagset *flag.FlagSet) clientFlags {
	return clientFlags{
		authToken: flagset.String(
			"authtoken",
			"",
			"Bearer token of the desktop notification server",
		),
		socketPath: flagset.String(
			"socket_path",
			"",
			"Socket (named pipe on windows) of the desktop notification server",
		),
	}
}

func (c clientFlags) validate() error {
	if *c.socketPath == "" {
		return errors.New("socket_path is required")
	}
	if *c.authToken == "" {
		return errors.New("authtoken is required")
	}
	return nil
}

// runSend posts one message notification to a running host and prints what
// the host did with it.
func runSend(args []string) error {
	flagset := flag.NewFlagSet("desktop-notification send", flag.ContinueOnError)
	cf := addClientFlags(flagset)

	if err := ff.Parse(flagset, args, ff.WithEnvVarPrefix(envVarPrefix)); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	if err := cf.validate(); err != nil {
		return err
	}

	text := strings.Join(flagset.Args(), " ")

	c := client.New(*cf.authToken, *cf.socketPath)
	result, err := c.Notify(text)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, result)
	return nil
}

// runFocus reports a focus change to a running host. Without -window the
// host is told that none of its windows has focus.
func runFocus(args []string) error {
	var (
		flagset  = flag.NewFlagSet("desktop-notification focus", flag.ContinueOnError)
		cf       = addClientFlags(flagset)
		flWindow = flagset.String(
			"window",
			"",
			"ID of the focused window; empty when no window has focus",
		)
		flTitle = flagset.String(
			"title",
			"",
			"Title of the focused window",
		)
	)

	if err := ff.Parse(flagset, args, ff.WithEnvVarPrefix(envVarPrefix)); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	if err := cf.validate(); err != nil {
		return err
	}

	var window *focus.Window
	if *flWindow != "" {
		window = &focus.Window{ID: *flWindow, Title: *flTitle}
	}

	c := client.New(*cf.authToken, *cf.socketPath)
	return c.SetFocus(window)
}
