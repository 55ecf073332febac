package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/shirou/gopsutil/process"
)

const parentCheckInterval = 2 * time.Second

func listenSignals(logger log.Logger) {
	signalsToHandle := []os.Signal{os.Interrupt, os.Kill}
	signals := make(chan os.Signal, len(signalsToHandle))
	signal.Notify(signals, signalsToHandle...)
	defer signal.Stop(signals)

	sig := <-signals

	level.Debug(logger).Log(
		"msg", "received signal",
		"signal", sig,
	)
}

// monitorParentProcess returns once the parent process is gone, or ctx is
// done. The host application starts this process, so losing the parent
// means nobody is left to send notifications.
func monitorParentProcess(ctx context.Context, logger log.Logger) {
	ticker := time.NewTicker(parentCheckInterval)
	defer ticker.Stop()

	for {
		if !parentAlive(ctx, logger) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func parentAlive(ctx context.Context, logger log.Logger) bool {
	ppid := os.Getppid()
	if ppid <= 1 {
		level.Debug(logger).Log("msg", "no parent process to monitor")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, parentCheckInterval)
	defer cancel()

	exists, err := process.PidExistsWithContext(ctx, int32(ppid))
	if err != nil || !exists {
		level.Error(logger).Log(
			"msg", "parent process gone",
			"err", err,
		)
		return false
	}

	return true
}
