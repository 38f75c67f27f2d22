package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// setupSignalHandler sets stopFlag on SIGINT or SIGTERM so running walks
// end early, and closes the returned channel at the same time.
// The returned function stops signal handling.
func setupSignalHandler(stopFlag *atomic.Bool) (<-chan struct{}, func()) {
	shutdown := make(chan struct{})
	done := make(chan struct{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			fmt.Fprintf(os.Stderr, "\nReceived signal: %v\n", sig)
			stopFlag.Store(true)
			close(shutdown)
		case <-done:
		}
	}()

	return shutdown, func() { close(done) }
}
