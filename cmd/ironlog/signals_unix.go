//go:build unix

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironlog/ironlog/internal/connectivity"
)

// watchVisibilitySignals maps SIGUSR1 to visible and SIGUSR2 to hidden.
func watchVisibilitySignals(v *connectivity.Visibility, logger *log.Logger) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				visible := sig == syscall.SIGUSR1
				logger.Printf("Visibility set to %v by %s", visible, sig)
				v.Set(visible)
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
