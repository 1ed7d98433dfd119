// Package lifecycle covers process-level concerns: the idle watchdog that
// terminates an abandoned bridge, and the pid-marker file.
package lifecycle

import (
	"context"
	"log"
	"time"
)

// Watchdog fires OnIdle once when no action has been attempted for longer
// than Threshold. Activity is sampled on a fixed tick, so shutdown happens
// within one tick of the threshold being crossed.
type Watchdog struct {
	Tick         time.Duration
	Threshold    time.Duration
	LastActivity func() time.Time
	OnIdle       func()

	// Now is the clock; nil means time.Now. Injectable for tests.
	Now func() time.Time
}

// Run blocks until ctx is cancelled or the idle threshold is crossed.
func (w *Watchdog) Run(ctx context.Context) {
	now := w.Now
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(w.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := now().Sub(w.LastActivity())
			if idle > w.Threshold {
				log.Printf("browser bridge idle for %s, shutting down", idle.Round(time.Second))
				w.OnIdle()
				return
			}
		}
	}
}
