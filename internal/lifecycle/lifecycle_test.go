package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestWatchdogFiresWhenIdle(t *testing.T) {
	start := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	fired := make(chan struct{})

	w := &Watchdog{
		Tick:         time.Millisecond,
		Threshold:    30 * time.Minute,
		LastActivity: func() time.Time { return start },
		OnIdle:       func() { close(fired) },
		Now:          func() time.Time { return start.Add(31 * time.Minute) },
	}

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog never fired")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not return after firing")
	}
}

func TestWatchdogStaysQuietWhileActive(t *testing.T) {
	start := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	w := &Watchdog{
		Tick:         time.Millisecond,
		Threshold:    30 * time.Minute,
		LastActivity: func() time.Time { return start },
		OnIdle:       func() { t.Error("watchdog fired for an active bridge") },
		Now:          func() time.Time { return start.Add(29 * time.Minute) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Run(ctx)
}

func TestWatchdogRespectsExactThreshold(t *testing.T) {
	// Idle exactly equal to the threshold must not trigger shutdown.
	start := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	w := &Watchdog{
		Tick:         time.Millisecond,
		Threshold:    30 * time.Minute,
		LastActivity: func() time.Time { return start },
		OnIdle:       func() { t.Error("watchdog fired at the threshold boundary") },
		Now:          func() time.Time { return start.Add(30 * time.Minute) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Run(ctx)
}

func TestPidFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.pid")

	if err := WritePidFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("pid file content = %q", data)
	}

	RemovePidFile(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("pid file still present after removal")
	}
}

func TestPidFileEmptyPathIsDisabled(t *testing.T) {
	if err := WritePidFile(""); err != nil {
		t.Fatal(err)
	}
	RemovePidFile("")
}
