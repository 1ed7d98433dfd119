package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moxxy-bridge/internal/bridge"
	"moxxy-bridge/internal/browser"
	"moxxy-bridge/internal/config"
	"moxxy-bridge/internal/engine"
	"moxxy-bridge/internal/lifecycle"
)

func main() {
	configPath := flag.String("config", "", "Path to the bridge config file (optional)")
	port := flag.Int("port", 0, "Listen port override (falls back to config)")
	pidFile := flag.String("pid-file", "", "Pid-marker file override (falls back to config)")
	mcpMode := flag.Bool("mcp", false, "Also serve MCP tools over stdio")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *pidFile != "" {
		cfg.Server.PidFile = *pidFile
	}

	// Redirect logging to file when configured; stdlib log defaults to
	// stderr, which also keeps stdout clean for MCP stdio mode.
	if cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		}
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The engine outlives the serving context so queued cleanup can still
	// run after the listeners stop.
	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()

	driver := browser.NewRodDriver(cfg.Browser)
	session := browser.NewSession(driver)
	eng := engine.New(session, engine.DefaultTimeouts())
	go eng.Run(engineCtx)

	if err := lifecycle.WritePidFile(cfg.Server.PidFile); err != nil {
		log.Fatalf("failed to write pid file: %v", err)
	}

	serveCtx, serveCancel := context.WithCancel(context.Background())
	defer serveCancel()

	idleCh := make(chan struct{}, 1)
	watchdog := &lifecycle.Watchdog{
		Tick:         cfg.Idle.GetTick(),
		Threshold:    cfg.Idle.GetTimeout(),
		LastActivity: eng.LastActivity,
		OnIdle: func() {
			go func() {
				cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				eng.Cleanup(cleanupCtx)
			}()
			idleCh <- struct{}{}
		},
	}
	go watchdog.Run(engineCtx)

	go func() {
		select {
		case <-sigCtx.Done():
			log.Printf("browser bridge shutting down on signal")
		case <-idleCh:
		}
		serveCancel()
	}()

	if *mcpMode {
		mcpServer := bridge.NewMCPServer(eng, cfg.Server.GetRequestTimeout())
		go func() {
			if err := mcpServer.Start(serveCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("mcp server exited: %v", err)
			}
		}()
	}

	server := bridge.NewServer(cfg.Server, eng)
	serveErr := server.Start(serveCtx)

	// Cleanup is idempotent, so this is safe even when the idle path
	// already tore the session down.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	eng.Cleanup(cleanupCtx)
	cancel()
	engineCancel()
	lifecycle.RemovePidFile(cfg.Server.PidFile)

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", serveErr)
	}
}
