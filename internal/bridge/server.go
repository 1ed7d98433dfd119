// Package bridge hosts the local request/response surfaces in front of the
// action engine: the plaintext HTTP protocol and an optional MCP stdio
// server. Handlers validate and enqueue; they never touch session state.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"moxxy-bridge/internal/config"
	"moxxy-bridge/internal/engine"
)

// actionRequest is the wire shape accepted on /action.
type actionRequest struct {
	Action string   `json:"action"`
	Args   []string `json:"args"`
}

// Server is the HTTP request bridge. It binds loopback only.
type Server struct {
	engine     *engine.Engine
	outer      time.Duration
	httpServer *http.Server
}

func NewServer(cfg config.ServerConfig, eng *engine.Engine) *Server {
	s := &Server{
		engine: eng,
		outer:  cfg.GetRequestTimeout(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/action", s.handleAction)

	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port)),
		Handler: mux,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("browser bridge listening on http://%s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleHealth reports liveness unconditionally, even before any browser
// session exists.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Malformed bodies are transport errors, not action failures.
		writeJSON(w, http.StatusBadRequest, engine.Response{
			Success: false,
			Error:   fmt.Sprintf("Invalid JSON: %v", err),
		})
		return
	}

	if err := engine.Validate(req.Action, req.Args); err != nil {
		writeJSON(w, http.StatusOK, engine.Response{Success: false, Error: err.Error()})
		return
	}

	// The outer ceiling bounds this handler's wait only. It deliberately
	// does not use the request context: a disconnecting or timed-out
	// caller must not cancel the in-flight browser work, which keeps
	// running and mutating session state for subsequent requests.
	ctx, cancel := context.WithTimeout(context.Background(), s.outer)
	defer cancel()

	resp, err := s.engine.Submit(ctx, req.Action, req.Args)
	if err != nil {
		resp = engine.Response{
			Success: false,
			Error:   fmt.Sprintf("Execution error: %v", err),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("warning: failed to encode response: %v", err)
	}
}
