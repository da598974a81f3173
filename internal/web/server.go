// Package web provides an HTTP status and operator server for the spacebus
// daemon.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/spacebus/internal/console"
	"github.com/sweeney/spacebus/internal/status"
)

// DefaultCommandTimeout bounds how long a handler waits for the loop to
// answer a command.
const DefaultCommandTimeout = 2 * time.Second

// Request carries an operator command to the simulation loop. The loop
// must send exactly one value on Reply.
type Request struct {
	Command console.Command
	Reply   chan error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   chan<- Request
	timeout    time.Duration
}

// New creates a Server that reads state from the given tracker and forwards
// operator commands to commands. A nil metrics handler leaves /metrics
// unrouted; a nil commands channel disables the /api routes.
func New(addr string, tracker *status.Tracker, commands chan<- Request, metrics http.Handler) *Server {
	s := &Server{tracker: tracker, commands: commands, timeout: DefaultCommandTimeout}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	if commands != nil {
		mux.HandleFunc("POST /api/{command}", s.handleCommand)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd := console.Command{Name: r.PathValue("command"), Step: r.FormValue("id")}
	if cmd.Name == console.CmdGoto && cmd.Step == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	req := Request{Command: cmd, Reply: make(chan error, 1)}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	select {
	case s.commands <- req:
	case <-ctx.Done():
		http.Error(w, "loop busy", http.StatusServiceUnavailable)
		return
	}

	select {
	case err := <-req.Reply:
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, console.ErrUnknownCommand):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusConflict)
		}
	case <-ctx.Done():
		http.Error(w, "no reply from loop", http.StatusGatewayTimeout)
	}
}
