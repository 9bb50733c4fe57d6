// Package web serves the node's status page, its JSON twin and a readiness
// probe.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/sensor-node/internal/status"
)

// Source provides status snapshots. *status.Tracker satisfies it.
type Source interface {
	Snapshot() status.Snapshot
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	source     Source
}

// New creates a Server that reads state from source.
func New(addr string, source Source) *Server {
	s := &Server{source: source}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/ready", s.handleReady)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
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
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.source.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.source.Snapshot()))
}

// handleReady answers 200 once every input has a baseline and the session
// is up, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case !snap.Ready():
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("inputs not baselined\n"))
	case !snap.SessionConnected:
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("mqtt disconnected\n"))
	default:
		w.Write([]byte("ok\n"))
	}
}
