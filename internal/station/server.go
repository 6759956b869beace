package station

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/large-farva/passrelay/internal/metrics"
)

// Server exposes the controller over HTTP for operators and scrapers.
type Server struct {
	Controller *Controller
	// Uploads reports whether the upload path verified at startup.
	Uploads  func() bool
	LinkMode string

	started time.Time
}

func NewServer(c *Controller, uploads func() bool, linkMode string) *Server {
	return &Server{Controller: c, Uploads: uploads, LinkMode: linkMode, started: time.Now()}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.Handle("/metrics", metrics.Handler())
	return metrics.Middleware(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.Controller.Status().State == StateShuttingDown {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	uploads := false
	if s.Uploads != nil {
		uploads = s.Uploads()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":            "stationd",
		"link":            s.LinkMode,
		"uptime_seconds":  int64(time.Since(s.started).Seconds()),
		"uploads_enabled": uploads,
		"recorder":        s.Controller.Status(),
		"commands":        s.Controller.table.Codes(),
	})
}
