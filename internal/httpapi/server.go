package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/pgkeepalive/internal/domain"
	apimw "github.com/hamed0406/pgkeepalive/internal/httpapi/middleware"
	"github.com/hamed0406/pgkeepalive/internal/metrics"
	"github.com/hamed0406/pgkeepalive/internal/probe"
)

//go:embed web/index.html
var dashboard []byte

// Runner runs one manual check cycle. *scheduler.Rechecker satisfies it.
type Runner interface {
	RunOnce(ctx context.Context, trigger string) (probe.Report, error)
}

type Server struct {
	Logger   *zap.Logger
	Runner   Runner
	Labels   domain.Labels
	Location *time.Location
	Metrics  http.Handler // nil leaves /metrics unrouted
	Now      func() time.Time
}

func NewServer(l *zap.Logger, run Runner, labels domain.Labels, loc *time.Location) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Runner: run, Labels: labels, Location: loc, Now: time.Now}
}

// Options configures the guards on the manual trigger and CORS.
type Options struct {
	APIKeys        []string
	RunRPM         int
	RunBurst       int
	AllowedOrigins []string
}

func (s *Server) Router(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(corsHandler(opts.AllowedOrigins))

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/", s.handleDashboard)
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.With(
		apimw.RateLimit(opts.RunRPM, opts.RunBurst),
		apimw.RequireKey(opts.APIKeys),
	).Post("/run-checks", s.handleRunChecks)

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not Found", http.StatusNotFound)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(dashboard)
}

// handleRunChecks always answers 200: probe failures are part of the body.
// The cycle is detached from the request so a client hanging up does not turn
// healthy databases into cancelled failures; probes stay bounded by their own
// connect timeouts.
func (s *Server) handleRunChecks(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Runner.RunOnce(context.WithoutCancel(r.Context()), metrics.TriggerManual)
	if err != nil {
		rep = probe.Report{Summary: "configuration error: " + err.Error(), Outcomes: []probe.Outcome{}}
	}
	resp := domain.NewRunResponse(rep, s.now(), s.Location, s.Labels)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.Logger.Warn("run_checks_encode_error", zap.Error(err))
	}
}

func (s *Server) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
