package httpapi

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimenotifier/internal/domain"
	apimw "github.com/hamed0406/uptimenotifier/internal/httpapi/middleware"
	"github.com/hamed0406/uptimenotifier/internal/metrics"
	"github.com/hamed0406/uptimenotifier/internal/probe"
	"github.com/hamed0406/uptimenotifier/internal/repo"
)

const (
	defaultTransitionLimit = 50
	maxTransitionLimit     = 1000
)

// Server answers on-demand status queries by re-probing every entity.
// It never touches the monitors' state.
type Server struct {
	Logger      *zap.Logger
	Entities    []domain.Entity
	Checker     probe.Checker
	Transitions repo.TransitionStore
	Ceiling     time.Duration
}

func NewServer(l *zap.Logger, entities []domain.Entity, c probe.Checker, ts repo.TransitionStore, ceiling time.Duration) *Server {
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	return &Server{Logger: l, Entities: entities, Checker: c, Transitions: ts, Ceiling: ceiling}
}

// Access controls the protected routes.
type Access struct {
	KeyHashes  []string
	ReqPerMin  int
	Burst      int
	CORSOrigin []string
	// Proxies allowed to set X-Forwarded-For; see middleware.ParseTrustedProxies.
	TrustedProxies []netip.Prefix
}

func (s *Server) Router(acc Access) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if len(acc.CORSOrigin) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: acc.CORSOrigin,
			AllowedMethods: []string{http.MethodGet},
			AllowedHeaders: []string{"Authorization", "X-API-Key"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(acc.ReqPerMin, acc.Burst, acc.TrustedProxies))
		r.Use(apimw.RequireKey(acc.KeyHashes))

		r.Get("/", s.handleStatus)
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/transitions", s.handleTransitions)
	})

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	out := probe.Sweep(r.Context(), s.Checker, s.Entities, s.Ceiling)

	omitted := len(s.Entities) - len(out)
	if omitted > 0 {
		metrics.SweepOmitted.Add(float64(omitted))
	}
	s.Logger.Info("status_sweep",
		zap.Int("entities", len(s.Entities)),
		zap.Int("answered", len(out)),
		zap.Int("omitted", omitted),
		zap.Duration("took", time.Since(start)),
	)

	body := make(map[string]string, len(out))
	for name, st := range out {
		body[name] = st.String()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTransitionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxTransitionLimit)
	}
	if s.Transitions == nil {
		writeJSON(w, http.StatusOK, []domain.Transition{})
		return
	}

	list, err := s.Transitions.Recent(r.Context(), limit)
	if err != nil {
		s.Logger.Warn("transitions_list_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list error"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
