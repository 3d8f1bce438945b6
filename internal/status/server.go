// Package status serves a read-only view of the scheduler: health, Prometheus
// metrics, windows, rules and the outcome of the latest passes.
package status

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
	"github.com/eddiefleurent/seasonal_trader/internal/storage"
)

// Store is the read side of storage the server uses.
type Store interface {
	ListRules(ctx context.Context) ([]models.SeasonalRule, error)
	ListWindows(ctx context.Context, filter storage.WindowFilter) ([]models.TradingWindow, error)
	GetWindow(ctx context.Context, id string) (*models.TradingWindow, error)
}

// PassReport is the last known outcome of one pass type.
type PassReport struct {
	Pass       string      `json:"pass"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// PassSource reports recent passes.
type PassSource interface {
	LastPasses() []PassReport
}

// Config holds server settings.
type Config struct {
	Addr      string
	AuthToken string
}

// Server is the status HTTP server.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	store     Store
	registry  *prometheus.Registry
	passes    PassSource
	logger    logrus.FieldLogger
	addr      string
	authToken string
}

// NewServer wires routes. registry and passes may be nil.
func NewServer(cfg Config, store Store, registry *prometheus.Registry, passes PassSource, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		router:    chi.NewRouter(),
		store:     store,
		registry:  registry,
		passes:    passes,
		logger:    logger,
		addr:      cfg.Addr,
		authToken: cfg.AuthToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)
	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	s.router.Get("/api/windows", s.handleListWindows)
	s.router.Get("/api/windows/{id}", s.handleGetWindow)
	s.router.Get("/api/rules", s.handleListRules)
	s.router.Get("/api/passes", s.handlePasses)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting status server on %s", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// windowView is a window as served by the API, with its status spelled out.
type windowView struct {
	models.TradingWindow
	StatusDescription string `json:"status_description"`
}

func newWindowView(w *models.TradingWindow) windowView {
	return windowView{TradingWindow: *w, StatusDescription: models.DescribeStatus(w.Status)}
}

func (s *Server) handleListWindows(w http.ResponseWriter, r *http.Request) {
	filter := storage.WindowFilter{RuleID: r.URL.Query().Get("rule_id")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := models.WindowStatus(strings.ToUpper(strings.TrimSpace(part)))
			if !st.IsValid() {
				http.Error(w, "unknown status "+part, http.StatusBadRequest)
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	windows, err := s.store.ListWindows(r.Context(), filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list windows")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	views := make([]windowView, 0, len(windows))
	for i := range windows {
		views = append(views, newWindowView(&windows[i]))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetWindow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	window, err := s.store.GetWindow(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Window not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("window_id", id).Error("Failed to get window")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, newWindowView(window))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list rules")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	reports := []PassReport{}
	if s.passes != nil {
		reports = s.passes.LastPasses()
	}
	s.writeJSON(w, http.StatusOK, reports)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
