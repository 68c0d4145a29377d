// Package api provides the HTTP REST API server for finboard.
//
// It exposes the homepage bundle, the individual dashboard widgets, stock
// lookups and the natural-language screener, plus a WebSocket endpoint that
// streams screener reasoning as it arrives.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/finboard/internal/config"
	"github.com/seenimoa/finboard/internal/datasource"
	"github.com/seenimoa/finboard/pkg/models"
	"github.com/seenimoa/finboard/pkg/utils"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	agg    *datasource.Aggregator
	logger *slog.Logger
	wsHub  *WSHub

	// ctx outlives single requests; WebSocket sessions derive from it and
	// end when the server shuts down.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, agg *datasource.Aggregator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		cfg:    cfg,
		agg:    agg,
		logger: logger,
		wsHub:  NewWSHub(),
		ctx:    ctx,
		cancel: cancel,
	}
	go srv.wsHub.Run(ctx)

	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Close ends every WebSocket session and stops the hub.
func (s *Server) Close() {
	s.cancel()
}

// ListenAndServe starts the HTTP server and blocks until SIGINT or SIGTERM,
// then shuts down gracefully.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.requestTimeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	httpSrv.RegisterOnShutdown(s.Close)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(shutdownCtx)
}

// requestTimeout bounds one REST request. It leaves room for a full backend
// call so the middleware never fires before the backend timeout does.
func (s *Server) requestTimeout() time.Duration {
	d := 120 * time.Second
	if t := s.cfg.LLM.Timeout() + 15*time.Second; t > d {
		d = t
	}
	return d
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// WebSocket sessions outlive the request timeout.
	r.Get("/ws/screener", s.handleScreenerSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout()))

		// Health (also available at /health)
		r.Get("/health", s.handleHealth)

		// Homepage bundle
		r.Get("/dashboard", s.handleDashboard)
		r.Post("/dashboard/refresh", s.handleDashboardRefresh)

		// Individual widgets
		r.Get("/indices", s.handleIndices)
		r.Get("/news", s.handleNews)
		r.Get("/research", s.handleResearch)
		r.Get("/updates", s.handleLatestUpdates)
		r.Get("/earnings", s.handleEarnings)
		r.Get("/sidebar", s.handleSidebar)

		// Stock lookup
		r.Get("/stock/{query}", s.handleStock)

		// Screener
		r.Post("/screener", s.handleScreener)

		// Configuration (read-only)
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard API response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ScreenerRequest is the body for POST /api/v1/screener.
type ScreenerRequest struct {
	Query string `json:"query"`
}

// ScreenerResponse carries the matches and the model's reasoning.
type ScreenerResponse struct {
	Query     string                  `json:"query"`
	Results   []models.ScreenerResult `json:"results"`
	Reasoning string                  `json:"reasoning"`
}

// ResearchResponse wraps the markdown narrative.
type ResearchResponse struct {
	Summary string `json:"summary"`
}

// RefreshEvent is broadcast to WebSocket clients after a dashboard refresh.
type RefreshEvent struct {
	FetchedAt time.Time `json:"fetchedAt"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":        "ok",
			"version":       Version,
			"market_status": utils.MarketStatus(),
			"time_et":       utils.NowET().Format(time.RFC3339),
			"ws_clients":    s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.agg.Dashboard(r.Context())
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: bundle})
}

func (s *Server) handleDashboardRefresh(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.agg.Refresh(r.Context())
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type: "dashboard_refreshed",
		Data: RefreshEvent{FetchedAt: bundle.FetchedAt},
	})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: bundle})
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	indices, err := s.agg.Service().MarketIndices(r.Context())
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: indices})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	articles, err := s.agg.Service().News(r.Context())
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: articles})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	summary, err := s.agg.Service().ResearchSummary(r.Context())
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: ResearchResponse{Summary: summary}})
}

func (s *Server) handleLatestUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := s.agg.Service().LatestUpdates(r.Context())
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: updates})
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	entries, err := s.agg.Service().Earnings(r.Context())
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: entries})
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	snap, err := s.agg.Service().Sidebar(r.Context())
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(chi.URLParam(r, "query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	rec, err := s.agg.Service().Stock(r.Context(), query, r.URL.Query().Get("range"))
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rec})
}

func (s *Server) handleScreener(w http.ResponseWriter, r *http.Request) {
	var req ScreenerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	var reasoning strings.Builder
	results, err := s.agg.Service().Screen(r.Context(), req.Query, func(text string) {
		reasoning.WriteString(text)
	})
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ScreenerResponse{
			Query:     req.Query,
			Results:   results,
			Reasoning: reasoning.String(),
		},
	})
}

// ============================================================
// Helpers
// ============================================================

// statusFor maps a fetch failure onto an HTTP status. Backend and
// interpretation failures are upstream problems, so they answer 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, datasource.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, datasource.ErrDashboardLoad),
		errors.Is(err, datasource.ErrInterpretResponse),
		errors.Is(err, datasource.ErrBackendRequest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the user-facing text for a fetch failure. Any dashboard
// failure collapses into one message.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, datasource.ErrDashboardLoad):
		return "failed to load dashboard"
	case errors.Is(err, datasource.ErrInterpretResponse):
		return datasource.ErrInterpretResponse.Error()
	default:
		return err.Error()
	}
}

func (s *Server) writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.logger.Error("request failed",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"status", status,
		"error", err)
	writeError(w, status, errorMessage(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
