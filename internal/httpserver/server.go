package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davidbz/pixelcredit/internal/config"
	"github.com/davidbz/pixelcredit/internal/httpserver/middleware"
	"github.com/davidbz/pixelcredit/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      *config.ServerConfig
	handler     *Handler
	middlewares middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.ServerConfig,
	handler *Handler,
	middlewares middleware.Middleware,
) *Server {
	return &Server{
		config:      cfg,
		handler:     handler,
		middlewares: middlewares,
		srv:         nil,
	}
}

// Routes returns the routed handler wrapped in the middleware chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	admin := middleware.BearerAuth(s.config.UpdateSecret)

	mux.HandleFunc("GET /health", s.handler.HandleHealth)

	// Pricing.
	mux.HandleFunc("POST /pricing/calculate-credits", s.handler.HandleCalculateCredits)
	mux.HandleFunc("GET /pricing", s.handler.HandleListPricing)
	mux.HandleFunc("GET /pricing/history/{service_id}", s.handler.HandleCostHistory)
	mux.HandleFunc("GET /pricing/coefficients", s.handler.HandleCoefficientHistory)
	mux.Handle("POST /pricing/auto-update", admin(http.HandlerFunc(s.handler.HandleAutoUpdate)))
	mux.Handle("POST /pricing/refresh", admin(http.HandlerFunc(s.handler.HandleRefresh)))
	mux.Handle("POST /pricing/costs", admin(http.HandlerFunc(s.handler.HandleRecordCost)))
	mux.Handle("POST /pricing/coefficients", admin(http.HandlerFunc(s.handler.HandleRecordCoefficient)))

	// Credits.
	mux.Handle("POST /credits/grants", admin(http.HandlerFunc(s.handler.HandleGrant)))
	mux.HandleFunc("GET /credits/{user_id}", s.handler.HandleBalance)
	mux.HandleFunc("GET /credits/{user_id}/transactions", s.handler.HandleTransactions)

	// Reservations.
	mux.HandleFunc("POST /reservations", s.handler.HandleReserve)
	mux.HandleFunc("GET /reservations/{id}", s.handler.HandleGetReservation)
	mux.HandleFunc("POST /reservations/{id}/settle", s.handler.HandleSettle)
	mux.HandleFunc("POST /reservations/{id}/cancel", s.handler.HandleCancel)

	if s.middlewares == nil {
		return mux
	}
	return s.middlewares(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Routes(),
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	logger := observability.FromContext(ctx)
	if s.config.UpdateSecret == "" {
		logger.Warn("PRICING_UPDATE_SECRET is not set, admin routes will reject every request")
	}
	logger.Info("starting HTTP server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
