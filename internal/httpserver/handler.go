// Package httpserver exposes the pricing engine and credit ledger over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/observability"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler handles HTTP requests.
type Handler struct {
	quotes  *domain.QuoteService
	catalog *domain.PricingCatalog
	updater *domain.AutoUpdater
	ledger  *domain.LedgerService
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	quotes *domain.QuoteService,
	catalog *domain.PricingCatalog,
	updater *domain.AutoUpdater,
	ledger *domain.LedgerService,
) *Handler {
	return &Handler{
		quotes:  quotes,
		catalog: catalog,
		updater: updater,
		ledger:  ledger,
	}
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeJSON writes body with the given status. body should carry "success".
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.FromContext(ctx).Error("failed to encode response", observability.Error(err))
	}
}

// writeError writes {"success": false, "error": msg} with the status mapped from err.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)

	logger := observability.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", observability.Int("status", status), observability.Error(err))
	} else {
		logger.Info("request rejected", observability.Int("status", status), observability.Error(err))
	}

	writeJSON(ctx, w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

// badRequest writes a 400 with msg.
func badRequest(ctx context.Context, w http.ResponseWriter, msg string) {
	writeJSON(ctx, w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsUnknownProvider(err), domain.IsInvalidParams(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidReservation):
		return http.StatusBadRequest
	case domain.IsPricingUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrReservationClosed):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
