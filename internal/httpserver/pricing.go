package httpserver

import (
	"net/http"
	"time"

	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/observability"
)

type serviceRequest struct {
	AIService string        `json:"ai_service"`
	Params    requestParams `json:"params"`
	Count     int           `json:"count,omitempty"`
}

type calculateCreditsRequest struct {
	AIService string           `json:"ai_service"`
	Params    requestParams    `json:"params"`
	Services  []serviceRequest `json:"services"`
}

// HandleCalculateCredits prices one service ({ai_service, params}) or a batch ({services: [...]}).
func (h *Handler) HandleCalculateCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req calculateCreditsRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(ctx, w, err.Error())
		return
	}

	if req.Services != nil {
		requests := make([]domain.QuoteRequest, len(req.Services))
		for i, svc := range req.Services {
			requests[i] = domain.QuoteRequest{
				Provider: svc.AIService,
				Params:   svc.Params.billingParams(svc.AIService),
				Count:    svc.Count,
			}
		}

		batch := h.quotes.QuoteBatch(ctx, requests)
		writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
			"success":       true,
			"total_credits": batch.TotalCredits,
			"degraded":      batch.Degraded,
			"breakdown":     batch.Breakdown,
		})
		return
	}

	if req.AIService == "" {
		badRequest(ctx, w, "ai_service is required")
		return
	}

	ctx = observability.WithProvider(ctx, req.AIService)
	quote, err := h.quotes.Quote(ctx, req.AIService, req.Params.billingParams(req.AIService))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"service_id":       quote.ServiceID,
		"credits_required": quote.CreditsRequired,
		"fallback":         quote.Fallback,
	})
}

// HandleListPricing returns the current pricing view.
func (h *Handler) HandleListPricing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	if err := h.catalog.EnsureFresh(ctx); err != nil {
		logger.Warn("could not verify pricing view freshness", observability.Error(err))
	}

	rows, err := h.catalog.All(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	body := map[string]interface{}{
		"success": true,
		"pricing": rows,
		"count":   len(rows),
	}
	if freshness, fErr := h.catalog.Freshness(ctx); fErr == nil {
		body["refreshed_at"] = freshness.RefreshedAt
		body["stale"] = freshness.Stale
	} else {
		logger.Warn("could not read pricing view freshness", observability.Error(fErr))
	}

	writeJSON(ctx, w, http.StatusOK, body)
}

// HandleAutoUpdate runs every cost prober and reports the per-provider status.
func (h *Handler) HandleAutoUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report := h.updater.Run(ctx)

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Pricing update completed",
		"result":  report.Statuses(),
		"details": report,
	})
}

// HandleRefresh rebuilds the pricing view from history.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.catalog.Refresh(ctx); err != nil {
		writeError(ctx, w, err)
		return
	}

	body := map[string]interface{}{"success": true}
	if freshness, err := h.catalog.Freshness(ctx); err == nil {
		body["refreshed_at"] = freshness.RefreshedAt
	}
	writeJSON(ctx, w, http.StatusOK, body)
}

type recordCostRequest struct {
	ServiceID string   `json:"service_id"`
	CostUSD   *float64 `json:"cost_usd"`
	Notes     string   `json:"notes"`
}

// HandleRecordCost appends a manual cost record.
func (h *Handler) HandleRecordCost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req recordCostRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(ctx, w, err.Error())
		return
	}
	if req.CostUSD == nil {
		badRequest(ctx, w, "cost_usd is required")
		return
	}

	record, err := h.catalog.RecordCost(ctx, domain.ServiceID(req.ServiceID), *req.CostUSD, domain.CostSourceManual, req.Notes)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"record":  record,
	})
}

type recordCoefficientRequest struct {
	Coefficient *float64 `json:"coefficient"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
}

// HandleRecordCoefficient appends a new global coefficient.
func (h *Handler) HandleRecordCoefficient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req recordCoefficientRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(ctx, w, err.Error())
		return
	}
	if req.Coefficient == nil {
		badRequest(ctx, w, "coefficient is required")
		return
	}
	if req.Name == "" {
		req.Name = "manual " + time.Now().UTC().Format(time.DateOnly)
	}

	coefficient, err := h.catalog.RecordCoefficient(ctx, *req.Coefficient, req.Name, req.Description)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"coefficient": coefficient,
	})
}

// HandleCostHistory returns every cost record of a tier, oldest first.
func (h *Handler) HandleCostHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseServiceID(r.PathValue("service_id"))
	if err != nil {
		badRequest(ctx, w, err.Error())
		return
	}

	history, err := h.catalog.CostHistory(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"service_id": id,
		"history":    history,
	})
}

// HandleCoefficientHistory returns every coefficient, oldest first.
func (h *Handler) HandleCoefficientHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	history, err := h.catalog.CoefficientHistory(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success": true,
		"history": history,
	})
}
