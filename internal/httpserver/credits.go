package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/observability"
)

type grantRequest struct {
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// HandleGrant adds credits to a user's balance.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req grantRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(ctx, w, err.Error())
		return
	}

	tx, err := h.ledger.Grant(ctx, req.UserID, req.Amount, req.Description)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"transaction": tx,
	})
}

// HandleBalance returns a user's balance.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("user_id")

	balance, err := h.ledger.Balance(ctx, userID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user_id": userID,
		"balance": balance,
	})
}

// HandleTransactions returns a user's newest transactions. ?limit caps the count.
func (h *Handler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("user_id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(ctx, w, "limit must be an integer")
			return
		}
		limit = n
	}

	txs, err := h.ledger.Transactions(ctx, userID, limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"user_id":      userID,
		"transactions": txs,
	})
}

type reserveRequest struct {
	UserID    string           `json:"user_id"`
	OwnerKind domain.OwnerKind `json:"owner_kind"`
	OwnerID   string           `json:"owner_id"`
	AIService string           `json:"ai_service"`
	Params    requestParams    `json:"params"`
	Images    int              `json:"images"`
}

// HandleReserve debits the estimated credits of a job or sample up front.
func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reserveRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(ctx, w, err.Error())
		return
	}
	if req.AIService == "" {
		badRequest(ctx, w, "ai_service is required")
		return
	}

	ctx = observability.WithProvider(ctx, req.AIService)
	reservation, err := h.ledger.Reserve(ctx, domain.ReserveRequest{
		UserID:    req.UserID,
		OwnerKind: req.OwnerKind,
		OwnerID:   req.OwnerID,
		Provider:  req.AIService,
		Params:    req.Params.billingParams(req.AIService),
		Images:    req.Images,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"reservation": reservation,
	})
}

// HandleGetReservation returns a reservation and, once closed, its per-image charges.
func (h *Handler) HandleGetReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	reservation, err := h.ledger.Reservation(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	charges, err := h.ledger.Charges(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"reservation": reservation,
		"charges":     charges,
	})
}

type closeRequest struct {
	Outcomes []domain.ImageOutcome `json:"outcomes"`
}

// HandleSettle charges completed images and refunds the rest.
func (h *Handler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	h.handleClose(w, r, h.ledger.Settle)
}

// HandleCancel closes a reservation as cancelled, charging only completed images.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleClose(w, r, h.ledger.Cancel)
}

type closeFunc func(ctx context.Context, reservationID string, outcomes []domain.ImageOutcome) (domain.Settlement, error)

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request, closeReservation closeFunc) {
	ctx := observability.WithReservationID(r.Context(), r.PathValue("id"))

	var req closeRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			badRequest(ctx, w, err.Error())
			return
		}
	}

	settlement, err := closeReservation(ctx, r.PathValue("id"), req.Outcomes)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"settlement": settlement,
	})
}
