package domain

import "time"

// OwnerKind is the entity that owns a reservation.
type OwnerKind string

const (
	OwnerJob    OwnerKind = "job"
	OwnerSample OwnerKind = "sample"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationOpen      ReservationStatus = "open"
	ReservationSettled   ReservationStatus = "settled"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is credit debited up front for a job or sample.
type Reservation struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	OwnerKind       OwnerKind         `json:"owner_kind"`
	OwnerID         string            `json:"owner_id"`
	Provider        Provider          `json:"provider"`
	ServiceID       ServiceID         `json:"service_id"`
	Images          int               `json:"images"`
	CreditsPerImage int64             `json:"credits_per_image"`
	ReservedCredits int64             `json:"reserved_credits"`
	Fallback        bool              `json:"fallback"`
	Status          ReservationStatus `json:"status"`
	RefundedCredits int64             `json:"refunded_credits"`
	CreatedAt       time.Time         `json:"created_at"`
	ClosedAt        *time.Time        `json:"closed_at,omitempty"`
}

// ImageStatus is the outcome of one image of a reservation.
type ImageStatus string

const (
	ImageCompleted ImageStatus = "completed"
	ImageFailed    ImageStatus = "failed"
	ImageCancelled ImageStatus = "cancelled"
)

// ImageOutcome is what the owner reports for one image at settlement.
type ImageOutcome struct {
	Index         int         `json:"index"`
	Status        ImageStatus `json:"status"`
	ActualCostUSD *float64    `json:"actual_cost_usd,omitempty"`
}

// ImageCharge is the settled charge of one image.
type ImageCharge struct {
	Index            int         `json:"index"`
	Status           ImageStatus `json:"status"`
	EstimatedCredits int64       `json:"estimated_credits"`
	ActualCredits    *int64      `json:"actual_credits,omitempty"`
	CreditsSpent     int64       `json:"credits_spent"`
	VariancePct      float64     `json:"variance_pct"`
	Discrepancy      bool        `json:"discrepancy,omitempty"`
}

// Settlement closes a reservation.
type Settlement struct {
	ReservationID  string            `json:"reservation_id"`
	UserID         string            `json:"user_id"`
	FinalStatus    ReservationStatus `json:"final_status"`
	Charges        []ImageCharge     `json:"charges"`
	ChargedCredits int64             `json:"charged_credits"`
	RefundCredits  int64             `json:"refund_credits"`
	ClosedAt       time.Time         `json:"closed_at"`
}

// TransactionType classifies a balance movement.
type TransactionType string

const (
	TransactionGrant   TransactionType = "grant"
	TransactionReserve TransactionType = "reserve"
	TransactionRefund  TransactionType = "refund"
)

// CreditTransaction is one balance movement. Amount is signed.
type CreditTransaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"`
	BalanceAfter  int64           `json:"balance_after"`
	ReservationID string          `json:"reservation_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ReserveRequest asks the ledger to reserve credits for a job or sample.
type ReserveRequest struct {
	UserID    string
	OwnerKind OwnerKind
	OwnerID   string
	Provider  string
	Params    BillingParams
	Images    int
}
