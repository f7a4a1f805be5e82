package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing record (no current cost, unknown reservation, ...).
	ErrNotFound = errors.New("not found")

	// ErrInsufficientCredits indicates a reservation larger than the user's balance.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrReservationClosed indicates a settle/cancel on an already closed reservation.
	ErrReservationClosed = errors.New("reservation already closed")

	// ErrAdvisoryOnly is returned by probers whose provider cost cannot be observed
	// without a metered call. The updater reports it as "checked".
	ErrAdvisoryOnly = errors.New("cost is advisory only")

	// ErrInvalidAmount indicates a non-positive or non-finite amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidReservation indicates a malformed reserve or settle request.
	ErrInvalidReservation = errors.New("invalid reservation request")
)

// UnknownProviderError is returned when a provider tag is outside the known set.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider: %q", e.Provider)
}

// InvalidParamsError is returned when a price-affecting parameter is out of its domain.
type InvalidParamsError struct {
	Provider Provider
	Field    string
	Value    interface{}
	Reason   string
}

func (e *InvalidParamsError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid params for %s: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("invalid params for %s: %s=%v: %s", e.Provider, e.Field, e.Value, e.Reason)
}

// PricingUnavailableError is returned when no price can be produced for a tier.
type PricingUnavailableError struct {
	ServiceID ServiceID
	Err       error
}

func (e *PricingUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pricing unavailable for %s", e.ServiceID)
	}
	return fmt.Sprintf("pricing unavailable for %s: %v", e.ServiceID, e.Err)
}

func (e *PricingUnavailableError) Unwrap() error { return e.Err }

// IsUnknownProvider reports whether err is (or wraps) an UnknownProviderError.
func IsUnknownProvider(err error) bool {
	var target *UnknownProviderError
	return errors.As(err, &target)
}

// IsInvalidParams reports whether err is (or wraps) an InvalidParamsError.
func IsInvalidParams(err error) bool {
	var target *InvalidParamsError
	return errors.As(err, &target)
}

// IsPricingUnavailable reports whether err is (or wraps) a PricingUnavailableError.
func IsPricingUnavailable(err error) bool {
	var target *PricingUnavailableError
	return errors.As(err, &target)
}
