package errors

import "errors"

// Domain errors of the consent pipeline. Callers wrap them with
// fmt.Errorf("...: %w", ...) and test with errors.Is.
var (
	// ErrQuotaExceeded: the tier's daily ceiling of positive signals is used up.
	ErrQuotaExceeded = errors.New("daily interest quota exceeded")

	// ErrInvalidTransition: deciding a terminal introduction request, or
	// materializing a user with themselves.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNotConsented: the pair lacks mutual interest or guardian approval.
	ErrNotConsented = errors.New("pair has not consented")

	// ErrSelfAction: a signal from a user to themselves.
	ErrSelfAction = errors.New("cannot signal yourself")

	// ErrInvalidKind: unknown signal kind.
	ErrInvalidKind = errors.New("invalid signal kind")

	ErrNotFound = errors.New("record not found")

	// ErrDeliveryFailure: the delivery channel rejected or timed out a send.
	ErrDeliveryFailure = errors.New("notification delivery failed")
)
