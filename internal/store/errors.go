package store

import (
	"errors"

	"github.com/venturelane/vceo/internal/models"
)

// RecoverableError is an alias for models.RecoverableError, retained so
// store callers don't need a models import for type assertions.
type RecoverableError = models.RecoverableError

// ErrClaimLost is returned when a conditional claim update affects zero
// rows: a concurrent runtime claimed the message first. Callers treat
// this as "no work this cycle", not as a failure.
var ErrClaimLost = errors.New("message claimed by another runtime")

// ErrNotProcessing is returned when a terminal transition is attempted
// on a message that is not in 'processing' (already terminal, still
// pending, or unknown).
var ErrNotProcessing = errors.New("message is not in processing state")

// ErrVentureRequired is returned for agent memory writes without a
// venture id. Memory is partitioned per venture to prevent
// cross-venture context leakage.
var ErrVentureRequired = errors.New("venture id is required for memory writes")

// ErrPredictionNotFound is returned when resolving an unknown prediction id.
var ErrPredictionNotFound = errors.New("prediction not found")

// ErrPredictionResolved is returned when a prediction is resolved twice.
// Resolution happens exactly once; the stored calibration delta is never
// recomputed.
var ErrPredictionResolved = errors.New("prediction already resolved")

// NotProcessingError carries the message and observed status for a
// refused terminal transition.
type NotProcessingError struct {
	MessageID string
	Status    models.MessageStatus
}

func (e *NotProcessingError) Error() string     { return "message is not in processing state" }
func (e *NotProcessingError) ErrorCode() string { return "NOT_PROCESSING" }
func (e *NotProcessingError) Context() map[string]string {
	return map[string]string{
		"message_id": e.MessageID,
		"status":     string(e.Status),
	}
}
func (e *NotProcessingError) SuggestedAction() string {
	return "claim the message before completing or failing it"
}
func (e *NotProcessingError) Is(target error) bool { return target == ErrNotProcessing }
