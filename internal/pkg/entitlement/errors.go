package entitlement

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by the catalog and plan services. Callers match them
// with errors.Is and never need to inspect error text.
var (
	// ErrNotFound means a referenced goal or feature key does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey means a create used a key that is already reserved.
	// Keys stay reserved even after deactivation.
	ErrDuplicateKey = errors.New("key already reserved")

	// ErrPlanNotFound means the referenced subscription plan does not exist.
	ErrPlanNotFound = errors.New("subscription plan not found")

	// ErrTransactionAborted is a storage-level failure during an atomic sync.
	// The sync is idempotent, so the caller may retry the whole call.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrInvalidPricingConfig means a plan's pricing fields are inconsistent
	// with its pricing type.
	ErrInvalidPricingConfig = errors.New("invalid pricing configuration")
)

// UnknownFeatureKeyError rejects a sync request that references a feature key
// absent from the registry. The whole sync is rejected, never partially applied.
type UnknownFeatureKeyError struct {
	Key string
}

func (e *UnknownFeatureKeyError) Error() string {
	return fmt.Sprintf("unknown feature key %q", e.Key)
}

// FeatureLimitExceededError means a selection exceeds a plan's max_features
// cap. Max and Requested are carried for user-facing messaging.
type FeatureLimitExceededError struct {
	Max       int
	Requested int
}

func (e *FeatureLimitExceededError) Error() string {
	return fmt.Sprintf("feature limit exceeded: plan allows %d, %d requested", e.Max, e.Requested)
}

// IsRetryable reports whether the caller may safely retry the operation
// without re-validating its input. Only aborted transactions qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionAborted)
}

// HTTPStatus maps a service error to the HTTP status the web layer should
// respond with. Returns 500 for unrecognized errors as a safe default.
func HTTPStatus(err error) int {
	var unknownKey *UnknownFeatureKeyError
	var limit *FeatureLimitExceededError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateKey):
		return http.StatusConflict
	case errors.As(err, &unknownKey), errors.Is(err, ErrInvalidPricingConfig):
		return http.StatusUnprocessableEntity
	case errors.As(err, &limit):
		return http.StatusForbidden
	case errors.Is(err, ErrTransactionAborted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
