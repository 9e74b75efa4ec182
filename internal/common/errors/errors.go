// Package errors provides the standardized error taxonomy for the
// notification pipeline. Nothing here is fatal to the host process:
// every failure mode degrades to fewer notifications delivered.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Dropped silently: bad payloads and incidents without coordinates.
	ErrCodeMalformedInput ErrorCode = "MALFORMED_INPUT"

	// Logged, never retried here; retry belongs to the transport layer.
	ErrCodeTransientTransportFailure ErrorCode = "TRANSIENT_TRANSPORT_FAILURE"

	// Some recipients failed to persist or push; reported as a count.
	ErrCodePartialBatchFailure ErrorCode = "PARTIAL_BATCH_FAILURE"

	// No recipients resolved or no targets configured; a valid empty result.
	ErrCodeConfigurationGap ErrorCode = "CONFIGURATION_GAP"

	ErrCodeGeoQueryFailed         ErrorCode = "GEO_QUERY_FAILED"
	ErrCodeLedgerUnavailable      ErrorCode = "LEDGER_UNAVAILABLE"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeStoreInsertFailed      ErrorCode = "STORE_INSERT_FAILED"
)

// StandardError represents a structured pipeline error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewMalformedInputError marks input that must be dropped without a
// user-visible error.
func NewMalformedInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedInput,
		Message:   "Malformed input dropped",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransientTransportError wraps an unreachable push or store endpoint.
func NewTransientTransportError(target string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientTransportFailure,
		Message:   fmt.Sprintf("Transport '%s' unreachable", target),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPartialBatchError records that some recipients in a dispatch batch
// failed; processing continued for the rest.
func NewPartialBatchError(failed, total int) *StandardError {
	return &StandardError{
		Code:      ErrCodePartialBatchFailure,
		Message:   "Some notifications in the batch were not delivered",
		Details:   fmt.Sprintf("failed: %d of %d", failed, total),
		Retryable: false,
		Metadata:  map[string]interface{}{"failed": failed, "total": total},
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationGapError marks an event that resolved zero recipients.
func NewConfigurationGapError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationGap,
		Message:   "No recipients resolved",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGeoQueryFailedError wraps a failed geo index lookup.
func NewGeoQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGeoQueryFailed,
		Message:   "Geo index query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLedgerUnavailableError wraps a failed dedup ledger call.
func NewLedgerUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerUnavailable,
		Message:   "Dedup ledger unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreInsertFailedError wraps a failed notification record insert.
func NewStoreInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreInsertFailed,
		Message:   "Notification record insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError wraps a failed push publish.
func NewNotificationSendFailedError(userID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Push delivery failed",
		Details:   fmt.Sprintf("userId: %s, error: %s", userID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// IsSilentDrop reports whether the error class must never surface to a
// user: malformed input is dropped, not reported.
func IsSilentDrop(code ErrorCode) bool {
	return code == ErrCodeMalformedInput
}

// IsRetryableErrorCode checks if an error code is retryable by the
// owning transport layer. The pipeline itself never retries.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeTransientTransportFailure,
		ErrCodeGeoQueryFailed,
		ErrCodeLedgerUnavailable,
		ErrCodeStoreInsertFailed,
		ErrCodeNotificationSendFailed:
		return true
	default:
		return false
	}
}
