// Package errors provides the structured error taxonomy of the combat core.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeRejectedRequest is a guard denial: stale, over rate or unauthorized.
	CodeRejectedRequest Code = "REJECTED_REQUEST"
	// CodeInvalidState terminates a single session, e.g. a dead or protected target.
	CodeInvalidState Code = "INVALID_STATE"
	// CodeTransactionFailed aborts a death transaction before items are cleared.
	CodeTransactionFailed Code = "TRANSACTION_FAILED"
	// CodeDuplicateDeath rejects a second death notification within one life.
	CodeDuplicateDeath Code = "DUPLICATE_DEATH"
	// CodeClaimConflict marks an item that was taken by an earlier claim.
	CodeClaimConflict Code = "CLAIM_CONFLICT"
	// CodeRecordGone is returned for claims against closed death records.
	CodeRecordGone Code = "RECORD_GONE"
	// CodeNotFound is returned when an entity or record does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeClockHalted is the only fatal case: the simulation loop stops.
	CodeClockHalted Code = "CLOCK_HALTED"
	// CodeInvalidArgument covers malformed inbound payloads.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// HTTPStatus maps the code onto the status used by the transport layer.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeRejectedRequest:
		return http.StatusTooManyRequests
	case CodeInvalidState, CodeDuplicateDeath, CodeClaimConflict:
		return http.StatusConflict
	case CodeRecordGone:
		return http.StatusGone
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeClockHalted, CodeTransactionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
