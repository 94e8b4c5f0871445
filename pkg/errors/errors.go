package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Sequencing
// errors carry the entity's current state so callers can re-sync.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	State   string `json:"state,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so Clone/WithState copies compare equal to their
// predefined originals via errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Validation errors: rejected before any state change.
var (
	ErrMissingReason       = New("MISSING_REASON", http.StatusBadRequest, "a non-empty reason is required")
	ErrInvalidDateRange    = New("INVALID_DATE_RANGE", http.StatusBadRequest, "end date precedes start date")
	ErrInsufficientBalance = New("INSUFFICIENT_BALANCE", http.StatusUnprocessableEntity, "leave balance is insufficient")
)

// Sequencing errors: the operation's precondition on current state failed.
var (
	ErrNotYourTurn         = New("NOT_YOUR_TURN", http.StatusConflict, "approver is not at the current approval level")
	ErrRequestClosed       = New("REQUEST_CLOSED", http.StatusConflict, "request is already in a terminal state")
	ErrRecordNotComputable = New("RECORD_NOT_COMPUTABLE", http.StatusConflict, "payroll record cannot be recomputed")
	ErrPeriodLocked        = New("PERIOD_LOCKED", http.StatusConflict, "payroll period is locked")
	ErrDuplicateCheckIn    = New("DUPLICATE_CHECK_IN", http.StatusConflict, "already checked in for this day")
	ErrDuplicateCheckOut   = New("DUPLICATE_CHECK_OUT", http.StatusConflict, "already checked out for this day")
	ErrNoActiveCheckIn     = New("NO_ACTIVE_CHECK_IN", http.StatusConflict, "no check-in recorded for this day")
	ErrInvalidTransition   = New("INVALID_TRANSITION", http.StatusConflict, "status transition not allowed")
)

// Aggregate errors reported at the period level.
var (
	ErrIncompleteApprovals = New("INCOMPLETE_APPROVALS", http.StatusConflict, "not every payroll record is approved")
	ErrNoEligibleEmployees = New("NO_ELIGIBLE_EMPLOYEES", http.StatusOK, "no eligible employees for this period")
)

// Ambient errors shared across handlers and services.
var (
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden  = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss  = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithState clones a sequencing error and attaches the entity's actual state.
func WithState(err *Error, state string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.State = state
	return &clone
}
