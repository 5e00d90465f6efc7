package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is (or wraps) an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Error codes, grouped by class: NET (network/sync), REC (record lifecycle),
// SEC (security, fatal for a single record), PUB (publication), REQ
// (request validation), AUTH (session), SYS (internal).
const (
	CodeNetworkUnavailable  = "NET_001"
	CodeSyncDegraded        = "NET_002"
	CodeRecordNotFound      = "REC_001"
	CodeOwnershipMismatch   = "SEC_001"
	CodeRecordUnreadable    = "SEC_002"
	CodePublishUnconfirmed  = "PUB_001"
	CodeStillDiverged       = "PUB_002"
	CodeInvalidIdentity     = "REQ_001"
	CodeInvalidProof        = "REQ_002"
	CodeValidation          = "REQ_003"
	CodeInvalidSessionToken = "AUTH_001"
	CodeInternal            = "SYS_001"
)

// ---- Network & Synchronization (NET) ----

// ErrNetworkUnavailable reports that every store node was unreachable.
func ErrNetworkUnavailable(err error) *AppError {
	return Wrap(CodeNetworkUnavailable, "No store node reachable", http.StatusServiceUnavailable, err)
}

// ErrSyncDegraded reports that a live sync failed but a verified cached
// balance is being served instead.
func ErrSyncDegraded(err error) *AppError {
	return Wrap(CodeSyncDegraded, "Wallet sync degraded, serving last verified state", http.StatusOK, err)
}

// ---- Record Lifecycle (REC) ----

// ErrRecordNotFound is the expected terminal state of a fetch that found no
// records for the identity across the full retry budget.
func ErrRecordNotFound() *AppError {
	return New(CodeRecordNotFound, "No wallet record found for identity", http.StatusNotFound)
}

// ---- Security (SEC) ----

// ErrOwnershipMismatch marks a single record whose author or embedded owner
// does not match the requesting identity. Fatal for the record, never for
// the whole operation.
func ErrOwnershipMismatch(detail string) *AppError {
	return New(CodeOwnershipMismatch, fmt.Sprintf("Record ownership mismatch: %s", detail), http.StatusForbidden)
}

// ErrRecordUnreadable marks a record whose payload failed to decrypt or
// parse. The record is treated as foreign and discarded.
func ErrRecordUnreadable(err error) *AppError {
	return Wrap(CodeRecordUnreadable, "Record payload unreadable", http.StatusUnprocessableEntity, err)
}

// ---- Publication (PUB) ----

// ErrPublishUnconfirmed reports that a published record could not be
// confirmed as retrievable. Safe to retry with identical content.
func ErrPublishUnconfirmed(err error) *AppError {
	return Wrap(CodePublishUnconfirmed, "Publication not confirmed by store", http.StatusAccepted, err)
}

// ErrStillDiverged reports that consolidation left more than one candidate
// record in the store. The next sync pass resolves it.
func ErrStillDiverged() *AppError {
	return New(CodeStillDiverged, "Wallet records still diverged after consolidation", http.StatusAccepted)
}

// ---- Request Validation (REQ) ----

func ErrInvalidIdentity(detail string) *AppError {
	return New(CodeInvalidIdentity, fmt.Sprintf("Invalid identity: %s", detail), http.StatusBadRequest)
}

func ErrInvalidProof(detail string) *AppError {
	return New(CodeInvalidProof, fmt.Sprintf("Invalid bearer proof: %s", detail), http.StatusBadRequest)
}

// Validation reports a malformed request body or parameter.
func Validation(detail string) *AppError {
	return New(CodeValidation, fmt.Sprintf("Validation failed: %s", detail), http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidSessionToken() *AppError {
	return New(CodeInvalidSessionToken, "Invalid or expired session token", http.StatusUnauthorized)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
