// Package apperrors defines the error kinds shared by the upload, distribution
// and download paths. Callers classify with errors.Is.
package apperrors

import (
	"errors"
	"strings"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("object store unavailable")
	ErrIncompleteUpload = errors.New("incomplete multipart upload")
	ErrDeliveryFailure  = errors.New("message delivery failed")
	ErrConstraint       = errors.New("transfer constraint violated")
)

// Constraint violations, checked in this order by the quota enforcer.
var (
	ErrQuotaExceeded    = kind("storage quota exceeded", ErrConstraint)
	ErrTransferTooLarge = kind("transfer too large", ErrConstraint)
	ErrExpiryTooLong    = kind("expiry too long", ErrConstraint)
)

var (
	ErrOwnerNotFound       = kind("owner not found", ErrNotFound)
	ErrFileExpired         = kind("file has expired", ErrNotFound)
	ErrRecipientResolution = kind("recipient resolution failed", ErrValidation)
)

type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.parent }

func kind(msg string, parent error) error {
	return &kindError{msg: msg, parent: parent}
}

// ConstraintReason returns a stable machine-readable reason for a constraint
// error, or "" when err is not one.
func ConstraintReason(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "QuotaExceeded"
	case errors.Is(err, ErrTransferTooLarge):
		return "TransferTooLarge"
	case errors.Is(err, ErrExpiryTooLong):
		return "ExpiryTooLong"
	case errors.Is(err, ErrConstraint):
		return "ConstraintError"
	}
	return ""
}

// Message returns the caller-facing text of a classified error: the outermost
// message up to the first wrapped cause detail is dropped so that storage keys
// and driver output never leak.
func Message(err error) string {
	for _, k := range []error{
		ErrQuotaExceeded, ErrTransferTooLarge, ErrExpiryTooLong,
		ErrOwnerNotFound, ErrFileExpired, ErrRecipientResolution,
	} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && errors.Is(err, ErrValidation) {
		return msg[i+2:]
	}
	return msg
}
