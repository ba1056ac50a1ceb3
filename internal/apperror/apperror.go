// Package apperror defines the error kinds shared by every billing component.
//
// Domain packages declare coded errors bound to a Kind, for example
//
//	ErrQuoteNotPending = apperror.New(apperror.KindConflict, "quote_not_pending")
//
// and callers match either the exact error or the whole kind:
//
//	errors.Is(err, quotedomain.ErrQuoteNotPending)
//	errors.Is(err, apperror.ErrConflict)
package apperror

import "errors"

// Kind classifies a failure for propagation and transport mapping.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindConflict            Kind = "conflict"
	KindExpired             Kind = "expired"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindAlreadyProcessed    Kind = "already_processed"
)

// Kind sentinels. errors.Is(err, ErrConflict) holds for every conflict-kind error.
var (
	ErrValidation          = New(KindValidation, string(KindValidation))
	ErrNotFound            = New(KindNotFound, string(KindNotFound))
	ErrForbidden           = New(KindForbidden, string(KindForbidden))
	ErrConflict            = New(KindConflict, string(KindConflict))
	ErrExpired             = New(KindExpired, string(KindExpired))
	ErrInsufficientBalance = New(KindInsufficientBalance, string(KindInsufficientBalance))
	ErrAlreadyProcessed    = New(KindAlreadyProcessed, string(KindAlreadyProcessed))
)

// Error is a coded domain error.
type Error struct {
	Kind Kind
	Code string
}

// New declares a coded error of the given kind.
func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

func (e *Error) Error() string {
	return e.Code
}

// Is matches the kind sentinel of e, or another error with the same kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == string(t.Kind) || t.Code == e.Code
}

// KindOf returns the kind of the first coded error in err's chain.
func KindOf(err error) (Kind, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Kind, true
	}
	return "", false
}

// CodeOf returns the code of the first coded error in err's chain.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
