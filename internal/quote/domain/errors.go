package domain

import "github.com/smallbiznis/backoffice/internal/apperror"

var (
	ErrQuoteNotFound   = apperror.New(apperror.KindNotFound, "quote_not_found")
	ErrInvalidCustomer = apperror.New(apperror.KindValidation, "invalid_customer")
	ErrInvalidExpiry   = apperror.New(apperror.KindValidation, "invalid_expiry_date")
	ErrInvalidStatus   = apperror.New(apperror.KindValidation, "invalid_quote_status")
	ErrNotQuoteOwner   = apperror.New(apperror.KindForbidden, "quote_not_owned")
	ErrNotPending      = apperror.New(apperror.KindConflict, "quote_not_pending")
	ErrNotAccepted     = apperror.New(apperror.KindConflict, "quote_not_accepted")
	ErrVersionMismatch = apperror.New(apperror.KindConflict, "quote_version_mismatch")
	ErrQuoteExpired    = apperror.New(apperror.KindExpired, "quote_expired")
)
