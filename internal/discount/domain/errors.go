package domain

import "github.com/smallbiznis/backoffice/internal/apperror"

var (
	ErrRequestNotFound = apperror.New(apperror.KindNotFound, "discount_request_not_found")
	ErrInvalidStatus   = apperror.New(apperror.KindValidation, "invalid_discount_request_status")
	ErrNotPending      = apperror.New(apperror.KindConflict, "discount_request_not_pending")
	ErrVersionMismatch = apperror.New(apperror.KindConflict, "discount_request_version_mismatch")
)
