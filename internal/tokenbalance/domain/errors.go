package domain

import "github.com/smallbiznis/backoffice/internal/apperror"

var (
	ErrBalanceNotFound     = apperror.New(apperror.KindNotFound, "token_balance_not_found")
	ErrInvalidAmount       = apperror.New(apperror.KindValidation, "invalid_token_amount")
	ErrVersionMismatch     = apperror.New(apperror.KindConflict, "token_balance_version_mismatch")
	ErrInsufficientBalance = apperror.New(apperror.KindInsufficientBalance, "insufficient_token_balance")
)
