package domain

import "github.com/smallbiznis/backoffice/internal/apperror"

var (
	ErrSubscriptionNotFound     = apperror.New(apperror.KindNotFound, "subscription_not_found")
	ErrInvalidCustomer          = apperror.New(apperror.KindValidation, "invalid_customer")
	ErrInvalidPlan              = apperror.New(apperror.KindValidation, "invalid_plan")
	ErrActiveSubscriptionExists = apperror.New(apperror.KindConflict, "active_subscription_exists")
	ErrNotActive                = apperror.New(apperror.KindConflict, "subscription_not_active")
	ErrNotDue                   = apperror.New(apperror.KindConflict, "subscription_not_due")
	ErrVersionMismatch          = apperror.New(apperror.KindConflict, "subscription_version_mismatch")
)
