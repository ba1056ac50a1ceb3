package domain

import "github.com/smallbiznis/backoffice/internal/apperror"

var (
	ErrPlanNotFound           = apperror.New(apperror.KindNotFound, "plan_not_found")
	ErrPlanInactive           = apperror.New(apperror.KindValidation, "plan_inactive")
	ErrInvalidName            = apperror.New(apperror.KindValidation, "invalid_plan_name")
	ErrInvalidPrice           = apperror.New(apperror.KindValidation, "invalid_plan_price")
	ErrInvalidTokenAmount     = apperror.New(apperror.KindValidation, "invalid_token_amount")
	ErrInvalidBillingInterval = apperror.New(apperror.KindValidation, "invalid_billing_interval")
	ErrSlugTaken              = apperror.New(apperror.KindConflict, "plan_slug_taken")
)
