package domain

import "github.com/smallbiznis/backoffice/internal/apperror"

var (
	ErrInvoiceNotFound          = apperror.New(apperror.KindNotFound, "invoice_not_found")
	ErrInvalidCustomer          = apperror.New(apperror.KindValidation, "invalid_customer")
	ErrInvalidStatus            = apperror.New(apperror.KindValidation, "invalid_invoice_status")
	ErrPaymentReferenceRequired = apperror.New(apperror.KindValidation, "payment_reference_required")
	ErrQuoteNotAccepted         = apperror.New(apperror.KindConflict, "quote_not_accepted")
	ErrAlreadyPaid              = apperror.New(apperror.KindConflict, "invoice_already_paid")
	ErrVersionMismatch          = apperror.New(apperror.KindConflict, "invoice_version_mismatch")
	// ErrAlreadyInvoiced accompanies the existing invoice when a quote is invoiced twice.
	ErrAlreadyInvoiced = apperror.New(apperror.KindAlreadyProcessed, "quote_already_invoiced")
)
