package invoicing

// Error codes returned by the invoicing domain
const (
	CodeInvalidInvoice          = "INVALID_INVOICE"
	CodeInvalidStatus           = "INVALID_STATUS"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodePaymentIncomplete       = "PAYMENT_INCOMPLETE"
	CodeInvalidAmount           = "INVALID_AMOUNT"
	CodeInvalidQuantity         = "INVALID_QUANTITY"
	CodeInvalidTaxRate          = "INVALID_TAX_RATE"
	CodeInvalidCurrency         = "INVALID_CURRENCY"
	CodeInvalidPaymentMethod    = "INVALID_PAYMENT_METHOD"
	CodeOverpayment             = "OVERPAYMENT"
	CodePaymentNotAllowed       = "PAYMENT_NOT_ALLOWED"
	CodePaymentAlreadyVerified  = "PAYMENT_ALREADY_VERIFIED"
	CodePaymentAlreadyReversed  = "PAYMENT_ALREADY_REVERSED"
	CodeDeletionNotAllowed      = "DELETION_NOT_ALLOWED"
	CodeInvoiceNotEditable      = "INVOICE_NOT_EDITABLE"
	CodeDuplicateInvoiceNumber  = "DUPLICATE_INVOICE_NUMBER"
	CodeTaxAlreadyFinalized     = "TAX_ALREADY_FINALIZED"
	CodeReminderNotAllowed      = "REMINDER_NOT_ALLOWED"
	CodeInvalidReversalReason   = "INVALID_REVERSAL_REASON"
	CodeInvalidThresholdSetting = "INVALID_PAID_THRESHOLD"
)
