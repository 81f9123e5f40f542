package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a malformed request rejected before any state
	// was written.
	ErrValidation = errors.New("validation failed")
	// ErrQuotationLocked occurs when line items of an approved quotation are
	// edited directly instead of through a change order.
	ErrQuotationLocked = errors.New("quotation is approved; use a change order")
	// ErrConfirmationRequired occurs when a destructive operation is invoked
	// without explicit confirmation.
	ErrConfirmationRequired = errors.New("explicit confirmation required")
)

// UserSafeMessage returns a message safe to surface to end users.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrQuotationLocked):
		return "This quotation is approved. Changes must go through a change order"
	case errors.Is(err, ErrConfirmationRequired):
		return "This action replaces existing data and must be confirmed first"
	case errors.Is(err, ErrValidation):
		return "The submitted data is invalid"
	default:
		return "Something went wrong. Please try again"
	}
}
