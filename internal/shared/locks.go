package shared

import "fmt"

// QuotationLockKey builds redis keys for quotation recompute critical
// sections. Recomputes are idempotent, the lock only serialises writers of
// the cached totals row.
func QuotationLockKey(quotationID int64) string {
	return fmt.Sprintf("quotes:quotation:%d:lock", quotationID)
}
