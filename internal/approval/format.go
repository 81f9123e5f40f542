package approval

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var inr = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders a minor-unit amount with Indian digit grouping, e.g.
// 15930000 paise becomes "₹1,59,300.00".
func FormatINR(paise int64) string {
	amount := float64(paise) / 100
	return inr.Sprintf("₹%v", number.Decimal(amount,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}
