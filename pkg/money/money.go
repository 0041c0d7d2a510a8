package money

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const DefaultSymbol = "₹"

var printer = message.NewPrinter(language.English)

// Format renders amount with thousands grouping and no fraction digits, e.g. ₹12,499.
func Format(symbol string, amount float64) string {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return symbol + printer.Sprint(number.Decimal(amount, number.MaxFractionDigits(0)))
}

// FormatExact keeps two fraction digits, used for totals that carry tax.
func FormatExact(symbol string, amount float64) string {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return symbol + printer.Sprint(number.Decimal(amount, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Round rounds half away from zero to cents.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
