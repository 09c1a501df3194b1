// Package currency formats integer peso amounts for display.
package currency

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.MustParse("es-CO"))

// Format renders amount as Colombian pesos without decimals, e.g. "$25.000".
func Format(amount int64) string {
	if amount < 0 {
		return "-$" + printer.Sprintf("%d", -amount)
	}
	return "$" + printer.Sprintf("%d", amount)
}

// FormatSigned prefixes non-zero amounts with "+" or "-". Zero renders as "$0".
func FormatSigned(amount int64) string {
	switch {
	case amount > 0:
		return "+" + Format(amount)
	case amount < 0:
		return Format(amount)
	default:
		return "$0"
	}
}

// Tone classifies an amount for display: "positive", "negative" or "zero".
func Tone(amount int64) string {
	switch {
	case amount > 0:
		return "positive"
	case amount < 0:
		return "negative"
	default:
		return "zero"
	}
}
