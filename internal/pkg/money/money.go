// Package money holds the decimal rounding, currency and formatting rules shared by
// invoices, payments, recurring schedules, expenses and reports.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	Zero    = decimal.Zero
	Hundred = decimal.NewFromInt(100)
)

// Supported lists the currencies invoices and payments may be issued in
var Supported = []string{"NGN", "USD", "EUR", "GBP", "ZAR", "GHS", "KES", "CAD", "AUD", "INR"}

var symbols = map[string]string{
	"NGN": "₦", "USD": "$", "EUR": "€", "GBP": "£",
	"ZAR": "R", "GHS": "₵", "KES": "KSh", "CAD": "$",
	"AUD": "$", "INR": "₹",
}

// Round rounds half away from zero to two decimal places
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns amount * rate / 100, rounded
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate).Div(Hundred))
}

// Max returns the larger of a and b
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// FromMinor converts gateway minor units (kobo, cents) to a decimal amount
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// ToMinor converts an amount to gateway minor units
func ToMinor(d decimal.Decimal) int64 {
	return Round(d).Shift(2).IntPart()
}

// NormalizeCurrency upper-cases and trims a currency code
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCurrency reports whether code is an ISO 4217 code this product bills in
func IsValidCurrency(code string) bool {
	code = NormalizeCurrency(code)
	if _, err := currency.ParseISO(code); err != nil {
		return false
	}
	for _, c := range Supported {
		if c == code {
			return true
		}
	}
	return false
}

// Symbol returns the display symbol for code, or the code itself
func Symbol(code string) string {
	code = NormalizeCurrency(code)
	if s, ok := symbols[code]; ok {
		return s
	}
	return code
}

var printer = message.NewPrinter(language.English)

// Format renders an amount with its currency symbol and thousands grouping, e.g. "$1,250.00"
func Format(amount decimal.Decimal, code string) string {
	f, _ := Round(amount).Float64()
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	return sign + Symbol(code) + printer.Sprintf("%.2f", f)
}

var titler = cases.Title(language.English)

// Label turns a status or enum value such as "part_paid" into "Part Paid"
func Label(value string) string {
	return titler.String(strings.ReplaceAll(value, "_", " "))
}
