package whatsapp

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1_000)
	lakh     = decimal.NewFromInt(1_00_000)
	crore    = decimal.NewFromInt(1_00_00_000)
)

// FormatRupees renders d with Indian digit grouping: ₹12,34,567.50.
// Paise are shown only when non-zero.
func FormatRupees(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	whole, paise, _ := strings.Cut(d.StringFixed(2), ".")
	out := sign + "₹" + groupIndian(whole)
	if paise != "00" {
		out += "." + paise
	}
	return out
}

// FormatCompact renders d in lakh and crore shorthand: ₹2.5 L, ₹1.25 Cr.
func FormatCompact(d decimal.Decimal) string {
	sign := ""
	abs := d
	if d.IsNegative() {
		sign = "-"
		abs = d.Neg()
	}

	switch {
	case abs.GreaterThanOrEqual(crore):
		return sign + "₹" + abs.Div(crore).Round(2).String() + " Cr"
	case abs.GreaterThanOrEqual(lakh):
		return sign + "₹" + abs.Div(lakh).Round(2).String() + " L"
	case abs.GreaterThanOrEqual(thousand):
		return sign + "₹" + abs.Div(thousand).Round(1).String() + "K"
	}
	return FormatRupees(d)
}

// groupIndian inserts separators after the last three digits and then
// every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(append(parts, tail), ",")
}
