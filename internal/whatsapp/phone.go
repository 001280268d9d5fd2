// Package whatsapp builds the messages site managers share over WhatsApp and
// reads the quick-entry messages they send back.
package whatsapp

import (
	"errors"
	"net/url"
	"strings"
)

const DefaultCountryCode = "91"

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone reduces raw to the digits wa.me expects: country code and
// subscriber number, no punctuation. A bare 10-digit number gets
// countryCode.
func NormalizePhone(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	raw = strings.TrimSpace(raw)
	international := strings.HasPrefix(raw, "+")

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()

	if !international {
		switch {
		case strings.HasPrefix(digits, "00"):
			digits = digits[2:]
		case len(digits) == 11 && digits[0] == '0':
			digits = digits[1:]
		}
		if len(digits) == 10 {
			digits = countryCode + digits
		}
	}

	if len(digits) < 11 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// Link returns a wa.me click-to-chat URL with text prefilled.
func Link(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	link := "https://wa.me/" + digits
	if text == "" {
		return link
	}
	return link + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
