package whatsapp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParsedMessage is a quick-entry message: a date line followed by one
// material per line.
type ParsedMessage struct {
	Date     time.Time
	Items    []ParsedItem
	Warnings []string // lines that failed to parse
}

// ParsedItem is one line such as "cement 50 bags 18k".
type ParsedItem struct {
	RawText     string
	Description string
	Qty         decimal.Decimal
	Unit        string
	Amount      decimal.Decimal
}

// Rate is the per-unit price implied by the line.
func (i ParsedItem) Rate() decimal.Decimal {
	if i.Qty.IsZero() {
		return i.Amount
	}
	return i.Amount.Div(i.Qty).Round(2)
}

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// Site material units. Price suffixes (k, l, lakh, cr) are not units.
var qtyUnits = map[string]bool{
	"bag": true, "bags": true, "kg": true, "kgs": true, "ton": true, "tons": true,
	"cft": true, "sqft": true, "rft": true, "ft": true, "m": true, "mtr": true,
	"nos": true, "no": true, "pcs": true, "pc": true, "brass": true, "load": true,
	"loads": true, "trip": true, "trips": true, "ltr": true, "litre": true,
	"box": true, "boxes": true, "bundle": true, "bundles": true, "unit": true, "units": true,
}

var priceSuffixes = []struct {
	s string
	m int64
}{
	{"lakh", 1_00_000},
	{"cr", 1_00_00_000},
	{"k", 1_000},
	{"l", 1_00_000},
}

// ParseMessage parses a quick-entry message. The first non-empty line must be
// a date such as "20 jan"; every following line is an item with a price.
func ParseMessage(text string) (*ParsedMessage, error) {
	return parseMessage(text, time.Now())
}

func parseMessage(text string, now time.Time) (*ParsedMessage, error) {
	var (
		date      time.Time
		dateFound bool
		items     []ParsedItem
		warnings  []string
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !dateFound {
			d, ok := parseDateLine(line, now)
			if !ok {
				return nil, fmt.Errorf("first line must be a date, got: %q", line)
			}
			date, dateFound = d, true
			continue
		}

		item, err := parseItemLine(line)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped: %s", line))
			continue
		}
		items = append(items, *item)
	}

	if !dateFound {
		return nil, fmt.Errorf("no date found in message")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no items found in message")
	}
	return &ParsedMessage{Date: date, Items: items, Warnings: warnings}, nil
}

// parseDateLine reads "20 jan" or "20 jan 2024". Without a year, a date
// more than 30 days ahead of now belongs to the previous year.
func parseDateLine(line string, now time.Time) (time.Time, bool) {
	parts := strings.Fields(strings.ToLower(line))
	if len(parts) != 2 && len(parts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := months[parts[1]]
	if !ok {
		return time.Time{}, false
	}

	if len(parts) == 3 {
		year, err := strconv.Atoi(parts[2])
		if err != nil || year < 2000 || year > 2100 {
			return time.Time{}, false
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}

	parsed := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if parsed.After(now.AddDate(0, 0, 30)) {
		parsed = parsed.AddDate(-1, 0, 0)
	}
	return parsed, true
}

// parseItemLine takes the last price-looking token as the amount and the
// first number followed by a unit as the quantity.
func parseItemLine(line string) (*ParsedItem, error) {
	tokens := strings.Fields(strings.ToLower(line))

	priceIdx := -1
	var amount decimal.Decimal
	for i := len(tokens) - 1; i >= 0; i-- {
		if p, ok := parsePrice(tokens[i]); ok {
			priceIdx, amount = i, p
			break
		}
	}
	if priceIdx < 0 {
		return nil, fmt.Errorf("no price found in line: %q", line)
	}

	qty := decimal.NewFromInt(1)
	var (
		unit      string
		qtyFound  bool
		descParts []string
	)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if i == priceIdx {
			continue
		}
		if !qtyFound {
			if q, u, ok := parseQtyUnitToken(tok); ok {
				qty, unit, qtyFound = q, u, true
				continue
			}
			if q, err := decimal.NewFromString(tok); err == nil && i+1 < len(tokens) && i+1 != priceIdx && qtyUnits[tokens[i+1]] {
				qty, unit, qtyFound = q, tokens[i+1], true
				i++
				continue
			}
		}
		descParts = append(descParts, tok)
	}

	desc := strings.Join(descParts, " ")
	if desc == "" {
		return nil, fmt.Errorf("no description in line: %q", line)
	}

	return &ParsedItem{
		RawText:     line,
		Description: desc,
		Qty:         qty,
		Unit:        unit,
		Amount:      amount,
	}, nil
}

// parsePrice reads "18000", "18,000", "₹18000", "rs18000", "18k", "1.5l",
// "2lakh" and "1cr".
func parsePrice(tok string) (decimal.Decimal, bool) {
	tok = strings.TrimPrefix(tok, "₹")
	tok = strings.TrimPrefix(tok, "rs.")
	tok = strings.TrimPrefix(tok, "rs")
	tok = strings.ReplaceAll(tok, ",", "")
	if tok == "" {
		return decimal.Zero, false
	}

	for _, sf := range priceSuffixes {
		if !strings.HasSuffix(tok, sf.s) {
			continue
		}
		num, err := decimal.NewFromString(strings.TrimSuffix(tok, sf.s))
		if err != nil {
			continue
		}
		return num.Mul(decimal.NewFromInt(sf.m)), true
	}

	if !unicode.IsDigit(rune(tok[0])) {
		return decimal.Zero, false
	}
	num, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero, false
	}
	return num, true
}

// parseQtyUnitToken parses "50bags" into (50, "bags"). Only known units match.
func parseQtyUnitToken(tok string) (decimal.Decimal, string, bool) {
	digitEnd := 0
	for i, r := range tok {
		if unicode.IsDigit(r) || r == '.' {
			digitEnd = i + 1
		} else {
			break
		}
	}
	if digitEnd == 0 || digitEnd == len(tok) {
		return decimal.Zero, "", false
	}

	unit := tok[digitEnd:]
	if !qtyUnits[unit] {
		return decimal.Zero, "", false
	}
	qty, err := decimal.NewFromString(tok[:digitEnd])
	if err != nil {
		return decimal.Zero, "", false
	}
	return qty, unit, true
}
