// Package datefmt renders the upstream's date strings for people. The
// upstream is not consistent about formats, so parsing tries several.
package datefmt

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout     = "02 Jan 2006"
	DateTimeLayout = "02 Jan 2006, 03:04 PM"
	Empty          = "-"
)

var ErrUnrecognized = errors.New("unrecognized date")

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
}

// Parse reads raw in any of the known layouts, or as unix seconds.
func Parse(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrUnrecognized
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, ErrUnrecognized
}

// Display formats raw as "02 Jan 2006". Unparsable input comes back as is;
// empty input is "-".
func Display(raw string) string {
	return format(raw, DateLayout)
}

// DisplayTime is Display with the time of day.
func DisplayTime(raw string) string {
	return format(raw, DateTimeLayout)
}

func format(raw, layout string) string {
	if strings.TrimSpace(raw) == "" {
		return Empty
	}
	t, err := Parse(raw)
	if err != nil {
		return raw
	}
	return t.Format(layout)
}
