package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODateLayout is the canonical date representation of a parsed transaction.
const ISODateLayout = "2006-01-02"

var (
	isoDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	longYearPattern  = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})$`)
	shortYearPattern = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})[/.](\d{2})$`)
)

// centuryCutoff splits two-digit years: 00-30 are 2000s, 31-99 are 1900s.
const centuryCutoff = 30

// fallbackLayouts are tried once the numeric day/month heuristics have not matched.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-1-2",
	"2006/01/02",
	"2006.01.02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"Mon, 2 Jan 2006",
	"Mon Jan 2 2006",
}

// ParseDate converts a raw date cell into an ISO "YYYY-MM-DD" string.
//
// Slash, dot or dash separated dates are disambiguated by value: a component above 12
// must be the day. When both components could be a month the two year widths
// resolve differently: four-digit years are read day-first (DD/MM/YYYY) while
// two-digit years are read month-first (MM/DD/YY). Callers rely on both.
// Dashes are accepted only with a four-digit year.
func ParseDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidDate
	}

	if isoDatePattern.MatchString(s) {
		if _, err := time.Parse(ISODateLayout, s); err != nil {
			return "", ErrInvalidDate
		}
		return s, nil
	}

	if m := longYearPattern.FindStringSubmatch(s); m != nil {
		first, second, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
		day, month := first, second
		if first <= 12 && second > 12 {
			day, month = second, first
		}
		if iso, ok := buildDate(year, month, day); ok {
			return iso, nil
		}
	}

	if m := shortYearPattern.FindStringSubmatch(s); m != nil {
		first, second, yy := atoi(m[1]), atoi(m[2]), atoi(m[3])
		year := 1900 + yy
		if yy <= centuryCutoff {
			year = 2000 + yy
		}
		month, day := first, second
		if first > 12 {
			day, month = first, second
		}
		if iso, ok := buildDate(year, month, day); ok {
			return iso, nil
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODateLayout), nil
		}
	}

	return "", ErrInvalidDate
}

// buildDate constructs the calendar date and accepts it only when it round-trips,
// so 31/02/2024 is rejected instead of rolling over into March.
func buildDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format(ISODateLayout), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
