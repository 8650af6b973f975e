package domain

import (
	"fmt"
	"strings"
	"time"
)

// Date patterns used by the supported feeds.
const (
	PatternCompact  = "yyyyMMdd"
	PatternUSDashed = "MM-dd-yyyy"
	PatternISO      = "yyyy-MM-dd"
)

// layoutReplacer turns a yyyy/MM/dd pattern into a Go reference layout.
var layoutReplacer = strings.NewReplacer(
	"yyyy", "2006",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// DateError reports text that does not match a feed's date pattern.
type DateError struct {
	Text    string
	Pattern string
	Err     error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("parse date %q with pattern %s: %v", e.Text, e.Pattern, e.Err)
}

func (e *DateError) Unwrap() error { return e.Err }

// Layout converts a date pattern such as "yyyy-MM-dd" into a time layout.
func Layout(pattern string) string {
	return layoutReplacer.Replace(pattern)
}

// ParseDate parses text against pattern in loc. It is a pure function: the same
// text, pattern and location always produce the same instant.
func ParseDate(text, pattern string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(Layout(pattern), strings.TrimSpace(text), loc)
	if err != nil {
		return time.Time{}, &DateError{Text: text, Pattern: pattern, Err: err}
	}
	return t, nil
}

// DateFromFilename parses the date encoded in a file name such as "03-24-2020.csv".
// Everything from the first '.' on is ignored.
func DateFromFilename(name, pattern string, loc *time.Location) (time.Time, error) {
	base := name
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return ParseDate(base, pattern, loc)
}
