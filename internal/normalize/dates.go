package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/width"

	"github.com/gyeh/receiptgen/internal/era"
)

// Gregorian layouts accepted in snapshot and master files.
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"20060102",
	"2006年1月2日",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

// Era-relative forms as printed on insurance cards: R8.4.3 or 令和8年4月3日.
var (
	eraLetterDate = regexp.MustCompile(`^([MTSHR])(\d{1,2})\.(\d{1,2})\.(\d{1,2})$`)
	eraNameDate   = regexp.MustCompile(`^(明治|大正|昭和|平成|令和)(\d{1,2}|元)年(\d{1,2})月(\d{1,2})日$`)
	eraCompact    = regexp.MustCompile(`^[1-5]\d{6}$`)
)

// ParseDate attempts to parse a date string in the Gregorian and era forms
// above, after folding full-width digits. The result is a UTC midnight.
// Returns nil if the input is empty or unparseable.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(width.Narrow.String(s))
	if s == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	if t, ok := parseEraDate(s); ok {
		return &t
	}
	return nil
}

func parseEraDate(s string) (time.Time, bool) {
	if eraCompact.MatchString(s) {
		t, err := era.Parse(s)
		return t, err == nil
	}

	var code int
	var y, m, d string
	if g := eraLetterDate.FindStringSubmatch(s); g != nil {
		code = eraCode(func(e era.Era) bool { return e.Letter == g[1] })
		y, m, d = g[2], g[3], g[4]
	} else if g := eraNameDate.FindStringSubmatch(s); g != nil {
		code = eraCode(func(e era.Era) bool { return e.Name == g[1] })
		y, m, d = g[2], g[3], g[4]
		if y == "元" {
			y = "1"
		}
	} else {
		return time.Time{}, false
	}

	var yy, mm, dd int
	if _, err := fmt.Sscanf(y+" "+m+" "+d, "%d %d %d", &yy, &mm, &dd); err != nil {
		return time.Time{}, false
	}
	t, err := era.Parse(fmt.Sprintf("%d%02d%02d%02d", code, yy, mm, dd))
	return t, err == nil
}

func eraCode(match func(era.Era) bool) int {
	for _, e := range era.Eras {
		if match(e) {
			return e.Code
		}
	}
	return 0
}
