package normalize

import (
	"regexp"
	"strings"
)

var nonDigit = regexp.MustCompile(`[^0-9]`)

// NormalizeCode trims whitespace, folds full-width digits, and strips
// everything that is not a digit. Service, staff, location and insurer codes
// are all digit strings on the claim. Returns "" if nothing remains.
func NormalizeCode(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	s = strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
	return nonDigit.ReplaceAllString(s, "")
}
