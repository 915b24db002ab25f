package normalize

import (
	"regexp"
	"strings"
)

var multiSpace = regexp.MustCompile(`[\s　]+`)

// NormalizeName collapses runs of ASCII and ideographic whitespace into a
// single ideographic space and trims the ends. Names on the claim separate
// family and given names with U+3000.
func NormalizeName(v string) string {
	s := strings.Trim(v, " \t\r\n　")
	if s == "" {
		return ""
	}
	return multiSpace.ReplaceAllString(s, "　")
}
