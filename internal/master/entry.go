// Package master resolves service codes to their regulatory attributes.
//
// Lookups for one generation run go through a Table built by Prefetch, so the
// encoder never performs I/O and never sees data cached by another run.
package master

import (
	"fmt"
	"slices"
	"time"
)

// Class is the record-shape classification of a service code, computed once
// when the entry is resolved.
type Class int

const (
	ClassVisit Class = iota + 1
	ClassBonus
	ClassManagement
)

func (c Class) String() string {
	switch c {
	case ClassVisit:
		return "visit"
	case ClassBonus:
		return "bonus"
	case ClassManagement:
		return "management"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ParseClass parses the on-file class name.
func ParseClass(s string) (Class, error) {
	switch s {
	case "visit":
		return ClassVisit, nil
	case "bonus":
		return ClassBonus, nil
	case "management":
		return ClassManagement, nil
	}
	return 0, fmt.Errorf("unknown service class %q", s)
}

// SameDay is the same-day-count category of a service code.
type SameDay int

const (
	SameDayNone SameDay = iota
	SameDayCounted
)

// Entry is one service-code master record.
type Entry struct {
	Code   string
	Name   string
	Points int64
	Class  Class

	InstructionTypeRequired bool
	// DisplaySymbols holds receipt-display symbol flags 1..9 at indexes 0..8.
	DisplaySymbols  [9]bool
	StaffCategories []string
	SameDay         SameDay
	Incremental     bool

	ValidFrom time.Time
	ValidTo   time.Time // zero when open-ended
}

// ValidOn reports whether the entry is in force on day t.
func (e Entry) ValidOn(t time.Time) bool {
	if !e.ValidFrom.IsZero() && t.Before(e.ValidFrom) {
		return false
	}
	if !e.ValidTo.IsZero() && t.After(e.ValidTo) {
		return false
	}
	return true
}

// RequiresStaff reports whether records for this code carry a staff-category string.
func (e Entry) RequiresStaff() bool {
	return len(e.StaffCategories) > 0
}

// AllowsStaff reports whether staff code s is permitted for this entry.
func (e Entry) AllowsStaff(s string) bool {
	return slices.Contains(e.StaffCategories, s)
}

// SymbolString renders the set display symbols as their digits, e.g. "13".
func (e Entry) SymbolString() string {
	b := make([]byte, 0, 9)
	for i, set := range e.DisplaySymbols {
		if set {
			b = append(b, byte('1'+i))
		}
	}
	return string(b)
}

// ParseSymbols converts a nine-character '0'/'1' flag string.
func ParseSymbols(s string) ([9]bool, error) {
	var out [9]bool
	if s == "" {
		return out, nil
	}
	if len(s) != 9 {
		return out, fmt.Errorf("display symbols must be 9 flags, got %q", s)
	}
	for i := 0; i < 9; i++ {
		switch s[i] {
		case '0':
		case '1':
			out[i] = true
		default:
			return out, fmt.Errorf("display symbols must be 0/1 flags, got %q", s)
		}
	}
	return out, nil
}

// FormatSymbols is the inverse of ParseSymbols.
func FormatSymbols(flags [9]bool) string {
	b := make([]byte, 9)
	for i, set := range flags {
		b[i] = '0'
		if set {
			b[i] = '1'
		}
	}
	return string(b)
}
