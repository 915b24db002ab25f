// Package claimerr defines the error kinds raised while apportioning and
// encoding a claim. Every error names the offending service code, field or
// payer so reference data can be corrected before a retry.
package claimerr

import (
	"fmt"
	"strings"
)

// Kind classifies a claim generation failure.
type Kind int

const (
	UnresolvedServiceCode Kind = iota + 1
	InvalidFieldValue
	PayerPriorityViolation
	CapOverflowUnresolved
	UnlinkedCharge
)

func (k Kind) String() string {
	switch k {
	case UnresolvedServiceCode:
		return "unresolved_service_code"
	case InvalidFieldValue:
		return "invalid_field_value"
	case PayerPriorityViolation:
		return "payer_priority_violation"
	case CapOverflowUnresolved:
		return "cap_overflow_unresolved"
	case UnlinkedCharge:
		return "unlinked_charge"
	default:
		return "unknown"
	}
}

// Error is a claim generation failure with enough context for an operator.
type Error struct {
	Kind        Kind
	ServiceCode string
	Field       string
	PayerID     string
	Value       string
	Msg         string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	var ctx []string
	if e.ServiceCode != "" {
		ctx = append(ctx, "service_code="+e.ServiceCode)
	}
	if e.Field != "" {
		ctx = append(ctx, "field="+e.Field)
	}
	if e.PayerID != "" {
		ctx = append(ctx, "payer="+e.PayerID)
	}
	if e.Value != "" {
		ctx = append(ctx, fmt.Sprintf("value=%q", e.Value))
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// Is reports whether target is an *Error of the same kind, so the sentinels
// below can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is matching.
var (
	ErrUnresolvedServiceCode  = &Error{Kind: UnresolvedServiceCode}
	ErrInvalidFieldValue      = &Error{Kind: InvalidFieldValue}
	ErrPayerPriorityViolation = &Error{Kind: PayerPriorityViolation}
	ErrCapOverflowUnresolved  = &Error{Kind: CapOverflowUnresolved}
	ErrUnlinkedCharge         = &Error{Kind: UnlinkedCharge}
)

// Field returns an InvalidFieldValue error for the named field.
func Field(field, value, format string, args ...any) *Error {
	return &Error{
		Kind:  InvalidFieldValue,
		Field: field,
		Value: value,
		Msg:   fmt.Sprintf(format, args...),
	}
}

// Unresolved returns an UnresolvedServiceCode error.
func Unresolved(code string) *Error {
	return &Error{
		Kind:        UnresolvedServiceCode,
		ServiceCode: code,
		Msg:         "service code not found in master data",
	}
}

// Priority returns a PayerPriorityViolation error for the given payer.
func Priority(payerID, format string, args ...any) *Error {
	return &Error{
		Kind:    PayerPriorityViolation,
		PayerID: payerID,
		Msg:     fmt.Sprintf(format, args...),
	}
}
