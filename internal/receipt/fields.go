package receipt

import (
	"strconv"
	"strings"
	"time"

	"github.com/gyeh/receiptgen/internal/claimerr"
	"github.com/gyeh/receiptgen/internal/era"
	"github.com/gyeh/receiptgen/internal/sjis"
)

// Num zero-left-pads v to width digits.
func Num(field string, v int64, width int) (string, error) {
	if v < 0 {
		return "", claimerr.Field(field, strconv.FormatInt(v, 10), "negative value in numeric field")
	}
	s := strconv.FormatInt(v, 10)
	if len(s) > width {
		return "", claimerr.Field(field, s, "value exceeds %d digits", width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}

// Digits zero-left-pads a code made of ASCII digits to width.
func Digits(field, s string, width int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", claimerr.Field(field, s, "required numeric field is empty")
	}
	if !isDigits(s) {
		return "", claimerr.Field(field, s, "non-numeric value in numeric field")
	}
	if len(s) > width {
		return "", claimerr.Field(field, s, "value exceeds %d digits", width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}

// OptDigits is Digits but yields an empty field for an empty value.
func OptDigits(field, s string, width int) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return Digits(field, s, width)
}

// Alpha validates a printable-ASCII value of at most width bytes. It is not
// padded.
func Alpha(field, s string, width int) (string, error) {
	s = strings.TrimSpace(s)
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e || s[i] == ',' {
			return "", claimerr.Field(field, s, "alphanumeric field contains %q", s[i])
		}
	}
	if len(s) > width {
		return "", claimerr.Field(field, s, "value exceeds %d characters", width)
	}
	return s, nil
}

// Text sanitizes free text and caps it at max Shift_JIS bytes.
func Text(s string, max int) string {
	return sjis.Truncate(sjis.Sanitize(strings.TrimSpace(s)), max)
}

// Fixed is Text right-padded with spaces to exactly width Shift_JIS bytes.
func Fixed(s string, width int) string {
	t := Text(s, width)
	return t + strings.Repeat(" ", width-sjis.ByteLen(t))
}

// Date renders t as YYYYMMDD, or an empty field for the zero time.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("20060102")
}

// YearMonth renders YYYYMM.
func YearMonth(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("200601")
}

// EraDate renders t in era display form, or an empty field for the zero time.
func EraDate(field string, t time.Time) (string, error) {
	if t.IsZero() {
		return "", nil
	}
	s, err := era.Display(t)
	if err != nil {
		return "", claimerr.Field(field, t.Format("2006-01-02"), "%v", err)
	}
	return s, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// fieldWriter accumulates fields and keeps the first error, so record
// builders read as a flat list of fields.
type fieldWriter struct {
	fields []string
	err    error
}

func (w *fieldWriter) add(s string) {
	w.fields = append(w.fields, s)
}

func (w *fieldWriter) addErr(s string, err error) {
	if err != nil && w.err == nil {
		w.err = err
	}
	w.fields = append(w.fields, s)
}

func (w *fieldWriter) num(field string, v int64, width int) {
	w.addErr(Num(field, v, width))
}

func (w *fieldWriter) digits(field, s string, width int) {
	w.addErr(Digits(field, s, width))
}

func (w *fieldWriter) optDigits(field, s string, width int) {
	w.addErr(OptDigits(field, s, width))
}

func (w *fieldWriter) alpha(field, s string, width int) {
	w.addErr(Alpha(field, s, width))
}

func (w *fieldWriter) text(s string, max int) {
	w.add(Text(s, max))
}

func (w *fieldWriter) fixed(s string, width int) {
	w.add(Fixed(s, width))
}

func (w *fieldWriter) date(t time.Time) {
	w.add(Date(t))
}

func (w *fieldWriter) eraDate(field string, t time.Time) {
	w.addErr(EraDate(field, t))
}

func (w *fieldWriter) record(typ RecordType) (Record, error) {
	if w.err != nil {
		return Record{}, w.err
	}
	return Record{Type: typ, Fields: w.fields}, nil
}
