package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
)

// ToEntry converts a Parquet-read MasterRow into a master Entry.
func ToEntry(row *model.MasterRow) (master.Entry, error) {
	code := NormalizeCode(row.ServiceCode)
	if code == "" {
		return master.Entry{}, fmt.Errorf("service_code %q is not a digit code", row.ServiceCode)
	}
	class, err := master.ParseClass(strings.ToLower(strings.TrimSpace(row.Class)))
	if err != nil {
		return master.Entry{}, fmt.Errorf("service_code %s: %w", code, err)
	}
	symbols, err := master.ParseSymbols(strings.TrimSpace(row.DisplaySymbols))
	if err != nil {
		return master.Entry{}, fmt.Errorf("service_code %s: %w", code, err)
	}
	from := ParseDate(row.ValidFrom)
	if from == nil {
		return master.Entry{}, fmt.Errorf("service_code %s: unparseable valid_from %q", code, row.ValidFrom)
	}

	e := master.Entry{
		Code:                    code,
		Name:                    strings.TrimSpace(row.Name),
		Points:                  row.Points,
		Class:                   class,
		InstructionTypeRequired: row.InstructionRequired,
		DisplaySymbols:          symbols,
		StaffCategories:         splitStaff(row.StaffCategories),
		Incremental:             row.Incremental,
		ValidFrom:               *from,
	}
	if row.SameDayCategory > 0 {
		e.SameDay = master.SameDayCounted
	}
	if row.ValidTo != nil {
		if to := ParseDate(*row.ValidTo); to != nil {
			e.ValidTo = *to
		}
	}
	return e, nil
}

// ToMasterCopyRow converts a master Entry into a DB-ready row tagged with the
// import batch.
func ToMasterCopyRow(e master.Entry, batchID uuid.UUID) *model.MasterCopyRow {
	r := &model.MasterCopyRow{
		ImportBatchID:       batchID,
		ServiceCode:         e.Code,
		Name:                e.Name,
		Points:              e.Points,
		Class:               int16(e.Class),
		InstructionRequired: e.InstructionTypeRequired,
		DisplaySymbols:      master.FormatSymbols(e.DisplaySymbols),
		StaffCategories:     e.StaffCategories,
		SameDayCategory:     int16(e.SameDay),
		Incremental:         e.Incremental,
		ValidFrom:           e.ValidFrom,
	}
	if r.StaffCategories == nil {
		r.StaffCategories = []string{}
	}
	if !e.ValidTo.IsZero() {
		to := e.ValidTo
		r.ValidTo = &to
	}
	return r
}

// ToMasterRow is the inverse of ToEntry, used when writing master fixtures.
func ToMasterRow(e master.Entry) model.MasterRow {
	row := model.MasterRow{
		ServiceCode:         e.Code,
		Name:                e.Name,
		Points:              e.Points,
		Class:               e.Class.String(),
		InstructionRequired: e.InstructionTypeRequired,
		DisplaySymbols:      master.FormatSymbols(e.DisplaySymbols),
		SameDayCategory:     int32(e.SameDay),
		Incremental:         e.Incremental,
		ValidFrom:           formatDay(e.ValidFrom),
	}
	if len(e.StaffCategories) > 0 {
		s := strings.Join(e.StaffCategories, " ")
		row.StaffCategories = &s
	}
	if !e.ValidTo.IsZero() {
		s := formatDay(e.ValidTo)
		row.ValidTo = &s
	}
	return row
}

func splitStaff(v *string) []string {
	if v == nil {
		return nil
	}
	var out []string
	for _, f := range strings.Fields(*v) {
		if c := NormalizeCode(f); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "2000-01-01"
	}
	return t.Format("2006-01-02")
}
