package model

import (
	"time"

	"github.com/google/uuid"
)

// MasterRow mirrors the Parquet schema of the service-code master file
// distributed to stations. Flags are kept in their on-file representation and
// converted during normalization.
type MasterRow struct {
	ServiceCode string `parquet:"service_code"`
	Name        string `parquet:"name"`
	Points      int64  `parquet:"points"`
	// Class is "visit", "bonus" or "management".
	Class string `parquet:"class"`

	InstructionRequired bool    `parquet:"instruction_required"`
	DisplaySymbols      string  `parquet:"display_symbols"` // nine '0'/'1' characters
	StaffCategories     *string `parquet:"staff_categories,optional"` // space-separated 2-digit codes
	SameDayCategory     int32   `parquet:"same_day_category"`
	Incremental         bool    `parquet:"incremental"`

	ValidFrom string  `parquet:"valid_from"`
	ValidTo   *string `parquet:"valid_to,optional"`
}

// MasterCopyRow is the normalized, DB-ready representation of one master entry.
type MasterCopyRow struct {
	ImportBatchID uuid.UUID

	ServiceCode         string
	Name                string
	Points              int64
	Class               int16
	InstructionRequired bool
	DisplaySymbols      string
	StaffCategories     []string
	SameDayCategory     int16
	Incremental         bool
	ValidFrom           time.Time
	ValidTo             *time.Time
}

// MasterColumns returns the ordered column names for COPY into ref.service_codes.
func MasterColumns() []string {
	return []string{
		"import_batch_id",
		"service_code",
		"name",
		"points",
		"class",
		"instruction_required",
		"display_symbols",
		"staff_categories",
		"same_day_category",
		"incremental",
		"valid_from",
		"valid_to",
	}
}

// CopyValues returns the row values in the same order as MasterColumns(),
// suitable for pgx CopyFromSource.
func (r *MasterCopyRow) CopyValues() []any {
	return []any{
		r.ImportBatchID,
		r.ServiceCode,
		r.Name,
		r.Points,
		r.Class,
		r.InstructionRequired,
		r.DisplaySymbols,
		r.StaffCategories,
		r.SameDayCategory,
		r.Incremental,
		r.ValidFrom,
		r.ValidTo,
	}
}
