package receipt

import (
	"slices"
	"time"

	"github.com/gyeh/receiptgen/internal/claimerr"
)

// Version is one edition of the claim-file format, in force for service
// months from From until the next edition.
type Version struct {
	ID   string
	From time.Time
	// InstructionTypes lists the instruction-type codes accepted on the HJ
	// record and on KS records whose master entry requires one.
	InstructionTypes []string
}

// versions are ordered oldest first.
var versions = []Version{
	{
		ID:               "2024-06",
		From:             time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		InstructionTypes: []string{"01", "02", "03", "04"},
	},
	{
		ID:               "2026-06",
		From:             time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		InstructionTypes: []string{"01", "02", "03", "04", "05"},
	},
}

// Versions returns the known format versions, oldest first.
func Versions() []Version {
	return slices.Clone(versions)
}

// VersionFor returns the format version in force for the service month
// containing t.
func VersionFor(t time.Time) (Version, error) {
	month := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := len(versions) - 1; i >= 0; i-- {
		if !month.Before(versions[i].From) {
			return versions[i], nil
		}
	}
	return Version{}, claimerr.Field("service_month", month.Format("2006-01"),
		"no claim format version covers this service month (earliest %s)", versions[0].ID)
}

// AllowsInstruction reports whether code is a valid instruction type.
func (v Version) AllowsInstruction(code string) bool {
	return slices.Contains(v.InstructionTypes, code)
}
