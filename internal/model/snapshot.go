package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the BillingPeriodSnapshot: every fact needed to produce one
// patient's claim for one service month. It is assembled by the caller and
// treated as read-only by every component.
type Snapshot struct {
	Facility Facility
	Patient  Patient
	Year     int
	Month    int
	Category InsuranceCategory

	Visits  []VisitCharge
	Bonuses []BonusCharge
	Payers  []PublicExpensePayer // 0..4, ordered by priority

	Card  InsuranceCard
	Order DoctorOrder

	// CopaymentRate is the patient's share of the total charge, e.g. 0.1 for 10%.
	CopaymentRate decimal.Decimal
	// ClaimDate is the submission date printed on the station record.
	ClaimDate time.Time
}

// ServiceMonth returns the first day of the snapshot's service month in UTC.
func (s *Snapshot) ServiceMonth() time.Time {
	return time.Date(s.Year, time.Month(s.Month), 1, 0, 0, 0, 0, time.UTC)
}

// ServiceCodes returns every service code referenced by the snapshot,
// in first-seen order, without duplicates.
func (s *Snapshot) ServiceCodes() []string {
	seen := make(map[string]bool)
	var codes []string
	add := func(c string) {
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		codes = append(codes, c)
	}
	for _, v := range s.Visits {
		add(v.ServiceCode)
	}
	for _, b := range s.Bonuses {
		add(b.ServiceCode)
	}
	return codes
}

// PayerByID returns the public-expense payer with the given id.
func (s *Snapshot) PayerByID(id string) (PublicExpensePayer, bool) {
	for _, p := range s.Payers {
		if p.ID == id {
			return p, true
		}
	}
	return PublicExpensePayer{}, false
}

// Facility identifies the home-visit nursing station submitting the claim.
type Facility struct {
	PrefectureCode string // 2 digits
	StationCode    string // 7 digits
	Name           string
	Phone          string
}

// Patient holds the demographic fields printed on the claim.
type Patient struct {
	Name       string
	KanaName   string
	Sex        Sex
	BirthDate  time.Time
	PostalCode string
	Address    string
}

// VisitCharge is one billable visit. Several charges on the same date with the
// same service code are repeat same-day visits.
type VisitCharge struct {
	Date         time.Time
	ServiceCode  string
	StaffCode    string // 2-digit staff-qualification code
	LocationCode string // 2-digit visit-location code
	Points       int64
	PayerID      string // optional link to a PublicExpensePayer
}

// BonusCharge is an add-on whose eligibility was decided upstream.
type BonusCharge struct {
	ServiceCode string
	BonusCode   string
	Points      int64
	Frequency   Frequency
	PayerID     string
	VisitDate   time.Time // visit that produced the bonus, zero if monthly
	StaffCode   string
}

// PublicExpensePayer is a subsidizing authority ranked by priority.
type PublicExpensePayer struct {
	ID              string
	Priority        int    // 1..4, 1 is applied first
	MonthlyCap      *int64 // yen, nil when uncapped
	PayerNumber     string // 8 digits
	RecipientNumber string // 7 digits
}

// HasCap reports whether the payer has a monthly cap configured.
func (p PublicExpensePayer) HasCap() bool {
	return p.MonthlyCap != nil
}

// InsuranceCard carries the primary insurance-card attributes.
type InsuranceCard struct {
	InsurerNumber string
	Symbol        string
	Number        string
	Branch        string
	PatientType   PatientType
	ConfirmedOn   time.Time
	// BurdenExempt marks patients with no window burden; capped overflow
	// cannot fall back to them.
	BurdenExempt bool
}

// DoctorOrder carries the physician's visit-instruction attributes.
type DoctorOrder struct {
	InstitutionPrefecture string
	InstitutionCode       string
	InstitutionName       string
	PhysicianName         string

	InstructionType string // 2 digits, domain depends on the claim-format version
	From            time.Time
	To              time.Time
	SpecialFrom     time.Time
	SpecialTo       time.Time

	DiagnosisCode string
	DiagnosisName string
	OnsetDate     time.Time

	StatusText string
	ADLCode    string // 1 digit
	LivingCode string // 2 digits
}
