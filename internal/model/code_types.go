package model

import "fmt"

// InsuranceCategory selects which insurance scheme the claim is billed under.
type InsuranceCategory int

const (
	Medical InsuranceCategory = iota + 1
	LongTermCare
)

// AllCategories lists the supported insurance categories in canonical order.
var AllCategories = []InsuranceCategory{Medical, LongTermCare}

func (c InsuranceCategory) String() string {
	switch c {
	case Medical:
		return "medical"
	case LongTermCare:
		return "long_term_care"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Digit is the category digit used in the receipt type code.
func (c InsuranceCategory) Digit() int {
	switch c {
	case Medical:
		return 1
	case LongTermCare:
		return 3
	default:
		return 0
	}
}

// CategoryByName returns the InsuranceCategory for the given name, or ok=false.
func CategoryByName(name string) (InsuranceCategory, bool) {
	for _, c := range AllCategories {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// Frequency is the frequency-limit category of a bonus charge.
type Frequency int

const (
	Unrestricted Frequency = iota
	MonthlyOnce
)

func (f Frequency) String() string {
	if f == MonthlyOnce {
		return "monthly_once"
	}
	return "unrestricted"
}

// FrequencyByName parses "monthly_once" or "unrestricted" (empty means unrestricted).
func FrequencyByName(name string) (Frequency, bool) {
	switch name {
	case "", "unrestricted":
		return Unrestricted, true
	case "monthly_once":
		return MonthlyOnce, true
	}
	return 0, false
}

// Sex codes as printed on the claim.
type Sex int

const (
	Male   Sex = 1
	Female Sex = 2
)

// PatientType is the last digit of the receipt type code.
type PatientType int

const (
	PatientInsured   PatientType = 2 // 本人
	PatientPreschool PatientType = 4 // 未就学者
	PatientFamily    PatientType = 6 // 家族
	PatientElderly   PatientType = 8 // 高齢受給者
	PatientElderly7  PatientType = 0 // 高齢受給者 7割
)

// Valid reports whether p is one of the defined patient types.
func (p PatientType) Valid() bool {
	switch p {
	case PatientInsured, PatientPreschool, PatientFamily, PatientElderly, PatientElderly7:
		return true
	}
	return false
}
