// Package snapshot reads billing-period snapshots from YAML files.
package snapshot

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/receiptgen/internal/model"
	"github.com/gyeh/receiptgen/internal/normalize"
)

type yamlFacility struct {
	PrefectureCode string `yaml:"prefecture_code"`
	StationCode    string `yaml:"station_code"`
	Name           string `yaml:"name"`
	Phone          string `yaml:"phone"`
}

type yamlPatient struct {
	Name       string `yaml:"name"`
	KanaName   string `yaml:"kana_name"`
	Sex        string `yaml:"sex"`
	BirthDate  string `yaml:"birth_date"`
	PostalCode string `yaml:"postal_code"`
	Address    string `yaml:"address"`
}

type yamlCard struct {
	InsurerNumber string `yaml:"insurer_number"`
	Symbol        string `yaml:"symbol"`
	Number        string `yaml:"number"`
	Branch        string `yaml:"branch"`
	PatientType   int    `yaml:"patient_type"`
	ConfirmedOn   string `yaml:"confirmed_on"`
	BurdenExempt  bool   `yaml:"burden_exempt"`
}

type yamlOrder struct {
	InstitutionPrefecture string `yaml:"institution_prefecture"`
	InstitutionCode       string `yaml:"institution_code"`
	InstitutionName       string `yaml:"institution_name"`
	PhysicianName         string `yaml:"physician_name"`
	InstructionType       string `yaml:"instruction_type"`
	From                  string `yaml:"from"`
	To                    string `yaml:"to"`
	SpecialFrom           string `yaml:"special_from"`
	SpecialTo             string `yaml:"special_to"`
	DiagnosisCode         string `yaml:"diagnosis_code"`
	DiagnosisName         string `yaml:"diagnosis_name"`
	OnsetDate             string `yaml:"onset_date"`
	StatusText            string `yaml:"status_text"`
	ADLCode               string `yaml:"adl_code"`
	LivingCode            string `yaml:"living_code"`
}

type yamlPayer struct {
	ID              string `yaml:"id"`
	Priority        int    `yaml:"priority"`
	MonthlyCap      *int64 `yaml:"monthly_cap"`
	PayerNumber     string `yaml:"payer_number"`
	RecipientNumber string `yaml:"recipient_number"`
}

type yamlVisit struct {
	Date         string `yaml:"date"`
	ServiceCode  string `yaml:"service_code"`
	StaffCode    string `yaml:"staff_code"`
	LocationCode string `yaml:"location_code"`
	Points       int64  `yaml:"points"`
	Payer        string `yaml:"payer"`
}

type yamlBonus struct {
	ServiceCode string `yaml:"service_code"`
	BonusCode   string `yaml:"bonus_code"`
	Points      int64  `yaml:"points"`
	Frequency   string `yaml:"frequency"`
	Payer       string `yaml:"payer"`
	VisitDate   string `yaml:"visit_date"`
	StaffCode   string `yaml:"staff_code"`
}

// yamlSnapshot is the on-disk YAML structure.
type yamlSnapshot struct {
	ServiceMonth  string       `yaml:"service_month"` // YYYY-MM
	Category      string       `yaml:"category"`
	CopaymentRate string       `yaml:"copayment_rate"`
	ClaimDate     string       `yaml:"claim_date"`
	Facility      yamlFacility `yaml:"facility"`
	Patient       yamlPatient  `yaml:"patient"`
	Card          yamlCard     `yaml:"card"`
	Order         yamlOrder    `yaml:"order"`
	Payers        []yamlPayer  `yaml:"payers"`
	Visits        []yamlVisit  `yaml:"visits"`
	Bonuses       []yamlBonus  `yaml:"bonuses"`
}

// LoadFile reads one snapshot from a YAML file.
func LoadFile(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadFiles reads snapshots in the order given; that order becomes the claim
// sequence of a batch file.
func LoadFiles(paths []string) ([]*model.Snapshot, error) {
	out := make([]*model.Snapshot, 0, len(paths))
	for _, p := range paths {
		s, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Parse decodes a YAML snapshot and normalizes its codes, names and dates.
func Parse(data []byte) (*model.Snapshot, error) {
	var ys yamlSnapshot
	if err := yaml.Unmarshal(data, &ys); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	month, err := time.Parse("2006-01", strings.TrimSpace(ys.ServiceMonth))
	if err != nil {
		return nil, fmt.Errorf("service_month %q: want YYYY-MM", ys.ServiceMonth)
	}
	category := model.Medical
	if ys.Category != "" {
		c, ok := model.CategoryByName(ys.Category)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", ys.Category)
		}
		category = c
	}
	rate, err := normalize.ParseRate(ys.CopaymentRate)
	if err != nil {
		return nil, err
	}

	var p parser
	s := &model.Snapshot{
		Year:          month.Year(),
		Month:         int(month.Month()),
		Category:      category,
		CopaymentRate: rate,
		ClaimDate:     p.optDate("claim_date", ys.ClaimDate),
		Facility: model.Facility{
			PrefectureCode: normalize.NormalizeCode(ys.Facility.PrefectureCode),
			StationCode:    normalize.NormalizeCode(ys.Facility.StationCode),
			Name:           strings.TrimSpace(ys.Facility.Name),
			Phone:          strings.TrimSpace(ys.Facility.Phone),
		},
		Patient: model.Patient{
			Name:       normalize.NormalizeName(ys.Patient.Name),
			KanaName:   normalize.NormalizeName(ys.Patient.KanaName),
			Sex:        p.sex(ys.Patient.Sex),
			BirthDate:  p.date("patient.birth_date", ys.Patient.BirthDate),
			PostalCode: normalize.NormalizeCode(ys.Patient.PostalCode),
			Address:    strings.TrimSpace(ys.Patient.Address),
		},
		Card: model.InsuranceCard{
			InsurerNumber: normalize.NormalizeCode(ys.Card.InsurerNumber),
			Symbol:        strings.TrimSpace(ys.Card.Symbol),
			Number:        strings.TrimSpace(ys.Card.Number),
			Branch:        normalize.NormalizeCode(ys.Card.Branch),
			PatientType:   model.PatientType(ys.Card.PatientType),
			ConfirmedOn:   p.optDate("card.confirmed_on", ys.Card.ConfirmedOn),
			BurdenExempt:  ys.Card.BurdenExempt,
		},
		Order: model.DoctorOrder{
			InstitutionPrefecture: normalize.NormalizeCode(ys.Order.InstitutionPrefecture),
			InstitutionCode:       normalize.NormalizeCode(ys.Order.InstitutionCode),
			InstitutionName:       strings.TrimSpace(ys.Order.InstitutionName),
			PhysicianName:         normalize.NormalizeName(ys.Order.PhysicianName),
			InstructionType:       normalize.NormalizeCode(ys.Order.InstructionType),
			From:                  p.optDate("order.from", ys.Order.From),
			To:                    p.optDate("order.to", ys.Order.To),
			SpecialFrom:           p.optDate("order.special_from", ys.Order.SpecialFrom),
			SpecialTo:             p.optDate("order.special_to", ys.Order.SpecialTo),
			DiagnosisCode:         strings.TrimSpace(ys.Order.DiagnosisCode),
			DiagnosisName:         strings.TrimSpace(ys.Order.DiagnosisName),
			OnsetDate:             p.optDate("order.onset_date", ys.Order.OnsetDate),
			StatusText:            strings.TrimSpace(ys.Order.StatusText),
			ADLCode:               normalize.NormalizeCode(ys.Order.ADLCode),
			LivingCode:            normalize.NormalizeCode(ys.Order.LivingCode),
		},
	}

	for _, yp := range ys.Payers {
		s.Payers = append(s.Payers, model.PublicExpensePayer{
			ID:              strings.TrimSpace(yp.ID),
			Priority:        yp.Priority,
			MonthlyCap:      yp.MonthlyCap,
			PayerNumber:     normalize.NormalizeCode(yp.PayerNumber),
			RecipientNumber: normalize.NormalizeCode(yp.RecipientNumber),
		})
	}
	for i, yv := range ys.Visits {
		s.Visits = append(s.Visits, model.VisitCharge{
			Date:         p.date(fmt.Sprintf("visits[%d].date", i), yv.Date),
			ServiceCode:  normalize.NormalizeCode(yv.ServiceCode),
			StaffCode:    normalize.NormalizeCode(yv.StaffCode),
			LocationCode: normalize.NormalizeCode(yv.LocationCode),
			Points:       yv.Points,
			PayerID:      strings.TrimSpace(yv.Payer),
		})
	}
	for i, yb := range ys.Bonuses {
		freq, ok := model.FrequencyByName(yb.Frequency)
		if !ok && p.err == nil {
			p.err = fmt.Errorf("bonuses[%d].frequency: unknown value %q", i, yb.Frequency)
		}
		s.Bonuses = append(s.Bonuses, model.BonusCharge{
			ServiceCode: normalize.NormalizeCode(yb.ServiceCode),
			BonusCode:   strings.TrimSpace(yb.BonusCode),
			Points:      yb.Points,
			Frequency:   freq,
			PayerID:     strings.TrimSpace(yb.Payer),
			VisitDate:   p.optDate(fmt.Sprintf("bonuses[%d].visit_date", i), yb.VisitDate),
			StaffCode:   normalize.NormalizeCode(yb.StaffCode),
		})
	}
	if p.err != nil {
		return nil, p.err
	}
	return s, nil
}

// parser keeps the first conversion error.
type parser struct {
	err error
}

func (p *parser) date(field, v string) time.Time {
	t := normalize.ParseDate(v)
	if t == nil {
		if p.err == nil {
			p.err = fmt.Errorf("%s: unparseable date %q", field, v)
		}
		return time.Time{}
	}
	return *t
}

func (p *parser) optDate(field, v string) time.Time {
	if strings.TrimSpace(v) == "" {
		return time.Time{}
	}
	return p.date(field, v)
}

func (p *parser) sex(v string) model.Sex {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "male", "m", "男":
		return model.Male
	case "2", "female", "f", "女":
		return model.Female
	}
	if p.err == nil {
		p.err = fmt.Errorf("patient.sex: unknown value %q", v)
	}
	return 0
}
