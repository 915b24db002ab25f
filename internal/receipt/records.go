// Package receipt encodes apportioned claims into the home-visit nursing
// claim file: fixed-order records of comma-separated fields, CRLF line ends,
// Shift_JIS text.
package receipt

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gyeh/receiptgen/internal/apportion"
	"github.com/gyeh/receiptgen/internal/claimerr"
	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
	"github.com/gyeh/receiptgen/internal/normalize"
)

// RecordType is the two-letter record identifier in field 1.
type RecordType string

const (
	HM RecordType = "HM" // station identity
	RE RecordType = "RE" // claim common
	HO RecordType = "HO" // insurer
	KO RecordType = "KO" // public-expense payer
	SN RecordType = "SN" // qualification confirmation
	JD RecordType = "JD" // visit-day bitmap
	MF RecordType = "MF" // window burden
	IH RecordType = "IH" // institution and physician
	HJ RecordType = "HJ" // instruction
	JS RecordType = "JS" // clinical status
	SY RecordType = "SY" // diagnosis
	RJ RecordType = "RJ" // patient profile
	KS RecordType = "KS" // service
	GO RecordType = "GO" // closing summary
)

// Record is one encoded line before delimiting.
type Record struct {
	Type   RecordType
	Fields []string // excluding the record id
}

// Line joins the record id and fields with the field delimiter.
func (r Record) Line() string {
	return string(r.Type) + "," + strings.Join(r.Fields, ",")
}

// Claim pairs a snapshot with its apportionment.
type Claim struct {
	Snapshot *model.Snapshot
	Result   *apportion.Result
}

// Insurer slot is 1; public-expense payers follow in priority order.
const insurerSlot = 1

// staffOffsets shifts a staff code for the 1st, 2nd and 3rd-plus visit of
// the same service on the same day.
var staffOffsets = [3]int{0, 10, 20}

// Header builds the HM record from the first claim of the file.
func Header(s *model.Snapshot) (Record, error) {
	claimed := s.ClaimDate
	if claimed.IsZero() {
		claimed = s.ServiceMonth().AddDate(0, 1, 0)
	}
	var w fieldWriter
	w.digits("prefecture_code", s.Facility.PrefectureCode, 2)
	w.add("6")
	w.digits("station_code", s.Facility.StationCode, 7)
	w.fixed(s.Facility.Name, 40)
	w.add(claimed.Format("200601"))
	w.alpha("phone", s.Facility.Phone, 15)
	return w.record(HM)
}

// Footer builds the GO record.
func Footer(claims []Claim) (Record, error) {
	var points int64
	for _, c := range claims {
		points += c.Result.TotalPoints
	}
	var w fieldWriter
	w.num("claim_count", int64(len(claims)), 6)
	w.num("total_points", points, 10)
	w.add("99")
	return w.record(GO)
}

// claimBuilder emits the per-patient block RE..KS for one claim.
type claimBuilder struct {
	seq     int
	s       *model.Snapshot
	res     *apportion.Result
	tbl     *master.Table
	version Version
	slots   map[string]int // payer bucket -> slot
}

func newClaimBuilder(seq int, c Claim, tbl *master.Table) (*claimBuilder, error) {
	v, err := VersionFor(c.Snapshot.ServiceMonth())
	if err != nil {
		return nil, err
	}
	slots := map[string]int{apportion.PatientBucket: insurerSlot}
	for i, p := range c.Snapshot.Payers {
		slots[p.ID] = insurerSlot + 1 + i
	}
	return &claimBuilder{seq: seq, s: c.Snapshot, res: c.Result, tbl: tbl, version: v, slots: slots}, nil
}

func (b *claimBuilder) re() (Record, error) {
	s := b.s
	if !s.Card.PatientType.Valid() {
		return Record{}, claimerr.Field("patient_type", strconv.Itoa(int(s.Card.PatientType)), "unknown patient type")
	}
	if s.Category.Digit() == 0 {
		return Record{}, claimerr.Field("insurance_category", s.Category.String(), "unknown insurance category")
	}
	if s.Patient.Sex != model.Male && s.Patient.Sex != model.Female {
		return Record{}, claimerr.Field("sex", strconv.Itoa(int(s.Patient.Sex)), "sex must be 1 or 2")
	}
	kind := fmt.Sprintf("3%d%d%d", min(len(s.Payers)+1, 4), s.Category.Digit(), int(s.Card.PatientType))

	var w fieldWriter
	w.num("claim_seq", int64(b.seq), 6)
	w.digits("receipt_type", kind, 4)
	w.add(YearMonth(s.Year, s.Month))
	w.text(s.Patient.Name, 40)
	w.text(s.Patient.KanaName, 40)
	w.num("sex", int64(s.Patient.Sex), 1)
	w.date(s.Patient.BirthDate)
	w.eraDate("birth_date", s.Patient.BirthDate)
	w.num("copayment_rate", normalize.RatePercent(s.CopaymentRate), 3)
	return w.record(RE)
}

func (b *claimBuilder) ho() (Record, error) {
	c := b.s.Card
	var w fieldWriter
	w.digits("insurer_number", c.InsurerNumber, 8)
	w.fixed(c.Symbol, 38)
	w.fixed(c.Number, 38)
	w.num("visit_days", int64(len(b.visitDays(""))), 2)
	w.num("total_points", b.res.TotalPoints, 8)
	w.num("patient_total", b.res.PatientTotal, 8)
	return w.record(HO)
}

func (b *claimBuilder) ko(p model.PublicExpensePayer) (Record, error) {
	pb, _ := b.res.Payer(p.ID)
	var w fieldWriter
	w.digits("payer_number", p.PayerNumber, 8)
	w.optDigits("recipient_number", p.RecipientNumber, 7)
	w.num("visit_days", int64(len(b.visitDays(p.ID))), 2)
	w.num("points", pb.Points, 8)
	w.num("pre_cap", pb.PreCap, 8)
	w.num("post_cap", pb.PostCap, 8)
	if p.MonthlyCap != nil {
		w.num("monthly_cap", *p.MonthlyCap, 8)
	} else {
		w.add("")
	}
	rec, err := w.record(KO)
	if err != nil {
		return Record{}, withPayer(err, p.ID)
	}
	return rec, nil
}

func (b *claimBuilder) snInsurer() (Record, error) {
	c := b.s.Card
	var w fieldWriter
	w.num("payer_slot", insurerSlot, 1)
	w.add("1")
	w.fixed(c.Number, 38)
	w.optDigits("branch", c.Branch, 2)
	w.date(c.ConfirmedOn)
	return w.record(SN)
}

func (b *claimBuilder) snPayer(p model.PublicExpensePayer) (Record, error) {
	var w fieldWriter
	w.num("payer_slot", int64(b.slots[p.ID]), 1)
	w.add("2")
	w.fixed(p.RecipientNumber, 38)
	w.add("")
	w.date(b.s.Card.ConfirmedOn)
	return w.record(SN)
}

// jd emits the 31-day visit bitmap for one payer slot.
func (b *claimBuilder) jd(slot int, days map[int]bool) (Record, error) {
	var w fieldWriter
	w.num("payer_slot", int64(slot), 1)
	for d := 1; d <= 31; d++ {
		if days[d] {
			w.add("1")
		} else {
			w.add("")
		}
	}
	return w.record(JD)
}

func (b *claimBuilder) mf() (Record, error) {
	var w fieldWriter
	if b.s.Card.BurdenExempt {
		w.add("01")
		w.num("window_amount", 0, 8)
	} else {
		w.add("00")
		w.num("window_amount", b.res.Remainder, 8)
	}
	return w.record(MF)
}

func (b *claimBuilder) ih() (Record, error) {
	o := b.s.Order
	var w fieldWriter
	w.digits("institution_prefecture", o.InstitutionPrefecture, 2)
	w.add("1")
	w.digits("institution_code", o.InstitutionCode, 7)
	w.text(o.InstitutionName, 80)
	w.text(o.PhysicianName, 40)
	return w.record(IH)
}

func (b *claimBuilder) hj() (Record, error) {
	o := b.s.Order
	if o.InstructionType != "" && !b.version.AllowsInstruction(o.InstructionType) {
		return Record{}, claimerr.Field("instruction_type", o.InstructionType,
			"not a valid instruction type for format %s", b.version.ID)
	}
	if !o.From.IsZero() && !o.To.IsZero() && o.To.Before(o.From) {
		return Record{}, claimerr.Field("instruction_to", Date(o.To), "instruction period ends before it starts")
	}
	var w fieldWriter
	w.optDigits("instruction_type", o.InstructionType, 2)
	w.date(o.From)
	w.date(o.To)
	w.date(o.SpecialFrom)
	w.date(o.SpecialTo)
	return w.record(HJ)
}

func (b *claimBuilder) js() (Record, error) {
	var w fieldWriter
	w.optDigits("adl_code", b.s.Order.ADLCode, 1)
	w.text(b.s.Order.StatusText, 500)
	return w.record(JS)
}

func (b *claimBuilder) sy() (Record, error) {
	o := b.s.Order
	var w fieldWriter
	w.alpha("diagnosis_code", o.DiagnosisCode, 7)
	w.text(o.DiagnosisName, 80)
	w.eraDate("onset_date", o.OnsetDate)
	return w.record(SY)
}

func (b *claimBuilder) rj() (Record, error) {
	p := b.s.Patient
	var w fieldWriter
	w.alpha("postal_code", strings.ReplaceAll(p.PostalCode, "-", ""), 7)
	w.text(p.Address, 100)
	w.optDigits("living_code", b.s.Order.LivingCode, 2)
	return w.record(RJ)
}

// service is one KS line: a merged same-day visit group or one bonus.
type service struct {
	date     time.Time
	entry    master.Entry
	points   int64 // unit points
	staff    []string
	location string
	bucket   string
}

// ks builds a KS record. Optional sub-fields are filled only when the master
// entry calls for them; the record shape follows the entry's class.
func (b *claimBuilder) ks(sv service) (Record, error) {
	e := sv.entry
	count := max(len(sv.staff), 1)

	var date, location string
	switch e.Class {
	case master.ClassVisit:
		if sv.date.IsZero() {
			return Record{}, claimerr.Field("visit_date", "", "visit service %s has no date", e.Code)
		}
		date = Date(sv.date)
		loc, err := Digits("location_code", sv.location, 2)
		if err != nil {
			return Record{}, withCode(err, e.Code)
		}
		location = loc
	case master.ClassBonus:
		date = Date(sv.date)
	case master.ClassManagement:
	default:
		return Record{}, claimerr.Field("class", e.Class.String(), "unknown service class for %s", e.Code)
	}

	var w fieldWriter
	w.add(date)
	w.digits("service_code", e.Code, 9)
	w.num("unit_points", sv.points, 7)
	w.num("count", int64(count), 2)

	if e.Incremental {
		w.num("quantity", int64(count), 3)
	} else {
		w.add("")
	}

	if e.RequiresStaff() {
		if len(sv.staff) == 0 {
			return Record{}, &claimerr.Error{Kind: claimerr.InvalidFieldValue, Field: "staff_code",
				ServiceCode: e.Code, Msg: "service requires a staff category"}
		}
		w.addErr(b.staffString(e, sv.staff))
	} else {
		w.add("")
	}

	if e.SameDay == master.SameDayCounted {
		w.num("same_day_code", int64(min(count, 3)), 1)
	} else {
		w.add("")
	}

	if e.InstructionTypeRequired {
		it := b.s.Order.InstructionType
		if !b.version.AllowsInstruction(it) {
			return Record{}, &claimerr.Error{Kind: claimerr.InvalidFieldValue, Field: "instruction_type",
				ServiceCode: e.Code, Value: it, Msg: "service requires a valid instruction type for format " + b.version.ID}
		}
		w.add(it)
	} else {
		w.add("")
	}

	w.add(e.SymbolString())
	w.add(location)
	w.add(b.burdenSlots(sv.bucket))

	rec, err := w.record(KS)
	if err != nil {
		return Record{}, withCode(err, e.Code)
	}
	return rec, nil
}

// staffString concatenates one offset staff code per occurrence.
func (b *claimBuilder) staffString(e master.Entry, staff []string) (string, error) {
	var sb strings.Builder
	for i, code := range staff {
		if !e.AllowsStaff(code) {
			return "", &claimerr.Error{Kind: claimerr.InvalidFieldValue, Field: "staff_code",
				ServiceCode: e.Code, Value: code, Msg: "staff category not permitted for this service"}
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			return "", claimerr.Field("staff_code", code, "non-numeric staff code")
		}
		s, err := Num("staff_code", int64(n+staffOffsets[min(i, len(staffOffsets)-1)]), 2)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// burdenSlots lists the slots sharing the line's cost: the insurer always,
// plus the linked payer.
func (b *claimBuilder) burdenSlots(bucket string) string {
	s := strconv.Itoa(insurerSlot)
	if bucket != apportion.PatientBucket {
		s += strconv.Itoa(b.slots[bucket])
	}
	return s
}

// visitServices merges counted visits into one service per (date, code),
// ordered by date and then by first appearance. One KS record carries a
// single burden slot and unit price, so a merged group must agree on both.
func (b *claimBuilder) visitServices() ([]service, error) {
	type key struct {
		date time.Time
		code string
	}
	idx := make(map[key]int)
	var out []service
	for i, v := range b.s.Visits {
		e, ok := b.tbl.Lookup(v.ServiceCode)
		if !ok {
			continue
		}
		k := key{date: v.Date, code: v.ServiceCode}
		points := apportion.UnitPoints(e, v.Points)
		bucket := b.res.VisitBucket[i]
		if j, ok := idx[k]; ok {
			if out[j].bucket != bucket {
				return nil, &claimerr.Error{Kind: claimerr.InvalidFieldValue, Field: "payer_id",
					ServiceCode: v.ServiceCode, PayerID: bucket,
					Msg: fmt.Sprintf("same-day visits on %s link to different payers", v.Date.Format(time.DateOnly))}
			}
			if out[j].points != points {
				return nil, &claimerr.Error{Kind: claimerr.InvalidFieldValue, Field: "points",
					ServiceCode: v.ServiceCode, Value: strconv.FormatInt(points, 10),
					Msg: fmt.Sprintf("same-day visits on %s differ in points", v.Date.Format(time.DateOnly))}
			}
			out[j].staff = append(out[j].staff, v.StaffCode)
			continue
		}
		idx[k] = len(out)
		out = append(out, service{
			date:     v.Date,
			entry:    e,
			points:   points,
			staff:    []string{v.StaffCode},
			location: v.LocationCode,
			bucket:   bucket,
		})
	}
	slices.SortStableFunc(out, func(x, y service) int {
		return x.date.Compare(y.date)
	})
	return out, nil
}

// bonusServices lists counted bonuses in input order.
func (b *claimBuilder) bonusServices() []service {
	var out []service
	for i, bc := range b.s.Bonuses {
		if !b.res.BonusCounted[i] {
			continue
		}
		e, _ := b.tbl.Lookup(bc.ServiceCode)
		var staff []string
		if bc.StaffCode != "" {
			staff = []string{bc.StaffCode}
		}
		out = append(out, service{
			date:   bc.VisitDate,
			entry:  e,
			points: apportion.UnitPoints(e, bc.Points),
			staff:  staff,
			bucket: b.res.BonusBucket[i],
		})
	}
	return out
}

// visitDays returns the days of the month with a counted visit. An empty
// bucket selects every visit; otherwise only visits attributed to it.
func (b *claimBuilder) visitDays(bucket string) map[int]bool {
	days := make(map[int]bool)
	for i, v := range b.s.Visits {
		if _, ok := b.tbl.Lookup(v.ServiceCode); !ok {
			continue
		}
		if bucket != "" && b.res.VisitBucket[i] != bucket {
			continue
		}
		days[v.Date.Day()] = true
	}
	return days
}

func withCode(err error, code string) error {
	var ce *claimerr.Error
	if errors.As(err, &ce) && ce.ServiceCode == "" {
		cp := *ce
		cp.ServiceCode = code
		return &cp
	}
	return err
}

func withPayer(err error, id string) error {
	var ce *claimerr.Error
	if errors.As(err, &ce) && ce.PayerID == "" {
		cp := *ce
		cp.PayerID = id
		return &cp
	}
	return err
}
