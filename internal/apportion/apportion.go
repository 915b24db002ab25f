// Package apportion splits a billing period's charges between the patient and
// the public-expense payers.
//
// Burdens are rounded to 10 yen once per service code before they are summed,
// matching the figures shown to the patient elsewhere. A code billed to
// several buckets has its rounded burden split between them by points. Payer
// caps are applied once, in priority order; the overflow moves to the next
// uncapped payer or, failing that, to the patient.
package apportion

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/gyeh/receiptgen/internal/claimerr"
	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
	"github.com/gyeh/receiptgen/internal/normalize"
)

// PatientBucket is the bucket key for burden billed directly to the patient.
const PatientBucket = ""

// Options control how data-quality faults are surfaced.
type Options struct {
	// StrictServiceCodes turns an unresolved service code into an
	// UnresolvedServiceCode error instead of dropping the charge.
	StrictServiceCodes bool
	// StrictPayerLinks rejects charges with no payer link when payers exist,
	// instead of defaulting them to the first capped payer.
	StrictPayerLinks bool
}

// Line is the aggregate of one service code within one payer bucket.
type Line struct {
	Payer       string // PatientBucket or a payer ID
	ServiceCode string
	Count       int
	UnitPoints  int64
	Points      int64 // sum of points across contributing charges
	Subtotal    int64 // Points × 10 yen
	Burden      int64 // share of the code's rounded burden
}

// PayerBurden is one public-expense payer's share before and after capping.
type PayerBurden struct {
	PayerID  string
	Priority int
	Cap      *int64
	Points   int64
	PreCap   int64
	// Delta is the amount clamped off by the cap.
	Delta int64
	// Received is overflow reassigned to this payer from a capped payer.
	Received int64
	// PostCap is min(PreCap, Cap) for capped payers, PreCap + Received otherwise.
	PostCap int64
}

// Duplicate is a monthly-once bonus occurrence that added no charge.
type Duplicate struct {
	Index       int // index into Snapshot.Bonuses
	ServiceCode string
	BonusCode   string
}

// Result is the ApportionmentResult for one snapshot.
type Result struct {
	Lines  []Line
	Payers []PayerBurden // in priority order

	// CappedDelta maps payer ID to the amount its cap clamped off.
	CappedDelta map[string]int64
	// Reassigned maps a capped payer ID to where its delta went
	// (a payer ID, or PatientBucket).
	Reassigned map[string]string

	PatientBucket int64 // burden attributed to the patient before reassignment
	Remainder     int64 // PatientBucket plus deltas reassigned to the patient
	PatientTotal  int64 // Σ line burdens
	TotalPoints   int64

	Duplicates []Duplicate
	// Unresolved lists service codes dropped because the master had no entry.
	Unresolved []string
	// DroppedCharges counts visit and bonus charges dropped with them.
	DroppedCharges int
	// BonusCounted marks, by index into Snapshot.Bonuses, bonuses that
	// contributed to a line.
	BonusCounted []bool
	// VisitBucket and BonusBucket hold, by charge index, the payer bucket
	// each counted charge was attributed to.
	VisitBucket []string
	BonusBucket []string
}

// Payer returns the burden entry for payer id.
func (r *Result) Payer(id string) (PayerBurden, bool) {
	for _, p := range r.Payers {
		if p.PayerID == id {
			return p, true
		}
	}
	return PayerBurden{}, false
}

// BucketPoints returns the points attributed to a bucket.
func (r *Result) BucketPoints(bucket string) int64 {
	var n int64
	for _, l := range r.Lines {
		if l.Payer == bucket {
			n += l.Points
		}
	}
	return n
}

type lineKey struct {
	payer string
	code  string
}

// Compute runs the apportionment for one snapshot. tbl must contain the
// prefetched entries for every code the snapshot references.
func Compute(s *model.Snapshot, tbl *master.Table, opts Options) (*Result, error) {
	if err := ValidatePayers(s.Payers); err != nil {
		return nil, err
	}
	if err := validateRate(s.CopaymentRate); err != nil {
		return nil, err
	}
	defaultBucket := defaultPayer(s.Payers)

	res := &Result{
		CappedDelta:  make(map[string]int64),
		Reassigned:   make(map[string]string),
		BonusCounted: make([]bool, len(s.Bonuses)),
		VisitBucket:  make([]string, len(s.Visits)),
		BonusBucket:  make([]string, len(s.Bonuses)),
	}

	lines := make(map[lineKey]*Line)
	var order []lineKey
	unresolved := make(map[string]bool)

	add := func(bucket, code string, points int64) {
		k := lineKey{payer: bucket, code: code}
		l, ok := lines[k]
		if !ok {
			l = &Line{Payer: bucket, ServiceCode: code, UnitPoints: points}
			lines[k] = l
			order = append(order, k)
		}
		l.Count++
		l.Points += points
	}

	resolve := func(code string) (master.Entry, bool, error) {
		e, ok := tbl.Lookup(code)
		if ok {
			return e, true, nil
		}
		if opts.StrictServiceCodes {
			return master.Entry{}, false, claimerr.Unresolved(code)
		}
		if !unresolved[code] {
			unresolved[code] = true
			res.Unresolved = append(res.Unresolved, code)
		}
		res.DroppedCharges++
		return master.Entry{}, false, nil
	}

	for i, v := range s.Visits {
		e, ok, err := resolve(v.ServiceCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		bucket, err := bucketFor(s, v.PayerID, v.ServiceCode, defaultBucket, opts)
		if err != nil {
			return nil, err
		}
		res.VisitBucket[i] = bucket
		add(bucket, v.ServiceCode, UnitPoints(e, v.Points))
	}

	seenOnce := make(map[string]bool)
	for i, b := range s.Bonuses {
		e, ok, err := resolve(b.ServiceCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if b.Frequency == model.MonthlyOnce {
			if seenOnce[b.ServiceCode] {
				res.Duplicates = append(res.Duplicates, Duplicate{Index: i, ServiceCode: b.ServiceCode, BonusCode: b.BonusCode})
				continue
			}
			seenOnce[b.ServiceCode] = true
		}
		bucket, err := bucketFor(s, b.PayerID, b.ServiceCode, defaultBucket, opts)
		if err != nil {
			return nil, err
		}
		res.BonusCounted[i] = true
		res.BonusBucket[i] = bucket
		add(bucket, b.ServiceCode, UnitPoints(e, b.Points))
	}

	byPayer := make(map[string]*PayerBurden, len(s.Payers))
	for _, p := range s.Payers {
		res.Payers = append(res.Payers, PayerBurden{PayerID: p.ID, Priority: p.Priority, Cap: p.MonthlyCap})
	}
	for i := range res.Payers {
		byPayer[res.Payers[i].PayerID] = &res.Payers[i]
	}

	// Round once per service code, then split the rounded burden over the
	// code's buckets.
	byCode := make(map[string][]*Line)
	var codes []string
	for _, k := range order {
		if _, ok := byCode[k.code]; !ok {
			codes = append(codes, k.code)
		}
		byCode[k.code] = append(byCode[k.code], lines[k])
	}
	for _, code := range codes {
		group := byCode[code]
		var points int64
		weights := make([]int64, len(group))
		for i, l := range group {
			l.Subtotal = l.Points * 10
			points += l.Points
			weights[i] = l.Points
		}
		burden := normalize.RoundToTen(points*10, s.CopaymentRate)
		for i, share := range splitBurden(burden, weights) {
			group[i].Burden = share
		}
	}

	for _, k := range order {
		l := lines[k]
		res.Lines = append(res.Lines, *l)
		res.TotalPoints += l.Points
		res.PatientTotal += l.Burden
		if k.payer == PatientBucket {
			res.PatientBucket += l.Burden
			continue
		}
		pb := byPayer[k.payer]
		pb.PreCap += l.Burden
		pb.Points += l.Points
	}

	res.Remainder = res.PatientBucket
	for i := range res.Payers {
		res.Payers[i].PostCap = res.Payers[i].PreCap
	}
	if err := applyCaps(res, s.Card.BurdenExempt); err != nil {
		return nil, err
	}
	return res, nil
}

// applyCaps clamps each capped payer once, in priority order, and moves the
// overflow to the next uncapped payer or to the patient.
func applyCaps(res *Result, patientExempt bool) error {
	for i := range res.Payers {
		p := &res.Payers[i]
		if p.Cap == nil || p.PreCap <= *p.Cap {
			continue
		}
		p.Delta = p.PreCap - *p.Cap
		p.PostCap = *p.Cap
		res.CappedDelta[p.PayerID] = p.Delta

		target := -1
		for j := i + 1; j < len(res.Payers); j++ {
			if res.Payers[j].Cap == nil {
				target = j
				break
			}
		}
		if target >= 0 {
			t := &res.Payers[target]
			t.Received += p.Delta
			t.PostCap += p.Delta
			res.Reassigned[p.PayerID] = t.PayerID
			continue
		}
		if patientExempt {
			return &claimerr.Error{
				Kind:    claimerr.CapOverflowUnresolved,
				PayerID: p.PayerID,
				Value:   decimal.NewFromInt(p.Delta).String(),
				Msg:     "capped overflow has no uncapped payer and the patient is burden-exempt",
			}
		}
		res.Remainder += p.Delta
		res.Reassigned[p.PayerID] = PatientBucket
	}
	return nil
}

// ValidatePayers checks that payers are at most four, uniquely identified,
// and listed in strictly increasing priority within 1..4.
func ValidatePayers(payers []model.PublicExpensePayer) error {
	if len(payers) > 4 {
		return claimerr.Priority("", "at most 4 public-expense payers are allowed, got %d", len(payers))
	}
	ids := make(map[string]bool, len(payers))
	last := 0
	for _, p := range payers {
		if p.ID == "" {
			return claimerr.Priority("", "payer with priority %d has no id", p.Priority)
		}
		if ids[p.ID] {
			return claimerr.Priority(p.ID, "duplicate payer id")
		}
		ids[p.ID] = true
		if p.Priority < 1 || p.Priority > 4 {
			return claimerr.Priority(p.ID, "priority %d outside 1..4", p.Priority)
		}
		if p.Priority <= last {
			return claimerr.Priority(p.ID, "priority %d does not follow %d", p.Priority, last)
		}
		last = p.Priority
		if p.MonthlyCap != nil && *p.MonthlyCap < 0 {
			return &claimerr.Error{Kind: claimerr.InvalidFieldValue, Field: "monthly_cap", PayerID: p.ID,
				Value: decimal.NewFromInt(*p.MonthlyCap).String(), Msg: "negative monthly cap"}
		}
	}
	return nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return claimerr.Field("copayment_rate", rate.String(), "rate must be within [0, 1]")
	}
	return nil
}

// defaultPayer is the bucket for charges with no explicit payer link: the
// first payer in priority order with a cap, else the patient.
func defaultPayer(payers []model.PublicExpensePayer) string {
	i := slices.IndexFunc(payers, model.PublicExpensePayer.HasCap)
	if i < 0 {
		return PatientBucket
	}
	return payers[i].ID
}

func bucketFor(s *model.Snapshot, payerID, code, def string, opts Options) (string, error) {
	if payerID == "" {
		if opts.StrictPayerLinks && len(s.Payers) > 0 {
			return "", &claimerr.Error{Kind: claimerr.UnlinkedCharge, ServiceCode: code,
				Msg: "charge has no payer link"}
		}
		return def, nil
	}
	if _, ok := s.PayerByID(payerID); !ok {
		return "", &claimerr.Error{Kind: claimerr.InvalidFieldValue, Field: "payer_id",
			ServiceCode: code, PayerID: payerID, Msg: "charge links to an unknown payer"}
	}
	return payerID, nil
}

// splitBurden divides a rounded burden between buckets in proportion to
// their points, in whole 10-yen units. Units left after flooring go to the
// largest remainders, earlier buckets first on ties, so the shares always sum
// to burden.
func splitBurden(burden int64, weights []int64) []int64 {
	out := make([]int64, len(weights))
	if len(weights) == 1 {
		out[0] = burden
		return out
	}
	var total int64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return out
	}
	units := burden / 10
	rems := make([]int64, len(weights))
	var given int64
	for i, w := range weights {
		out[i] = units * w / total
		rems[i] = units * w % total
		given += out[i]
	}
	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case rems[a] > rems[b]:
			return -1
		case rems[a] < rems[b]:
			return 1
		}
		return 0
	})
	for _, i := range idx[:units-given] {
		out[i]++
	}
	for i := range out {
		out[i] *= 10
	}
	return out
}

// UnitPoints prefers the master point value; variable-point codes carry a
// zero master value and use the charge's own points.
func UnitPoints(e master.Entry, chargePoints int64) int64 {
	if e.Points > 0 {
		return e.Points
	}
	return chargePoints
}
