package apportion

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyeh/receiptgen/internal/claimerr"
	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
	"github.com/gyeh/receiptgen/internal/normalize"
)

const (
	codeVisit    = "131000110"
	codeVisit2   = "131000210"
	codeEmerg    = "139000010"
	codeMgmt     = "132000110"
	codeVariable = "139999990"
)

func testTable() *master.Table {
	return master.NewTable(map[string]master.Entry{
		codeVisit:    {Code: codeVisit, Points: 500, Class: master.ClassVisit},
		codeVisit2:   {Code: codeVisit2, Points: 555, Class: master.ClassVisit},
		codeEmerg:    {Code: codeEmerg, Points: 265, Class: master.ClassBonus},
		codeMgmt:     {Code: codeMgmt, Points: 767, Class: master.ClassManagement},
		codeVariable: {Code: codeVariable, Points: 0, Class: master.ClassBonus},
	}, nil)
}

func day(d int) time.Time {
	return time.Date(2026, 4, d, 0, 0, 0, 0, time.UTC)
}

func cap64(v int64) *int64 { return &v }

func rate(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func visits(code string, payer string, days ...int) []model.VisitCharge {
	var out []model.VisitCharge
	for _, d := range days {
		out = append(out, model.VisitCharge{Date: day(d), ServiceCode: code, StaffCode: "03", LocationCode: "01", PayerID: payer})
	}
	return out
}

// checkInvariant asserts Σ post-cap payer burdens + remainder == patient total
// == Σ per-line rounded burdens.
func checkInvariant(t *testing.T, r *Result) {
	t.Helper()
	var lines, payers int64
	for _, l := range r.Lines {
		lines += l.Burden
	}
	for _, p := range r.Payers {
		payers += p.PostCap
	}
	if lines != r.PatientTotal {
		t.Errorf("Σ line burdens %d != PatientTotal %d", lines, r.PatientTotal)
	}
	if payers+r.Remainder != r.PatientTotal {
		t.Errorf("Σ post-cap %d + remainder %d != PatientTotal %d", payers, r.Remainder, r.PatientTotal)
	}
}

func TestScenarioA_SameDayVisits(t *testing.T) {
	s := &model.Snapshot{
		Year: 2026, Month: 4,
		Visits:        visits(codeVisit, "", 3, 3),
		CopaymentRate: rate("0.1"),
	}
	r, err := Compute(s, testTable(), Options{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(r.Lines) != 1 {
		t.Fatalf("lines: got %d, want 1", len(r.Lines))
	}
	l := r.Lines[0]
	if l.Count != 2 || l.Subtotal != 10000 {
		t.Errorf("line: count=%d subtotal=%d, want 2 / 10000", l.Count, l.Subtotal)
	}
	// round(10000 × 0.1 / 10) × 10
	if l.Burden != 1000 || r.PatientTotal != 1000 || r.Remainder != 1000 {
		t.Errorf("burden=%d total=%d remainder=%d, want 1000", l.Burden, r.PatientTotal, r.Remainder)
	}
	checkInvariant(t, r)
}

func TestScenarioB_CapOverflowToNextPayer(t *testing.T) {
	days := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	s := &model.Snapshot{
		Year: 2026, Month: 4,
		Visits: visits(codeVisit, "A", days...), // 14 × 500 points -> 70,000 yen
		Payers: []model.PublicExpensePayer{
			{ID: "A", Priority: 1, MonthlyCap: cap64(5000)},
			{ID: "B", Priority: 2},
		},
		CopaymentRate: rate("0.1"),
	}
	r, err := Compute(s, testTable(), Options{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	a, _ := r.Payer("A")
	b, _ := r.Payer("B")
	if a.PreCap != 7000 || a.PostCap != 5000 || a.Delta != 2000 {
		t.Errorf("payer A: pre=%d post=%d delta=%d, want 7000/5000/2000", a.PreCap, a.PostCap, a.Delta)
	}
	if r.CappedDelta["A"] != 2000 {
		t.Errorf("CappedDelta[A] = %d", r.CappedDelta["A"])
	}
	if r.Reassigned["A"] != "B" || b.Received != 2000 || b.PostCap != 2000 {
		t.Errorf("delta reassignment: to=%q B=%+v", r.Reassigned["A"], b)
	}
	checkInvariant(t, r)
}

func TestScenarioB_CapOverflowToPatient(t *testing.T) {
	days := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	s := &model.Snapshot{
		Year: 2026, Month: 4,
		Visits: visits(codeVisit, "A", days...),
		Payers: []model.PublicExpensePayer{
			{ID: "A", Priority: 1, MonthlyCap: cap64(5000)},
			{ID: "B", Priority: 2, MonthlyCap: cap64(10000)},
		},
		CopaymentRate: rate("0.1"),
	}
	r, err := Compute(s, testTable(), Options{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if r.Reassigned["A"] != PatientBucket || r.Remainder != 2000 {
		t.Errorf("reassigned=%q remainder=%d, want patient / 2000", r.Reassigned["A"], r.Remainder)
	}
	b, _ := r.Payer("B")
	if b.PostCap != 0 || b.Received != 0 {
		t.Errorf("capped payer B must not receive overflow: %+v", b)
	}
	checkInvariant(t, r)
}

func TestCapOverflowUnresolved_WhenPatientExempt(t *testing.T) {
	s := &model.Snapshot{
		Visits: visits(codeVisit, "A", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14),
		Payers: []model.PublicExpensePayer{
			{ID: "A", Priority: 1, MonthlyCap: cap64(5000)},
		},
		Card:          model.InsuranceCard{BurdenExempt: true},
		CopaymentRate: rate("0.1"),
	}
	_, err := Compute(s, testTable(), Options{})
	if !errors.Is(err, claimerr.ErrCapOverflowUnresolved) {
		t.Fatalf("got %v, want CapOverflowUnresolved", err)
	}
	var ce *claimerr.Error
	if errors.As(err, &ce) && ce.PayerID != "A" {
		t.Errorf("error should name payer A, got %q", ce.PayerID)
	}
}

func TestCapMonotonicity(t *testing.T) {
	for _, capV := range []int64{0, 500, 1000, 1100, 5000} {
		s := &model.Snapshot{
			Visits:        visits(codeVisit, "", 1, 2), // 1000 points -> burden 1000
			Payers:        []model.PublicExpensePayer{{ID: "A", Priority: 1, MonthlyCap: cap64(capV)}},
			CopaymentRate: rate("0.1"),
		}
		r, err := Compute(s, testTable(), Options{})
		if err != nil {
			t.Fatalf("cap %d: %v", capV, err)
		}
		a, _ := r.Payer("A")
		if a.PostCap > capV {
			t.Errorf("cap %d: post-cap %d exceeds cap", capV, a.PostCap)
		}
		if a.PreCap <= capV && a.PostCap != a.PreCap {
			t.Errorf("cap %d: pre %d within cap but post %d differs", capV, a.PreCap, a.PostCap)
		}
		checkInvariant(t, r)
	}
}

func TestScenarioC_MonthlyOnceDedup(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7} {
		s := &model.Snapshot{CopaymentRate: rate("0.3")}
		for i := 0; i < n; i++ {
			s.Bonuses = append(s.Bonuses, model.BonusCharge{
				ServiceCode: codeEmerg, BonusCode: "EMERG", Frequency: model.MonthlyOnce, VisitDate: day(i + 1),
			})
		}
		r, err := Compute(s, testTable(), Options{})
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(r.Lines) != 1 || r.Lines[0].Count != 1 || r.Lines[0].Points != 265 {
			t.Errorf("n=%d: lines %+v, want one line of 265 points", n, r.Lines)
		}
		if len(r.Duplicates) != n-1 {
			t.Errorf("n=%d: duplicates %d, want %d", n, len(r.Duplicates), n-1)
		}
		if !r.BonusCounted[0] {
			t.Errorf("n=%d: first occurrence must be counted", n)
		}
		for i := 1; i < n; i++ {
			if r.BonusCounted[i] {
				t.Errorf("n=%d: occurrence %d must not be counted", n, i)
			}
		}
	}
}

func TestUnrestrictedBonusCountsEveryOccurrence(t *testing.T) {
	s := &model.Snapshot{
		Bonuses: []model.BonusCharge{
			{ServiceCode: codeEmerg, Frequency: model.Unrestricted},
			{ServiceCode: codeEmerg, Frequency: model.Unrestricted},
		},
		CopaymentRate: rate("0.1"),
	}
	r, err := Compute(s, testTable(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if r.TotalPoints != 530 || len(r.Duplicates) != 0 {
		t.Errorf("points=%d duplicates=%d, want 530 / 0", r.TotalPoints, len(r.Duplicates))
	}
}

func TestRoundingPerServiceCode(t *testing.T) {
	// 555 points -> 5550 yen -> 555 at 10% -> 560 per code.
	// Rounding the grand total instead would give round(1110)=1110, not 1120.
	s := &model.Snapshot{
		Visits:        append(visits(codeVisit2, "", 1), model.VisitCharge{Date: day(2), ServiceCode: codeVariable, Points: 555}),
		CopaymentRate: rate("0.1"),
	}
	r, err := Compute(s, testTable(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Lines) != 2 {
		t.Fatalf("lines: %d", len(r.Lines))
	}
	for _, l := range r.Lines {
		if want := normalize.RoundToTen(l.Subtotal, s.CopaymentRate); l.Burden != want {
			t.Errorf("code %s: burden %d, want %d", l.ServiceCode, l.Burden, want)
		}
	}
	if r.PatientTotal != 1120 {
		t.Errorf("PatientTotal = %d, want 1120", r.PatientTotal)
	}
	checkInvariant(t, r)
}

func TestRoundingSplitAcrossBuckets(t *testing.T) {
	// 5+5 points -> 100 yen -> 10 at 10%; rounding each bucket alone gives 20.
	s := &model.Snapshot{
		Bonuses: []model.BonusCharge{
			{ServiceCode: codeVariable, Points: 5, Frequency: model.Unrestricted, PayerID: "A"},
			{ServiceCode: codeVariable, Points: 5, Frequency: model.Unrestricted},
		},
		Payers:        []model.PublicExpensePayer{{ID: "A", Priority: 1}},
		CopaymentRate: rate("0.1"),
	}
	r, err := Compute(s, testTable(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Lines) != 2 {
		t.Fatalf("lines: %d", len(r.Lines))
	}
	if r.PatientTotal != 10 {
		t.Errorf("PatientTotal = %d, want 10", r.PatientTotal)
	}
	var sum int64
	for _, l := range r.Lines {
		sum += l.Burden
	}
	if sum != 10 {
		t.Errorf("line burdens sum to %d, want 10", sum)
	}
	// The tie goes to the bucket seen first.
	if r.Lines[0].Payer != "A" || r.Lines[0].Burden != 10 || r.Lines[1].Burden != 0 {
		t.Errorf("split = %+v", r.Lines)
	}
	checkInvariant(t, r)
}

func TestSplitBurden(t *testing.T) {
	cases := []struct {
		burden  int64
		weights []int64
		want    []int64
	}{
		{560, []int64{555}, []int64{560}},
		{10, []int64{5, 5}, []int64{10, 0}},
		{100, []int64{1, 2}, []int64{30, 70}},
		{70, []int64{1, 1, 1}, []int64{30, 20, 20}},
		{0, []int64{0, 0}, []int64{0, 0}},
	}
	for _, c := range cases {
		got := splitBurden(c.burden, c.weights)
		var sum int64
		for i := range got {
			sum += got[i]
			if got[i] != c.want[i] {
				t.Errorf("splitBurden(%d, %v) = %v, want %v", c.burden, c.weights, got, c.want)
				break
			}
		}
		if sum != c.burden {
			t.Errorf("splitBurden(%d, %v) sums to %d", c.burden, c.weights, sum)
		}
	}
}

func TestVariablePointCodeUsesChargePoints(t *testing.T) {
	s := &model.Snapshot{
		Bonuses:       []model.BonusCharge{{ServiceCode: codeVariable, Points: 1234}},
		CopaymentRate: rate("0.1"),
	}
	r, err := Compute(s, testTable(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if r.TotalPoints != 1234 {
		t.Errorf("TotalPoints = %d, want 1234", r.TotalPoints)
	}
}

func TestDefaultPayerAssignment(t *testing.T) {
	cases := []struct {
		name   string
		payers []model.PublicExpensePayer
		want   string
	}{
		{"no payers", nil, PatientBucket},
		{"no capped payer", []model.PublicExpensePayer{{ID: "A", Priority: 1}}, PatientBucket},
		{"first capped payer", []model.PublicExpensePayer{
			{ID: "A", Priority: 1},
			{ID: "B", Priority: 2, MonthlyCap: cap64(10000)},
			{ID: "C", Priority: 3, MonthlyCap: cap64(20000)},
		}, "B"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := &model.Snapshot{Visits: visits(codeVisit, "", 1), Payers: c.payers, CopaymentRate: rate("0.1")}
			r, err := Compute(s, testTable(), Options{})
			if err != nil {
				t.Fatal(err)
			}
			if r.VisitBucket[0] != c.want {
				t.Errorf("bucket = %q, want %q", r.VisitBucket[0], c.want)
			}
		})
	}
}

func TestStrictPayerLinks(t *testing.T) {
	s := &model.Snapshot{
		Visits:        visits(codeVisit, "", 1),
		Payers:        []model.PublicExpensePayer{{ID: "A", Priority: 1}},
		CopaymentRate: rate("0.1"),
	}
	if _, err := Compute(s, testTable(), Options{StrictPayerLinks: true}); !errors.Is(err, claimerr.ErrUnlinkedCharge) {
		t.Errorf("got %v, want UnlinkedCharge", err)
	}
}

func TestUnknownPayerLink(t *testing.T) {
	s := &model.Snapshot{Visits: visits(codeVisit, "Z", 1), CopaymentRate: rate("0.1")}
	if _, err := Compute(s, testTable(), Options{}); !errors.Is(err, claimerr.ErrInvalidFieldValue) {
		t.Errorf("got %v, want InvalidFieldValue", err)
	}
}

func TestUnresolvedServiceCode(t *testing.T) {
	s := &model.Snapshot{
		Visits:        append(visits(codeVisit, "", 1), visits("999999999", "", 2, 3)...),
		CopaymentRate: rate("0.1"),
	}

	r, err := Compute(s, testTable(), Options{})
	if err != nil {
		t.Fatalf("lenient mode: %v", err)
	}
	if len(r.Unresolved) != 1 || r.Unresolved[0] != "999999999" || r.DroppedCharges != 2 {
		t.Errorf("unresolved=%v dropped=%d", r.Unresolved, r.DroppedCharges)
	}
	if r.TotalPoints != 500 {
		t.Errorf("dropped charges must not be billed: points=%d", r.TotalPoints)
	}

	_, err = Compute(s, testTable(), Options{StrictServiceCodes: true})
	var ce *claimerr.Error
	if !errors.As(err, &ce) || ce.Kind != claimerr.UnresolvedServiceCode || ce.ServiceCode != "999999999" {
		t.Errorf("strict mode: got %v", err)
	}
}

func TestValidatePayers(t *testing.T) {
	bad := map[string][]model.PublicExpensePayer{
		"duplicate priority": {{ID: "A", Priority: 1}, {ID: "B", Priority: 1}},
		"out of order":       {{ID: "A", Priority: 2}, {ID: "B", Priority: 1}},
		"priority zero":      {{ID: "A", Priority: 0}},
		"priority five":      {{ID: "A", Priority: 5}},
		"duplicate id":       {{ID: "A", Priority: 1}, {ID: "A", Priority: 2}},
		"too many": {{ID: "A", Priority: 1}, {ID: "B", Priority: 2}, {ID: "C", Priority: 3},
			{ID: "D", Priority: 4}, {ID: "E", Priority: 4}},
	}
	for name, payers := range bad {
		if err := ValidatePayers(payers); !errors.Is(err, claimerr.ErrPayerPriorityViolation) {
			t.Errorf("%s: got %v, want PayerPriorityViolation", name, err)
		}
	}
	if err := ValidatePayers([]model.PublicExpensePayer{{ID: "A", Priority: 1}, {ID: "B", Priority: 3}}); err != nil {
		t.Errorf("gapped but increasing priorities should pass: %v", err)
	}
}

func TestInvalidRate(t *testing.T) {
	s := &model.Snapshot{CopaymentRate: rate("1.5")}
	if _, err := Compute(s, testTable(), Options{}); !errors.Is(err, claimerr.ErrInvalidFieldValue) {
		t.Errorf("got %v, want InvalidFieldValue", err)
	}
}

func TestDeterministic(t *testing.T) {
	s := &model.Snapshot{
		Visits: append(visits(codeVisit, "A", 1, 2, 3), visits(codeVisit2, "B", 4, 5)...),
		Bonuses: []model.BonusCharge{
			{ServiceCode: codeMgmt, Frequency: model.MonthlyOnce},
			{ServiceCode: codeEmerg, Frequency: model.MonthlyOnce, PayerID: "B"},
		},
		Payers: []model.PublicExpensePayer{
			{ID: "A", Priority: 1, MonthlyCap: cap64(1000)},
			{ID: "B", Priority: 2},
		},
		CopaymentRate: rate("0.2"),
	}
	first, err := Compute(s, testTable(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		r, err := Compute(s, testTable(), Options{})
		if err != nil {
			t.Fatal(err)
		}
		if len(r.Lines) != len(first.Lines) {
			t.Fatalf("run %d: line count changed", i)
		}
		for j := range r.Lines {
			if r.Lines[j] != first.Lines[j] {
				t.Fatalf("run %d: line %d changed: %+v vs %+v", i, j, r.Lines[j], first.Lines[j])
			}
		}
	}
	checkInvariant(t, first)
}
