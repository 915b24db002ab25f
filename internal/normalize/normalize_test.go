package normalize

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
)

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		" 131000110 ": "131000110",
		"１３１０００１１０": "131000110",
		"13-1000-110": "131000110",
		"":            "",
		"abc":         "",
	}
	for in, want := range cases {
		if got := NormalizeCode(in); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2026-04-03", "2026/04/03", "2026/4/3", "20260403", "2026年4月3日",
		"２０２６-０４-０３", "5080403", "R8.4.3", "令和8年4月3日",
	} {
		got := ParseDate(s)
		if got == nil || !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", s, got, want)
		}
	}
	if ParseDate("not a date") != nil {
		t.Error("expected nil for garbage")
	}
	if got := ParseDate("令和元年5月1日"); got == nil || !got.Equal(time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first year of era: %v", got)
	}
	for _, s := range []string{"H31.5.1", "5000101", "S99.1.1"} {
		if got := ParseDate(s); got != nil {
			t.Errorf("ParseDate(%q) = %v, want nil", s, got)
		}
	}
}

func TestParseRate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.1", "0.1"},
		{"10%", "0.1"},
		{"30%", "0.3"},
		{"0", "0"},
	}
	for _, c := range cases {
		got, err := ParseRate(c.in)
		if err != nil {
			t.Fatalf("ParseRate(%q): %v", c.in, err)
		}
		if !got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("ParseRate(%q) = %s, want %s", c.in, got, c.want)
		}
	}
	for _, bad := range []string{"", "1.5", "-0.1", "abc"} {
		if _, err := ParseRate(bad); err == nil {
			t.Errorf("ParseRate(%q): expected error", bad)
		}
	}
}

func TestRoundToTen(t *testing.T) {
	rate := decimal.RequireFromString("0.1")
	cases := []struct {
		amount int64
		rate   decimal.Decimal
		want   int64
	}{
		{10000, rate, 1000},
		{5550, rate, 560},  // 555 -> 56 tens
		{5540, rate, 550},  // 554 -> 55 tens
		{2650, decimal.RequireFromString("0.3"), 800}, // 795 -> 80 tens
		{0, rate, 0},
	}
	for _, c := range cases {
		if got := RoundToTen(c.amount, c.rate); got != c.want {
			t.Errorf("RoundToTen(%d, %s) = %d, want %d", c.amount, c.rate, got, c.want)
		}
	}
}

func TestRatePercent(t *testing.T) {
	if got := RatePercent(decimal.RequireFromString("0.3")); got != 30 {
		t.Errorf("RatePercent = %d, want 30", got)
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  山田   太郎 "); got != "山田　太郎" {
		t.Errorf("NormalizeName = %q", got)
	}
}

func TestToEntry_RoundTrip(t *testing.T) {
	in := master.Entry{
		Code:                    "131000110",
		Name:                    "訪問看護基本療養費",
		Points:                  555,
		Class:                   master.ClassVisit,
		InstructionTypeRequired: true,
		StaffCategories:         []string{"03", "04"},
		SameDay:                 master.SameDayCounted,
		ValidFrom:               time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:                 time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
	}
	in.DisplaySymbols[2] = true

	row := ToMasterRow(in)
	out, err := ToEntry(&row)
	if err != nil {
		t.Fatalf("ToEntry: %v", err)
	}
	if out.Code != in.Code || out.Points != in.Points || out.Class != in.Class ||
		out.SameDay != in.SameDay || out.DisplaySymbols != in.DisplaySymbols ||
		!out.ValidFrom.Equal(in.ValidFrom) || !out.ValidTo.Equal(in.ValidTo) ||
		len(out.StaffCategories) != 2 {
		t.Errorf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestToEntry_Rejects(t *testing.T) {
	bad := []model.MasterRow{
		{ServiceCode: "", Class: "visit", ValidFrom: "2024-06-01"},
		{ServiceCode: "131000110", Class: "nope", ValidFrom: "2024-06-01"},
		{ServiceCode: "131000110", Class: "visit", ValidFrom: "soon"},
		{ServiceCode: "131000110", Class: "visit", ValidFrom: "2024-06-01", DisplaySymbols: "12"},
	}
	for i := range bad {
		if _, err := ToEntry(&bad[i]); err == nil {
			t.Errorf("row %d: expected error", i)
		}
	}
}

func TestToMasterCopyRow(t *testing.T) {
	batch := uuid.New()
	r := ToMasterCopyRow(master.Entry{Code: "139000010", Class: master.ClassBonus}, batch)
	vals := r.CopyValues()
	if len(vals) != len(model.MasterColumns()) {
		t.Fatalf("CopyValues has %d values, columns %d", len(vals), len(model.MasterColumns()))
	}
	if r.StaffCategories == nil {
		t.Error("staff categories should be an empty array, not NULL")
	}
	if r.ValidTo != nil {
		t.Error("open-ended entry should have NULL valid_to")
	}
}

func TestFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claim.csv")
	data := []byte("HM,13\r\n")
	os.WriteFile(path, data, 0644)
	got, err := FileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != BytesHash(data) {
		t.Errorf("FileHash %s != BytesHash %s", got, BytesHash(data))
	}
}
