package master

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// countingResolver records how many times each code was resolved.
type countingResolver struct {
	mu      sync.Mutex
	calls   map[string]int
	entries map[string]Entry
}

func (r *countingResolver) Resolve(_ context.Context, code string) (Entry, error) {
	r.mu.Lock()
	r.calls[code]++
	r.mu.Unlock()
	e, ok := r.entries[code]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

type batchOnly struct {
	countingResolver
	batches int
}

func (b *batchOnly) ResolveMany(_ context.Context, codes []string) (map[string]Entry, error) {
	b.batches++
	out := make(map[string]Entry)
	for _, c := range codes {
		if e, ok := b.entries[c]; ok {
			out[c] = e
		}
	}
	return out, nil
}

func TestPrefetch_ResolvesEachCodeOnce(t *testing.T) {
	r := &countingResolver{
		calls: make(map[string]int),
		entries: map[string]Entry{
			"131000110": {Code: "131000110", Points: 555, Class: ClassVisit},
			"139000010": {Code: "139000010", Points: 1200, Class: ClassBonus},
		},
	}
	codes := []string{"131000110", "131000110", "139000010", "999999999", "131000110", ""}

	tbl, err := Prefetch(context.Background(), r, codes, 4)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	for code, n := range r.calls {
		if n != 1 {
			t.Errorf("code %s resolved %d times, want 1", code, n)
		}
	}
	if len(r.calls) != 3 {
		t.Errorf("distinct codes resolved: got %d, want 3", len(r.calls))
	}
	if tbl.Len() != 2 {
		t.Errorf("table size: got %d, want 2", tbl.Len())
	}
	if !tbl.Missing("999999999") {
		t.Error("999999999 should be recorded as a miss")
	}
	if e, ok := tbl.Lookup("139000010"); !ok || e.Points != 1200 {
		t.Errorf("lookup 139000010: got %+v ok=%v", e, ok)
	}
}

func TestPrefetch_UsesBatchResolver(t *testing.T) {
	r := &batchOnly{countingResolver: countingResolver{
		calls:   make(map[string]int),
		entries: map[string]Entry{"131000110": {Code: "131000110"}},
	}}
	tbl, err := Prefetch(context.Background(), r, []string{"131000110", "131000210"}, 1)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if r.batches != 1 {
		t.Errorf("batch calls: got %d, want 1", r.batches)
	}
	if len(r.calls) != 0 {
		t.Errorf("single Resolve should not be called when batching, got %v", r.calls)
	}
	if !tbl.Missing("131000210") {
		t.Error("131000210 should be a miss")
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (Entry, error) {
	return Entry{}, errors.New("connection reset")
}

func TestPrefetch_PropagatesBackendErrors(t *testing.T) {
	_, err := Prefetch(context.Background(), failingResolver{}, []string{"131000110"}, 2)
	if err == nil {
		t.Fatal("expected backend error to propagate")
	}
}

func TestPrefetch_TablesAreIndependent(t *testing.T) {
	store := NewStore([]Entry{{Code: "131000110", Points: 555}}, time.Time{})
	a, err := Prefetch(context.Background(), store, []string{"131000110"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	changed := NewStore([]Entry{{Code: "131000110", Points: 600}}, time.Time{})
	b, err := Prefetch(context.Background(), changed, []string{"131000110"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	ea, _ := a.Lookup("131000110")
	eb, _ := b.Lookup("131000110")
	if ea.Points != 555 || eb.Points != 600 {
		t.Errorf("tables leaked: a=%d b=%d", ea.Points, eb.Points)
	}
}

func TestStore_ValidityWindow(t *testing.T) {
	old := Entry{Code: "131000110", Points: 555,
		ValidFrom: date(2024, 6, 1), ValidTo: date(2026, 5, 31)}
	cur := Entry{Code: "131000110", Points: 580, ValidFrom: date(2026, 6, 1)}
	s := NewStore([]Entry{old, cur}, date(2025, 4, 1))

	e, err := s.Resolve(context.Background(), "131000110")
	if err != nil || e.Points != 555 {
		t.Fatalf("2025-04: got %+v, %v", e, err)
	}
	e, err = s.At(date(2026, 10, 1)).Resolve(context.Background(), "131000110")
	if err != nil || e.Points != 580 {
		t.Fatalf("2026-10: got %+v, %v", e, err)
	}
	if _, err := s.At(date(2024, 1, 1)).Resolve(context.Background(), "131000110"); !errors.Is(err, ErrNotFound) {
		t.Errorf("before first window: got %v, want ErrNotFound", err)
	}
}

func TestSymbols_RoundTrip(t *testing.T) {
	flags, err := ParseSymbols("101000001")
	if err != nil {
		t.Fatal(err)
	}
	e := Entry{DisplaySymbols: flags}
	if got := e.SymbolString(); got != "139" {
		t.Errorf("SymbolString = %q, want 139", got)
	}
	if got := FormatSymbols(flags); got != "101000001" {
		t.Errorf("FormatSymbols = %q", got)
	}
	if _, err := ParseSymbols("10x"); err == nil {
		t.Error("expected error for malformed flags")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.yaml")
	doc := `service_codes:
  - code: "131000110"
    name: 訪問看護基本療養費(I)
    points: 555
    class: visit
    staff_categories: ["03", "04"]
    same_day_counted: true
    display_symbols: "100000000"
    valid_from: "2024-06-01"
  - code: "139000010"
    name: 緊急訪問看護加算
    points: 265
    class: bonus
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	entries, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	v := entries[0]
	if v.Class != ClassVisit || v.SameDay != SameDayCounted || !v.AllowsStaff("04") || !v.DisplaySymbols[0] {
		t.Errorf("unexpected visit entry: %+v", v)
	}
	if !v.ValidFrom.Equal(date(2024, 6, 1)) {
		t.Errorf("ValidFrom = %v", v.ValidFrom)
	}
	if entries[1].Class != ClassBonus || entries[1].RequiresStaff() {
		t.Errorf("unexpected bonus entry: %+v", entries[1])
	}
}

func TestLoadYAML_UnknownClass(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.yaml")
	os.WriteFile(path, []byte("service_codes:\n  - code: \"1\"\n    class: bogus\n"), 0644)
	if _, err := LoadYAML(path); err == nil {
		t.Fatal("expected error for unknown class")
	}
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}
