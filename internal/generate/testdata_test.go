package generate

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
	"github.com/gyeh/receiptgen/internal/receipt"
	"github.com/gyeh/receiptgen/internal/snapshot"
)

func TestRun_SampleFiles(t *testing.T) {
	entries, err := master.LoadYAML("../../testdata/master.yaml")
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	snap, err := snapshot.LoadFile("../../testdata/snapshot-2026-04.yaml")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	store := master.NewStore(entries, snap.ServiceMonth())

	opts := Options{PrefetchConcurrency: 2, Concurrency: 1, AppendEOF: true}
	out, err := Run(context.Background(), store, zerolog.Nop(), opts, []*model.Snapshot{snap})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	recs, err := receipt.Parse(out.Data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	counts := make(map[receipt.RecordType]int)
	for _, r := range recs {
		counts[r.Type]++
	}
	if recs[0].Type != receipt.HM || recs[len(recs)-1].Type != receipt.GO {
		t.Errorf("file framed by %s..%s", recs[0].Type, recs[len(recs)-1].Type)
	}
	want := map[receipt.RecordType]int{receipt.KO: 1, receipt.SN: 2, receipt.JD: 2, receipt.KS: 6}
	for typ, n := range want {
		if counts[typ] != n {
			t.Errorf("%s records = %d, want %d", typ, counts[typ], n)
		}
	}
	if len(out.Summary.UnresolvedCodes) != 0 {
		t.Errorf("unresolved: %v", out.Summary.UnresolvedCodes)
	}
}
