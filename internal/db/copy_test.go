package db

import (
	"testing"

	"github.com/gyeh/receiptgen/internal/model"
)

func TestChannelSource(t *testing.T) {
	ch := make(chan *model.MasterCopyRow, 2)
	ch <- &model.MasterCopyRow{ServiceCode: "131000110"}
	ch <- &model.MasterCopyRow{ServiceCode: "139000010"}
	close(ch)

	src := NewChannelSource(ch)
	var codes []string
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			t.Fatal(err)
		}
		if len(vals) != len(model.MasterColumns()) {
			t.Fatalf("got %d values for %d columns", len(vals), len(model.MasterColumns()))
		}
		codes = append(codes, vals[1].(string))
	}
	if src.Err() != nil {
		t.Fatalf("Err: %v", src.Err())
	}
	if src.Rows() != 2 || codes[0] != "131000110" || codes[1] != "139000010" {
		t.Errorf("rows=%d codes=%v", src.Rows(), codes)
	}
}

func TestChannelSource_NilRow(t *testing.T) {
	ch := make(chan *model.MasterCopyRow, 1)
	ch <- nil
	close(ch)

	src := NewChannelSource(ch)
	if src.Next() {
		t.Fatal("nil row accepted")
	}
	if src.Err() == nil {
		t.Fatal("expected error for nil row")
	}
}
