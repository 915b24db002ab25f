// mkfixture converts a service-code master YAML file into the Parquet layout
// read by master-load and --master-parquet.
// Usage: go run ./cmd/mkfixture --in testdata/master.yaml --out testdata/master.parquet
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	goparquet "github.com/parquet-go/parquet-go"

	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
	"github.com/gyeh/receiptgen/internal/normalize"
	"github.com/gyeh/receiptgen/internal/parquetread"
)

func main() {
	in := flag.String("in", "testdata/master.yaml", "input master YAML")
	out := flag.String("out", "testdata/master.parquet", "output parquet")
	checkOnly := flag.Bool("check", false, "read --out back and print stats, don't write")
	flag.Parse()

	if *checkOnly {
		entries, err := parquetread.LoadEntries(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", *out, err)
			os.Exit(1)
		}
		printStats(entries)
		return
	}

	entries, err := master.LoadYAML(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load master: %v\n", err)
		os.Exit(1)
	}

	// Stable order keeps fixture bytes reproducible across runs.
	slices.SortStableFunc(entries, func(a, b master.Entry) int {
		if c := strings.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		return a.ValidFrom.Compare(b.ValidFrom)
	})

	rows := make([]model.MasterRow, len(entries))
	for i, e := range entries {
		rows[i] = normalize.ToMasterRow(e)
	}

	outFile, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer outFile.Close()

	writer := goparquet.NewGenericWriter[model.MasterRow](outFile)
	if _, err := writer.Write(rows); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close writer: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d rows to %s\n", len(rows), *out)
	printStats(entries)
}

func printStats(entries []master.Entry) {
	byClass := make(map[master.Class]int)
	var staffed, instructed, incremental int
	for _, e := range entries {
		byClass[e.Class]++
		if e.RequiresStaff() {
			staffed++
		}
		if e.InstructionTypeRequired {
			instructed++
		}
		if e.Incremental {
			incremental++
		}
	}
	fmt.Println("Class distribution:")
	for _, c := range []master.Class{master.ClassVisit, master.ClassBonus, master.ClassManagement} {
		fmt.Printf("  %-12s %d\n", c, byClass[c])
	}
	fmt.Printf("  %-12s %d\n", "staffed", staffed)
	fmt.Printf("  %-12s %d\n", "instruction", instructed)
	fmt.Printf("  %-12s %d\n", "incremental", incremental)
}
