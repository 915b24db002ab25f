package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/receiptgen/internal/apportion"
	"github.com/gyeh/receiptgen/internal/exitcode"
	"github.com/gyeh/receiptgen/internal/generate"
	"github.com/gyeh/receiptgen/internal/logging"
	"github.com/gyeh/receiptgen/internal/receipt"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run apportionment report (no file written)",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringArrayVar(&cfg.SnapshotPaths, "snapshot", nil, "Snapshot YAML file; repeat for a batch (required)")
	f.StringVar(&cfg.MasterYAML, "master", "", "Service-code master YAML file")
	f.StringVar(&cfg.MasterParquet, "master-parquet", "", "Service-code master Parquet file")
	_ = planCmd.MarkFlagRequired("snapshot")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	snaps := loadSnapshots(log)
	resolver, pool := openResolver(ctx, log, snaps[0].ServiceMonth())
	if pool != nil {
		defer pool.Close()
	}

	claims, err := generate.Plan(ctx, resolver, log, pipelineOptions(), snaps)
	if err != nil {
		var pe *generate.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("plan failed")
			if pool != nil {
				pool.Close()
			}
			os.Exit(exitForPhase(pe.Phase))
		}
		log.Error().Err(err).Msg("plan failed")
		os.Exit(exitcode.EncodeError)
	}

	fmt.Println("=== receiptgen plan ===")
	for i, c := range claims {
		printClaim(i+1, c)
	}
	return nil
}

func printClaim(seq int, c receipt.Claim) {
	s, res := c.Snapshot, c.Result
	v, _ := receipt.VersionFor(s.ServiceMonth())

	fmt.Printf("\nClaim %d: %s\n", seq, describe(s))
	fmt.Printf("Format:        %s\n", v.ID)
	fmt.Printf("Total points:  %d\n", res.TotalPoints)
	fmt.Println("Lines:")
	for _, l := range res.Lines {
		payer := l.Payer
		if payer == apportion.PatientBucket {
			payer = "patient"
		}
		fmt.Printf("  %-10s %-9s ×%-2d %7d pts  burden %7d\n", payer, l.ServiceCode, l.Count, l.Points, l.Burden)
	}
	if len(res.Payers) > 0 {
		fmt.Println("Payers:")
		for _, p := range res.Payers {
			capStr := "none"
			if p.Cap != nil {
				capStr = fmt.Sprintf("%d", *p.Cap)
			}
			fmt.Printf("  %-10s cap %-7s pre %7d  post %7d  delta %6d  received %6d\n",
				p.PayerID, capStr, p.PreCap, p.PostCap, p.Delta, p.Received)
		}
	}
	fmt.Printf("Patient:       %d (bucket %d)\n", res.Remainder, res.PatientBucket)
	fmt.Printf("Line total:    %d\n", res.PatientTotal)
	for _, code := range res.Unresolved {
		fmt.Printf("Unresolved:    %s (dropped)\n", code)
	}
	for _, d := range res.Duplicates {
		fmt.Printf("Duplicate:     %s %s (bonus #%d, already billed this month)\n", d.ServiceCode, d.BonusCode, d.Index+1)
	}
}
