package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gyeh/receiptgen/internal/claimerr"
	"github.com/gyeh/receiptgen/internal/exitcode"
	"github.com/gyeh/receiptgen/internal/generate"
	"github.com/gyeh/receiptgen/internal/logging"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a claim file from one or more snapshots",
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringArrayVar(&cfg.SnapshotPaths, "snapshot", nil, "Snapshot YAML file; repeat for a batch file (required)")
	f.StringVar(&cfg.OutPath, "out", "", "Output claim file path (required)")
	f.StringVar(&cfg.MasterYAML, "master", "", "Service-code master YAML file")
	f.StringVar(&cfg.MasterParquet, "master-parquet", "", "Service-code master Parquet file")
	f.BoolVar(&cfg.Force, "force", false, "Overwrite an existing output file")
	_ = generateCmd.MarkFlagRequired("snapshot")
	_ = generateCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.ValidateGenerate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	snaps := loadSnapshots(log)
	resolver, pool := openResolver(ctx, log, snaps[0].ServiceMonth())
	if pool != nil {
		defer pool.Close()
	}

	out, err := generate.Run(ctx, resolver, log, pipelineOptions(), snaps)
	if err != nil {
		var pe *generate.PipelineError
		if errors.As(err, &pe) {
			ev := log.Error().Err(pe.Err).Str("phase", pe.Phase)
			var ce *claimerr.Error
			if errors.As(pe.Err, &ce) {
				ev = ev.Str("kind", ce.Kind.String())
			}
			ev.Msg("generation failed")
			if pool != nil {
				pool.Close()
			}
			os.Exit(exitForPhase(pe.Phase))
		}
		log.Error().Err(err).Msg("generation failed")
		os.Exit(exitcode.EncodeError)
	}

	if err := writeAtomic(cfg.OutPath, out.Data); err != nil {
		log.Error().Err(err).Str("out", cfg.OutPath).Msg("failed to write claim file")
		os.Exit(exitcode.OutputError)
	}

	sum := out.Summary
	sum.OutputPath = cfg.OutPath
	for _, code := range sum.UnresolvedCodes {
		log.Warn().Str("service_code", code).Msg("service code not in master; charges dropped")
	}
	fmt.Printf("Claim file written: %s (%d claims, %d records, %d bytes, sha256 %s)\n",
		sum.OutputPath, sum.Claims, sum.Records, sum.Bytes, sum.OutputSHA256)
	return nil
}

// writeAtomic writes data next to path and renames it into place, so a
// failed run never leaves a truncated claim file behind.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
