package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/receiptgen/internal/db"
	"github.com/gyeh/receiptgen/internal/exitcode"
	"github.com/gyeh/receiptgen/internal/logging"
	"github.com/gyeh/receiptgen/internal/masterload"
)

var masterLoadCmd = &cobra.Command{
	Use:   "master-load",
	Short: "Load a service-code master Parquet file into the database",
	RunE:  runMasterLoad,
}

func init() {
	f := masterLoadCmd.Flags()
	f.StringVar(&cfg.MasterFile, "file", "", "Path to master Parquet file (required)")
	f.BoolVar(&cfg.Force, "force", false, "Re-import even if file SHA already exists")
	f.BoolVar(&cfg.KeepStaging, "keep-staging", false, "Keep staging rows after finalize")
	_ = masterLoadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(masterLoadCmd)
}

func runMasterLoad(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.ValidateMasterLoad(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN, 2)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	summary, err := masterload.Run(ctx, pool, log, &cfg)
	if err != nil {
		pool.Close()
		var pe *masterload.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("master load failed")
			if pe.Phase == masterload.PhasePreflight {
				os.Exit(exitcode.ValidationError)
			}
			os.Exit(exitcode.LoadError)
		}
		log.Error().Err(err).Msg("master load failed")
		os.Exit(exitcode.LoadError)
	}

	if summary.AlreadyLoaded {
		fmt.Printf("Master already loaded (batch %s)\n", summary.ImportBatchID)
		return nil
	}
	fmt.Printf("Master load complete: %d rows staged, %d service codes upserted, %d rejected (%.1fs)\n",
		summary.RowsStaged, summary.RowsUpserted, summary.RowsRejected, summary.DurationTotal.Seconds())
	return nil
}
