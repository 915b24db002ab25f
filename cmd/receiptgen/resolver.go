package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/receiptgen/internal/apportion"
	"github.com/gyeh/receiptgen/internal/db"
	"github.com/gyeh/receiptgen/internal/exitcode"
	"github.com/gyeh/receiptgen/internal/generate"
	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
	"github.com/gyeh/receiptgen/internal/parquetread"
	"github.com/gyeh/receiptgen/internal/snapshot"
)

// openResolver returns the master source selected by the flags, resolving
// entries in force on day on. The returned pool is nil unless --dsn is used.
func openResolver(ctx context.Context, log zerolog.Logger, on time.Time) (master.Resolver, *pgxpool.Pool) {
	switch {
	case cfg.MasterYAML != "":
		entries, err := master.LoadYAML(cfg.MasterYAML)
		if err != nil {
			log.Error().Err(err).Msg("failed to load master YAML")
			os.Exit(exitcode.ValidationError)
		}
		log.Info().Int("entries", len(entries)).Str("file", cfg.MasterYAML).Msg("master loaded")
		return master.NewStore(entries, on), nil

	case cfg.MasterParquet != "":
		entries, err := parquetread.LoadEntries(cfg.MasterParquet)
		if err != nil {
			log.Error().Err(err).Msg("failed to load master Parquet")
			os.Exit(exitcode.ValidationError)
		}
		log.Info().Int("entries", len(entries)).Str("file", cfg.MasterParquet).Msg("master loaded")
		return master.NewStore(entries, on), nil
	}

	pool, err := db.NewPool(ctx, cfg.DSN, int32(cfg.PrefetchConcurrency))
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	n, err := db.CheckMaster(ctx, pool)
	if err != nil {
		pool.Close()
		log.Error().Err(err).Msg("master check failed")
		os.Exit(exitcode.ResolveError)
	}
	log.Info().Int64("entries", n).Msg("using database master")
	return db.NewMasterStore(pool, on), pool
}

// loadSnapshots reads the --snapshot files in order.
func loadSnapshots(log zerolog.Logger) []*model.Snapshot {
	snaps, err := snapshot.LoadFiles(cfg.SnapshotPaths)
	if err != nil {
		log.Error().Err(err).Msg("failed to load snapshots")
		os.Exit(exitcode.ValidationError)
	}
	return snaps
}

func pipelineOptions() generate.Options {
	return generate.Options{
		Apportion: apportion.Options{
			StrictServiceCodes: cfg.StrictServiceCodes,
			StrictPayerLinks:   cfg.StrictPayerLinks,
		},
		PrefetchConcurrency: cfg.PrefetchConcurrency,
		Concurrency:         cfg.Concurrency,
		AppendEOF:           cfg.AppendEOF,
	}
}

// exitForPhase maps a generation phase to the process exit code.
func exitForPhase(phase string) int {
	switch phase {
	case generate.PhaseValidate:
		return exitcode.ValidationError
	case generate.PhasePrefetch:
		return exitcode.ResolveError
	default:
		return exitcode.EncodeError
	}
}

func describe(s *model.Snapshot) string {
	return fmt.Sprintf("%s %s (%04d-%02d)", s.Card.InsurerNumber, s.Patient.Name, s.Year, s.Month)
}
