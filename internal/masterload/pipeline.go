// Package masterload imports a service-code master Parquet file into
// ref.service_codes through an unlogged staging table.
package masterload

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/receiptgen/internal/config"
	"github.com/gyeh/receiptgen/internal/model"
)

const (
	PhasePreflight = "preflight"
	PhaseStage     = "stage"
	PhaseFinalize  = "finalize"
)

// Import statuses recorded in ref.master_imports.
const (
	StatusPending    = "pending"
	StatusStaging    = "staging"
	StatusStaged     = "staged"
	StatusActive     = "active"
	StatusSuperseded = "superseded"
	StatusFailed     = "failed"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes the master import: preflight → stage → finalize → cleanup.
func Run(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, cfg *config.Config) (*model.MasterLoadSummary, error) {
	totalStart := time.Now()

	log.Info().Str("file", cfg.MasterFile).Msg("starting preflight")
	pf, err := Preflight(ctx, pool, log, cfg.MasterFile, cfg.Force)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: err}
	}

	if pf.AlreadyLoaded {
		log.Info().
			Str("import_batch_id", pf.ImportBatchID.String()).
			Str("sha256", pf.FileSHA256).
			Msg("master already imported, skipping (use --force to re-import)")
		return &model.MasterLoadSummary{
			FilePath:      pf.FilePath,
			FileSHA256:    pf.FileSHA256,
			ImportBatchID: pf.ImportBatchID.String(),
			AlreadyLoaded: true,
			DurationTotal: time.Since(totalStart),
		}, nil
	}

	log.Info().Msg("starting staging")
	if err := UpdateStatus(ctx, pool, pf.ImportBatchID, StatusStaging); err != nil {
		return nil, &PipelineError{Phase: PhaseStage, Err: err}
	}

	stageResult, err := Stage(ctx, pool, log, pf)
	if err != nil {
		_ = UpdateStatus(ctx, pool, pf.ImportBatchID, StatusFailed)
		_ = Cleanup(ctx, pool, log, pf.ImportBatchID)
		return nil, &PipelineError{Phase: PhaseStage, Err: err}
	}

	if err := UpdateStatus(ctx, pool, pf.ImportBatchID, StatusStaged); err != nil {
		return nil, &PipelineError{Phase: PhaseStage, Err: err}
	}

	log.Info().Msg("finalizing")
	fin, err := Finalize(ctx, pool, log, pf.ImportBatchID)
	if err != nil {
		_ = UpdateStatus(ctx, pool, pf.ImportBatchID, StatusFailed)
		return nil, &PipelineError{Phase: PhaseFinalize, Err: err}
	}

	if !cfg.KeepStaging {
		log.Info().Msg("cleaning up staging")
		if err := Cleanup(ctx, pool, log, pf.ImportBatchID); err != nil {
			log.Warn().Err(err).Msg("staging cleanup failed (non-fatal)")
		}
	}

	summary := &model.MasterLoadSummary{
		FilePath:         pf.FilePath,
		FileSHA256:       pf.FileSHA256,
		ImportBatchID:    pf.ImportBatchID.String(),
		RowsRead:         stageResult.RowsRead,
		RowsStaged:       stageResult.RowsStaged,
		RowsRejected:     stageResult.RowsRejected,
		RowsUpserted:     fin.RowsUpserted,
		ImportsReplaced:  fin.ImportsReplaced,
		DurationStage:    stageResult.Duration,
		DurationFinalize: fin.Duration,
		DurationTotal:    time.Since(totalStart),
	}

	log.Info().
		Int64("rows_read", summary.RowsRead).
		Int64("rows_staged", summary.RowsStaged).
		Int64("rows_upserted", summary.RowsUpserted).
		Int64("rows_rejected", summary.RowsRejected).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("master load complete")

	return summary, nil
}
