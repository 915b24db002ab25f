package masterload

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/receiptgen/internal/sql"
)

// FinalizeResult holds metrics from the finalize phase.
type FinalizeResult struct {
	RowsUpserted    int64
	ImportsReplaced int64
	Duration        time.Duration
}

// Finalize merges the staged batch into ref.service_codes, activates the
// import and supersedes older ones in one transaction, then runs ANALYZE.
func Finalize(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, batchID uuid.UUID) (*FinalizeResult, error) {
	start := time.Now()
	var res FinalizeResult

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, embedsql.UpsertServiceCodes, batchID)
		if err != nil {
			return fmt.Errorf("upsert service codes: %w", err)
		}
		res.RowsUpserted = tag.RowsAffected()

		tag, err = tx.Exec(ctx, embedsql.SupersedeImports, batchID)
		if err != nil {
			return fmt.Errorf("supersede imports: %w", err)
		}
		res.ImportsReplaced = tag.RowsAffected()

		if _, err := tx.Exec(ctx, embedsql.UpdateImportStatus, batchID, StatusActive); err != nil {
			return fmt.Errorf("activate import: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int64("rows_upserted", res.RowsUpserted).
		Int64("superseded", res.ImportsReplaced).
		Str("import_batch_id", batchID.String()).
		Msg("import activated")

	if _, err := pool.Exec(ctx, embedsql.AnalyzeServiceCodes); err != nil {
		return nil, fmt.Errorf("analyze service codes: %w", err)
	}
	log.Info().Msg("ANALYZE complete")

	res.Duration = time.Since(start)
	return &res, nil
}
