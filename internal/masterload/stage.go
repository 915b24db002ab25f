package masterload

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/receiptgen/internal/db"
	"github.com/gyeh/receiptgen/internal/model"
	"github.com/gyeh/receiptgen/internal/normalize"
	"github.com/gyeh/receiptgen/internal/parquetread"
	embedsql "github.com/gyeh/receiptgen/internal/sql"
)

const readBatchSize = 1024

// StageResult holds metrics from the staging phase.
type StageResult struct {
	RowsRead     int64
	RowsStaged   int64
	RowsRejected int64
	Duration     time.Duration
}

// Stage streams rows from the Parquet file, normalizes them, and COPY-loads
// them into ref.service_codes_stage via a channel-backed CopyFromSource.
// Rows that fail normalization are logged and skipped.
func Stage(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, pf *PreflightResult) (*StageResult, error) {
	start := time.Now()

	reader, err := parquetread.Open(pf.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stage open: %w", err)
	}
	defer reader.Close()

	// Cancelled once COPY returns so a failed COPY never leaves the producer
	// blocked on a full channel.
	copyCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan *model.MasterCopyRow, readBatchSize)
	errCh := make(chan error, 1)

	var rowsRead, rowsRejected int64

	go func() {
		defer close(ch)
		buf := make([]model.MasterRow, readBatchSize)
		var rowNum int64

		for {
			n, readErr := reader.Read(buf)
			for i := 0; i < n; i++ {
				rowNum++
				rowsRead++

				entry, normErr := normalize.ToEntry(&buf[i])
				if normErr != nil {
					rowsRejected++
					log.Warn().Err(normErr).Int64("row", rowNum).Msg("row rejected")
					continue
				}

				select {
				case ch <- normalize.ToMasterCopyRow(entry, pf.ImportBatchID):
				case <-copyCtx.Done():
					errCh <- copyCtx.Err()
					return
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				errCh <- fmt.Errorf("read parquet at row %d: %w", rowNum, readErr)
				return
			}
		}
		errCh <- nil
	}()

	source := db.NewChannelSource(ch)
	rowsStaged, err := pool.CopyFrom(copyCtx,
		pgx.Identifier{"ref", "service_codes_stage"},
		model.MasterColumns(),
		source,
	)
	if err != nil {
		cancel()
		// Drain so the producer can observe cancellation.
		for range ch {
		}
	}

	prodErr := <-errCh
	if err != nil {
		return nil, fmt.Errorf("stage copy: %w", err)
	}
	if prodErr != nil {
		return nil, fmt.Errorf("stage producer: %w", prodErr)
	}

	dur := time.Since(start)
	log.Info().
		Int64("rows_read", rowsRead).
		Int64("rows_staged", rowsStaged).
		Int64("rows_rejected", rowsRejected).
		Str("duration", dur.String()).
		Msg("staging complete")

	return &StageResult{
		RowsRead:     rowsRead,
		RowsStaged:   rowsStaged,
		RowsRejected: rowsRejected,
		Duration:     dur,
	}, nil
}

// UpdateStatus updates the status of an import batch.
func UpdateStatus(ctx context.Context, pool *pgxpool.Pool, batchID uuid.UUID, status string) error {
	_, err := pool.Exec(ctx, embedsql.UpdateImportStatus, batchID, status)
	return err
}
