package masterload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/receiptgen/internal/normalize"
	"github.com/gyeh/receiptgen/internal/parquetread"
	embedsql "github.com/gyeh/receiptgen/internal/sql"
)

// PreflightResult holds the context resolved before any row is staged.
type PreflightResult struct {
	FilePath   string
	FileSHA256 string
	FileSize   int64
	// ImportBatchID tags staged rows and the ref.master_imports record. When
	// AlreadyLoaded is set it is the batch of the earlier import.
	ImportBatchID uuid.UUID
	NumRows       int64
	// AlreadyLoaded is true when an active import with the same digest exists
	// and force is off.
	AlreadyLoaded bool
}

// Preflight hashes the file, validates the schema and registers the import.
func Preflight(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, filePath string, force bool) (*PreflightResult, error) {
	start := time.Now()

	sha, err := normalize.FileHash(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight hash: %w", err)
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight stat: %w", err)
	}

	reader, err := parquetread.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight open: %w", err)
	}
	numRows := reader.NumRows()
	reader.Close()

	log.Info().
		Str("file", filepath.Base(filePath)).
		Str("sha256", sha).
		Int64("rows", numRows).
		Dur("duration", time.Since(start)).
		Msg("preflight complete")

	existing, status, err := lookupImport(ctx, pool, sha)
	if err != nil {
		return nil, fmt.Errorf("preflight lookup import: %w", err)
	}
	if existing != uuid.Nil && status == StatusActive && !force {
		return &PreflightResult{
			FilePath:      filePath,
			FileSHA256:    sha,
			FileSize:      stat.Size(),
			ImportBatchID: existing,
			NumRows:       numRows,
			AlreadyLoaded: true,
		}, nil
	}

	batchID := uuid.New()
	if _, err := pool.Exec(ctx, embedsql.RegisterMasterImport,
		batchID, filepath.Base(filePath), sha, stat.Size(), numRows,
	); err != nil {
		return nil, fmt.Errorf("preflight register import: %w", err)
	}

	return &PreflightResult{
		FilePath:      filePath,
		FileSHA256:    sha,
		FileSize:      stat.Size(),
		ImportBatchID: batchID,
		NumRows:       numRows,
	}, nil
}

func lookupImport(ctx context.Context, pool *pgxpool.Pool, sha string) (uuid.UUID, string, error) {
	var (
		id     uuid.UUID
		status string
	)
	err := pool.QueryRow(ctx, embedsql.LookupMasterImport, sha).Scan(&id, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, "", nil
	}
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, status, nil
}
