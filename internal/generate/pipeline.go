// Package generate runs one claim-file generation: validate the snapshots,
// prefetch master data, apportion and encode each claim, assemble the file.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/receiptgen/internal/apportion"
	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
	"github.com/gyeh/receiptgen/internal/normalize"
	"github.com/gyeh/receiptgen/internal/receipt"
)

// Phase names reported in PipelineError.
const (
	PhaseValidate  = "validate"
	PhasePrefetch  = "prefetch"
	PhaseApportion = "apportion"
	PhaseEncode    = "encode"
	PhaseAssemble  = "assemble"
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

// Options controls one generation run.
type Options struct {
	Apportion           apportion.Options
	PrefetchConcurrency int
	// Concurrency bounds how many claims are apportioned and encoded at once.
	Concurrency int
	AppendEOF   bool
}

// Output is the assembled file and what went into it.
type Output struct {
	Data    []byte
	Claims  []receipt.Claim
	Summary *model.GenerationSummary
}

// Run generates one claim file from snapshots. Several snapshots produce a
// batch file with one station record and one closing summary.
func Run(ctx context.Context, r master.Resolver, log zerolog.Logger, opts Options, snaps []*model.Snapshot) (*Output, error) {
	totalStart := time.Now()
	runID := uuid.New()
	log = log.With().Str("run_id", runID.String()).Logger()

	// Phase 1: Validate
	log.Info().Int("claims", len(snaps)).Msg("validating snapshots")
	if err := Validate(snaps); err != nil {
		return nil, &PipelineError{Phase: PhaseValidate, Err: err}
	}

	// Phase 2: Prefetch
	prefetchStart := time.Now()
	tbl, codes, err := prefetch(ctx, r, opts, snaps)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePrefetch, Err: err}
	}
	prefetchDur := time.Since(prefetchStart)
	log.Info().
		Int("distinct_codes", len(codes)).
		Int("resolved", tbl.Len()).
		Str("duration", prefetchDur.String()).
		Msg("master data prefetched")

	// Phase 3: Apportion + encode, one claim per goroutine
	encodeStart := time.Now()
	claims := make([]receipt.Claim, len(snaps))
	blocks := make([][]receipt.Record, len(snaps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, s := range snaps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := apportion.Compute(s, tbl, opts.Apportion)
			if err != nil {
				return &PipelineError{Phase: PhaseApportion, Err: fmt.Errorf("claim %d: %w", i+1, err)}
			}
			claims[i] = receipt.Claim{Snapshot: s, Result: res}
			blk, err := receipt.EncodeClaim(i+1, claims[i], tbl)
			if err != nil {
				return &PipelineError{Phase: PhaseEncode, Err: fmt.Errorf("claim %d: %w", i+1, err)}
			}
			blocks[i] = blk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var pe *PipelineError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &PipelineError{Phase: PhaseEncode, Err: err}
	}
	encodeDur := time.Since(encodeStart)

	for i, c := range claims {
		res := c.Result
		ev := log.Info().
			Int("claim", i+1).
			Int64("points", res.TotalPoints).
			Int64("patient_total", res.PatientTotal).
			Int("records", len(blocks[i]))
		if len(res.Duplicates) > 0 {
			ev = ev.Int("duplicate_bonuses", len(res.Duplicates))
		}
		ev.Msg("claim encoded")
		if res.DroppedCharges > 0 {
			log.Warn().
				Int("claim", i+1).
				Strs("service_codes", res.Unresolved).
				Int("charges", res.DroppedCharges).
				Msg("dropped charges with unresolved service codes")
		}
		for _, p := range res.Payers {
			if p.Delta == 0 {
				continue
			}
			log.Info().Int("claim", i+1).Str("payer", p.PayerID).Int64("delta", p.Delta).
				Str("reassigned_to", reassignTarget(res.Reassigned[p.PayerID])).Msg("payer cap applied")
		}
	}

	// Phase 4: Assemble
	header, err := receipt.Header(snaps[0])
	if err != nil {
		return nil, &PipelineError{Phase: PhaseAssemble, Err: err}
	}
	footer, err := receipt.Footer(claims)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseAssemble, Err: err}
	}
	records, err := receipt.Compose(header, blocks, footer)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseAssemble, Err: err}
	}
	data, err := receipt.Assemble(records, opts.AppendEOF)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseAssemble, Err: err}
	}

	summary := summarize(runID, snaps, claims, codes, records, data)
	summary.DurationPrefetch = prefetchDur
	summary.DurationEncode = encodeDur
	summary.DurationTotal = time.Since(totalStart)

	log.Info().
		Int("claims", summary.Claims).
		Int("records", summary.Records).
		Int("bytes", summary.Bytes).
		Int64("total_points", summary.TotalPoints).
		Int64("patient_total", summary.PatientTotal).
		Int("dropped_charges", summary.DroppedCharges).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("generation complete")

	return &Output{Data: data, Claims: claims, Summary: summary}, nil
}

// Plan validates, prefetches and apportions without encoding.
func Plan(ctx context.Context, r master.Resolver, log zerolog.Logger, opts Options, snaps []*model.Snapshot) ([]receipt.Claim, error) {
	if err := Validate(snaps); err != nil {
		return nil, &PipelineError{Phase: PhaseValidate, Err: err}
	}
	tbl, codes, err := prefetch(ctx, r, opts, snaps)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePrefetch, Err: err}
	}
	log.Debug().Int("distinct_codes", len(codes)).Int("resolved", tbl.Len()).Msg("master data prefetched")

	claims := make([]receipt.Claim, len(snaps))
	for i, s := range snaps {
		res, err := apportion.Compute(s, tbl, opts.Apportion)
		if err != nil {
			return nil, &PipelineError{Phase: PhaseApportion, Err: fmt.Errorf("claim %d: %w", i+1, err)}
		}
		claims[i] = receipt.Claim{Snapshot: s, Result: res}
	}
	return claims, nil
}

// Validate checks what can be checked before any master data is read.
func Validate(snaps []*model.Snapshot) error {
	if len(snaps) == 0 {
		return fmt.Errorf("no snapshots to generate")
	}
	if err := receipt.ValidateBatch(snaps); err != nil {
		return err
	}
	for i, s := range snaps {
		if err := apportion.ValidatePayers(s.Payers); err != nil {
			return fmt.Errorf("claim %d: %w", i+1, err)
		}
		if _, err := receipt.VersionFor(s.ServiceMonth()); err != nil {
			return fmt.Errorf("claim %d: %w", i+1, err)
		}
	}
	return nil
}

// prefetch resolves every code referenced by any snapshot into one Table
// for the run.
func prefetch(ctx context.Context, r master.Resolver, opts Options, snaps []*model.Snapshot) (*master.Table, []string, error) {
	var codes []string
	for _, s := range snaps {
		codes = append(codes, s.ServiceCodes()...)
	}
	tbl, err := master.Prefetch(ctx, r, codes, opts.PrefetchConcurrency)
	if err != nil {
		return nil, nil, err
	}
	distinct := make(map[string]bool, len(codes))
	var out []string
	for _, c := range codes {
		if !distinct[c] {
			distinct[c] = true
			out = append(out, c)
		}
	}
	return tbl, out, nil
}

func summarize(runID uuid.UUID, snaps []*model.Snapshot, claims []receipt.Claim, codes []string, records []receipt.Record, data []byte) *model.GenerationSummary {
	sum := &model.GenerationSummary{
		RunID:         runID.String(),
		OutputSHA256:  normalize.BytesHash(data),
		ServiceYear:   snaps[0].Year,
		ServiceMonth:  snaps[0].Month,
		Claims:        len(claims),
		Records:       len(records),
		Bytes:         len(data),
		DistinctCodes: len(codes),
	}
	seen := make(map[string]bool)
	for _, c := range claims {
		res := c.Result
		sum.TotalPoints += res.TotalPoints
		sum.PatientTotal += res.PatientTotal
		sum.DroppedCharges += res.DroppedCharges
		sum.DuplicateBonuses += len(res.Duplicates)
		for _, d := range res.CappedDelta {
			sum.CappedDelta += d
		}
		for _, code := range res.Unresolved {
			if !seen[code] {
				seen[code] = true
				sum.UnresolvedCodes = append(sum.UnresolvedCodes, code)
			}
		}
	}
	return sum
}

func reassignTarget(bucket string) string {
	if bucket == apportion.PatientBucket {
		return "patient"
	}
	return bucket
}
