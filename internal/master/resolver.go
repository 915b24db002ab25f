package master

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned by a Resolver when the code has no master entry.
var ErrNotFound = errors.New("service code not found")

// Resolver looks up a single service code.
type Resolver interface {
	Resolve(ctx context.Context, code string) (Entry, error)
}

// BatchResolver resolves many codes in one round trip. Codes with no entry are
// simply absent from the returned map.
type BatchResolver interface {
	ResolveMany(ctx context.Context, codes []string) (map[string]Entry, error)
}

// Table is the request-scoped lookup table handed to the encoder. It is
// immutable once built and must not be shared across generation runs.
type Table struct {
	entries map[string]Entry
	misses  map[string]bool
}

// NewTable builds a Table from resolved entries; codes not in entries but
// listed in missing are recorded as misses.
func NewTable(entries map[string]Entry, missing []string) *Table {
	t := &Table{
		entries: make(map[string]Entry, len(entries)),
		misses:  make(map[string]bool, len(missing)),
	}
	for k, v := range entries {
		t.entries[k] = v
	}
	for _, c := range missing {
		if _, ok := t.entries[c]; !ok {
			t.misses[c] = true
		}
	}
	return t
}

// Lookup returns the entry for code.
func (t *Table) Lookup(code string) (Entry, bool) {
	e, ok := t.entries[code]
	return e, ok
}

// Len returns the number of resolved codes.
func (t *Table) Len() int { return len(t.entries) }

// Missing reports whether code was asked for and not found.
func (t *Table) Missing(code string) bool { return t.misses[code] }

// Prefetch resolves every distinct code exactly once and returns the run's
// Table. A BatchResolver is called once with all codes; otherwise codes are
// resolved individually with at most concurrency calls in flight.
func Prefetch(ctx context.Context, r Resolver, codes []string, concurrency int) (*Table, error) {
	distinct := dedupe(codes)
	if len(distinct) == 0 {
		return NewTable(nil, nil), nil
	}

	if br, ok := r.(BatchResolver); ok {
		found, err := br.ResolveMany(ctx, distinct)
		if err != nil {
			return nil, fmt.Errorf("resolve batch of %d codes: %w", len(distinct), err)
		}
		return NewTable(found, distinct), nil
	}

	if concurrency < 1 {
		concurrency = 1
	}
	var (
		mu    sync.Mutex
		found = make(map[string]Entry, len(distinct))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, code := range distinct {
		g.Go(func() error {
			e, err := r.Resolve(gctx, code)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("resolve %s: %w", code, err)
			}
			mu.Lock()
			found[code] = e
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewTable(found, distinct), nil
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
