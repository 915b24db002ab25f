package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/receiptgen/internal/master"
	embedsql "github.com/gyeh/receiptgen/internal/sql"
)

// MasterStore resolves service codes from ref.service_codes, choosing for
// each code the entry in force on a reference day.
type MasterStore struct {
	pool *pgxpool.Pool
	on   time.Time
}

// NewMasterStore returns a store that resolves entries valid on day on.
func NewMasterStore(pool *pgxpool.Pool, on time.Time) *MasterStore {
	return &MasterStore{pool: pool, on: on}
}

// Resolve implements master.Resolver.
func (s *MasterStore) Resolve(ctx context.Context, code string) (master.Entry, error) {
	found, err := s.ResolveMany(ctx, []string{code})
	if err != nil {
		return master.Entry{}, err
	}
	e, ok := found[code]
	if !ok {
		return master.Entry{}, master.ErrNotFound
	}
	return e, nil
}

// ResolveMany implements master.BatchResolver with a single query.
func (s *MasterStore) ResolveMany(ctx context.Context, codes []string) (map[string]master.Entry, error) {
	rows, err := s.pool.Query(ctx, embedsql.ResolveServiceCodes, codes, s.on)
	if err != nil {
		return nil, fmt.Errorf("query service codes: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("scan service codes: %w", err)
	}
	out := make(map[string]master.Entry, len(entries))
	for _, e := range entries {
		out[e.Code] = e
	}
	return out, nil
}

func scanEntry(row pgx.CollectableRow) (master.Entry, error) {
	var (
		e       master.Entry
		class   int16
		symbols string
		sameDay int16
		validTo *time.Time
	)
	err := row.Scan(&e.Code, &e.Name, &e.Points, &class, &e.InstructionTypeRequired,
		&symbols, &e.StaffCategories, &sameDay, &e.Incremental, &e.ValidFrom, &validTo)
	if err != nil {
		return master.Entry{}, err
	}
	e.Class = master.Class(class)
	if e.Class < master.ClassVisit || e.Class > master.ClassManagement {
		return master.Entry{}, fmt.Errorf("service code %s: unknown class %d", e.Code, class)
	}
	if e.DisplaySymbols, err = master.ParseSymbols(symbols); err != nil {
		return master.Entry{}, fmt.Errorf("service code %s: %w", e.Code, err)
	}
	if sameDay > 0 {
		e.SameDay = master.SameDayCounted
	}
	if validTo != nil {
		e.ValidTo = *validTo
	}
	return e, nil
}

// ErrNoMaster is returned when ref.service_codes has not been created.
var ErrNoMaster = errors.New("service code master table is missing; run migrate and master-load first")

// CheckMaster verifies the master table exists and holds at least one row.
func CheckMaster(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	var exists bool
	if err := pool.QueryRow(ctx, "SELECT to_regclass('ref.service_codes') IS NOT NULL").Scan(&exists); err != nil {
		return 0, fmt.Errorf("check master table: %w", err)
	}
	if !exists {
		return 0, ErrNoMaster
	}
	var n int64
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM ref.service_codes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count service codes: %w", err)
	}
	return n, nil
}
