package master

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store is an in-memory Resolver over a fixed set of entries. Entries for the
// same code with different validity windows may coexist; the one in force on
// the store's reference day wins.
type Store struct {
	byCode map[string][]Entry
	on     time.Time
}

// NewStore builds a Store that resolves entries valid on day on. A zero on
// disables the validity filter.
func NewStore(entries []Entry, on time.Time) *Store {
	s := &Store{byCode: make(map[string][]Entry), on: on}
	for _, e := range entries {
		s.byCode[e.Code] = append(s.byCode[e.Code], e)
	}
	return s
}

// At returns a copy of the store that filters on a different reference day.
func (s *Store) At(on time.Time) *Store {
	return &Store{byCode: s.byCode, on: on}
}

// Resolve implements Resolver.
func (s *Store) Resolve(_ context.Context, code string) (Entry, error) {
	var best Entry
	found := false
	for _, e := range s.byCode[code] {
		if !s.on.IsZero() && !e.ValidOn(s.on) {
			continue
		}
		if !found || e.ValidFrom.After(best.ValidFrom) {
			best, found = e, true
		}
	}
	if !found {
		return Entry{}, ErrNotFound
	}
	return best, nil
}

// ResolveMany implements BatchResolver.
func (s *Store) ResolveMany(ctx context.Context, codes []string) (map[string]Entry, error) {
	out := make(map[string]Entry, len(codes))
	for _, c := range codes {
		e, err := s.Resolve(ctx, c)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[c] = e
	}
	return out, nil
}

// yamlEntry is the on-disk YAML structure of one master entry.
type yamlEntry struct {
	Code                string   `yaml:"code"`
	Name                string   `yaml:"name"`
	Points              int64    `yaml:"points"`
	Class               string   `yaml:"class"`
	InstructionRequired bool     `yaml:"instruction_required"`
	DisplaySymbols      string   `yaml:"display_symbols"`
	StaffCategories     []string `yaml:"staff_categories"`
	SameDayCounted      bool     `yaml:"same_day_counted"`
	Incremental         bool     `yaml:"incremental"`
	ValidFrom           string   `yaml:"valid_from"`
	ValidTo             string   `yaml:"valid_to"`
}

type yamlMaster struct {
	ServiceCodes []yamlEntry `yaml:"service_codes"`
}

// LoadYAML reads a master file of the form
//
//	service_codes:
//	  - code: "131000110"
//	    points: 555
//	    class: visit
//	    staff_categories: ["03", "04"]
func LoadYAML(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read master file: %w", err)
	}
	var ym yamlMaster
	if err := yaml.Unmarshal(data, &ym); err != nil {
		return nil, fmt.Errorf("parse master file: %w", err)
	}
	entries := make([]Entry, 0, len(ym.ServiceCodes))
	for i, ye := range ym.ServiceCodes {
		e, err := ye.toEntry()
		if err != nil {
			return nil, fmt.Errorf("master entry %d (%s): %w", i+1, ye.Code, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (ye yamlEntry) toEntry() (Entry, error) {
	code := strings.TrimSpace(ye.Code)
	if code == "" {
		return Entry{}, fmt.Errorf("code is required")
	}
	class, err := ParseClass(ye.Class)
	if err != nil {
		return Entry{}, err
	}
	symbols, err := ParseSymbols(ye.DisplaySymbols)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		Code:                    code,
		Name:                    ye.Name,
		Points:                  ye.Points,
		Class:                   class,
		InstructionTypeRequired: ye.InstructionRequired,
		DisplaySymbols:          symbols,
		StaffCategories:         ye.StaffCategories,
		Incremental:             ye.Incremental,
	}
	if ye.SameDayCounted {
		e.SameDay = SameDayCounted
	}
	if ye.ValidFrom != "" {
		if e.ValidFrom, err = time.Parse("2006-01-02", ye.ValidFrom); err != nil {
			return Entry{}, fmt.Errorf("valid_from: %w", err)
		}
	}
	if ye.ValidTo != "" {
		if e.ValidTo, err = time.Parse("2006-01-02", ye.ValidTo); err != nil {
			return Entry{}, fmt.Errorf("valid_to: %w", err)
		}
	}
	return e, nil
}
