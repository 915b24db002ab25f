package model

import "time"

// GenerationSummary captures metrics from a single claim-file generation run.
type GenerationSummary struct {
	RunID            string
	OutputPath       string
	OutputSHA256     string
	ServiceYear      int
	ServiceMonth     int
	Claims           int
	Records          int
	Bytes            int
	DistinctCodes    int
	UnresolvedCodes  []string
	DroppedCharges   int
	DuplicateBonuses int
	TotalPoints      int64
	PatientTotal     int64
	CappedDelta      int64
	DurationPrefetch time.Duration
	DurationEncode   time.Duration
	DurationTotal    time.Duration
}

// MasterLoadSummary captures metrics from a single master-load run.
type MasterLoadSummary struct {
	FilePath         string
	FileSHA256       string
	ImportBatchID    string
	AlreadyLoaded    bool
	RowsRead         int64
	RowsStaged       int64
	RowsRejected     int64
	RowsUpserted     int64
	ImportsReplaced  int64
	DurationStage    time.Duration
	DurationFinalize time.Duration
	DurationTotal    time.Duration
}
