package db

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gyeh/receiptgen/internal/model"
)

// ChannelSource implements pgx.CopyFromSource over master rows arriving on a
// channel, so the Parquet reader and the COPY writer run concurrently.
type ChannelSource struct {
	ch      <-chan *model.MasterCopyRow
	current *model.MasterCopyRow
	rows    int64
	err     error
}

// NewChannelSource creates a CopyFromSource backed by a channel.
func NewChannelSource(ch <-chan *model.MasterCopyRow) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// Next advances to the next row. Returns false when the channel is closed
// or a nil row was received.
func (s *ChannelSource) Next() bool {
	if s.err != nil {
		return false
	}
	row, ok := <-s.ch
	if !ok {
		return false
	}
	if row == nil {
		s.err = fmt.Errorf("nil master row after %d rows", s.rows)
		return false
	}
	s.current = row
	s.rows++
	return true
}

// Values returns the current row's values in MasterColumns order.
func (s *ChannelSource) Values() ([]any, error) {
	return s.current.CopyValues(), nil
}

// Err returns any error encountered during iteration.
func (s *ChannelSource) Err() error {
	return s.err
}

// Rows reports how many rows have been handed to COPY.
func (s *ChannelSource) Rows() int64 {
	return s.rows
}

var _ pgx.CopyFromSource = (*ChannelSource)(nil)
