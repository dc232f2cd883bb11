package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"CostSim/internal/domain/models"
	drepo "CostSim/internal/domain/repository"
)

var csvHeader = []string{
	"timestamp", "exchange", "symbol", "action",
	"maker_taker", "price", "quantity", "impact_ratio",
}

// CSVAuditSink appends executed trades to a CSV file. The header is written
// exactly once, when the file did not exist before opening.
type CSVAuditSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSVAuditSink opens (or creates) the audit file in append mode.
func NewCSVAuditSink(path string) (drepo.AuditSink, error) {
	_, statErr := os.Stat(path)
	existed := statErr == nil

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	s := &CSVAuditSink{file: f, w: csv.NewWriter(f)}
	if !existed {
		if err := s.w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write audit header: %w", err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("flush audit header: %w", err)
		}
	}
	return s, nil
}

// Append writes one record and flushes it to disk.
func (s *CSVAuditSink) Append(_ context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.Exchange,
		rec.Symbol,
		rec.Action,
		string(rec.MakerTaker),
		strconv.FormatFloat(rec.Price, 'f', -1, 64),
		strconv.FormatFloat(rec.Quantity, 'f', -1, 64),
		strconv.FormatFloat(rec.ImpactRatio, 'f', -1, 64),
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write audit row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush audit row: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (s *CSVAuditSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
