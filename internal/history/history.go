// Package history keeps an append-only JSON Lines record of probe runs.
//
// Each line describes one run. Writers take an exclusive lock on a sibling
// ".lock" file so several probes can share one history file.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	"github.com/torosent/seckillprobe/internal/output"
)

// lockRetry is how often a blocked writer polls for the lock.
const lockRetry = 25 * time.Millisecond

// Entry is one recorded run.
type Entry struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	Target           string    `json:"target"`
	Total            int64     `json:"total_requests"`
	Concurrency      int       `json:"concurrency"`
	InitialStock     int64     `json:"initial_stock"`
	Successes        int64     `json:"successes"`
	SoldOutOrInvalid int64     `json:"sold_out_or_invalid"`
	Failures         int64     `json:"failures"`
	DurationMs       float64   `json:"duration_ms"`
	RequestsPerSec   float64   `json:"requests_per_sec,omitempty"`
	StockStatus      string    `json:"stock_status"`
	CountOK          bool      `json:"count_ok"`
	ThresholdsPassed bool      `json:"thresholds_passed"`
}

// NewRunID returns a new lexically sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// RunTime extracts the creation time encoded in a run id.
func RunTime(runID string) (time.Time, error) {
	id, err := ulid.ParseStrict(runID)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run id: %w", err)
	}
	return ulid.Time(id.Time()), nil
}

// FromReport summarizes a final report as a history entry.
func FromReport(r output.Report) Entry {
	e := Entry{
		RunID:            r.RunID,
		StartedAt:        r.StartedAt,
		Target:           r.Target,
		Total:            r.Expected,
		Concurrency:      r.Concurrency,
		InitialStock:     r.InitialStock,
		Successes:        r.Stats.Successes,
		SoldOutOrInvalid: r.Stats.SoldOutOrInvalid,
		Failures:         r.Stats.Failures(),
		DurationMs:       r.Stats.DurationMs,
		StockStatus:      r.Stock.Status.String(),
		CountOK:          r.Totals.OK,
		ThresholdsPassed: r.ThresholdsPassed(),
	}
	if rps, ok := r.Throughput(); ok {
		e.RequestsPerSec = rps
	}
	return e
}

// Append writes e as one line at the end of path, creating the file if needed.
func Append(ctx context.Context, path string, e Entry) error {
	if path == "" {
		return errors.New("history file path is empty")
	}
	if e.RunID == "" {
		e.RunID = NewRunID()
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	line = append(line, '\n')

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock history file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock history file: %s is held by another process", path)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write history file: %w", err)
	}
	return f.Close()
}

// Read returns every entry in path in file order. A missing file has no entries.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("history line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return entries, nil
}
