// internal/history/history.go
//
// Run history persists one line per pipeline batch to
// .sluice/state/runs.log so past runs survive the process.

package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record summarizes one completed pipeline batch.
type Record struct {
	Timestamp time.Time     `json:"timestamp"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Capacity  int           `json:"capacity"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Ledger appends batch records to a single append-only file.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// New creates a ledger that writes to the provided path.
func New(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Ledger{path: path}, nil
}

// Path returns the file backing this ledger.
func (l *Ledger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single record. A nil ledger drops the record; run
// history is best effort and never fails a batch.
func (l *Ledger) Append(r Record) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("history: encode record: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("history: open %s: %w", l.path, err)
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("history: write record: %w", err)
	}
	return nil
}

// Tail returns up to max of the most recent records plus the total
// count on file. Lines that fail to parse are skipped.
func (l *Ledger) Tail(max int) ([]Record, int) {
	if l == nil || max <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	total := len(records)
	if total > max {
		records = records[total-max:]
	}
	return records, total
}
