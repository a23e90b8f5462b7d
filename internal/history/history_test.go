package history

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTailReturnsRecentRecordsAndTotal(t *testing.T) {
	dir := t.TempDir()
	ledger, err := New(filepath.Join(dir, "runs.log"))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	for i := 0; i < 5; i++ {
		err := ledger.Append(Record{Total: i + 1, Completed: i, Capacity: 2, Elapsed: 100 * time.Millisecond})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	records, total := ledger.Tail(3)
	if total != 5 {
		t.Fatalf("total records = %d, want 5", total)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	for idx, wantTotal := range []int{3, 4, 5} {
		if records[idx].Total != wantTotal {
			t.Fatalf("record %d total = %d, want %d", idx, records[idx].Total, wantTotal)
		}
	}
	if records[0].Timestamp.IsZero() {
		t.Fatal("expected a timestamp to be stamped on append")
	}
}

func TestTailOnEmptyLedger(t *testing.T) {
	dir := t.TempDir()
	ledger, err := New(filepath.Join(dir, "runs.log"))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	records, total := ledger.Tail(10)
	if len(records) != 0 || total != 0 {
		t.Fatalf("expected empty tail, got %d records (total %d)", len(records), total)
	}

	var nilLedger *Ledger
	if err := nilLedger.Append(Record{}); err != nil {
		t.Fatalf("nil ledger append must be a no-op, got %v", err)
	}
}
