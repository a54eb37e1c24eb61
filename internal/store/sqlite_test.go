// ABOUTME: Tests for the SQLite call ledger.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := Open(filepath.Join(t.TempDir(), "calls.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestRecordCall_AndRecent(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	if err := ledger.RecordCall(ctx, "get_iot_cnc_data", 120*time.Millisecond, false); err != nil {
		t.Fatalf("RecordCall failed: %v", err)
	}
	if err := ledger.RecordCall(ctx, "send_email", 300*time.Millisecond, true); err != nil {
		t.Fatalf("RecordCall failed: %v", err)
	}

	records, err := ledger.RecentCalls(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCalls failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.ID == "" || rec.CreatedAt.IsZero() {
			t.Errorf("incomplete record: %+v", rec)
		}
	}
}

func TestRecentCalls_RespectsLimit(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := ledger.RecordCall(ctx, "echo", time.Millisecond, false); err != nil {
			t.Fatalf("RecordCall failed: %v", err)
		}
	}

	records, err := ledger.RecentCalls(ctx, 3)
	if err != nil {
		t.Fatalf("RecentCalls failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}
}

func TestStats_Aggregates(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	calls := []struct {
		tool    string
		dur     time.Duration
		isError bool
	}{
		{"get_iot_cnc_data", 100 * time.Millisecond, false},
		{"get_iot_cnc_data", 300 * time.Millisecond, true},
		{"send_webhook", 50 * time.Millisecond, false},
	}
	for _, c := range calls {
		if err := ledger.RecordCall(ctx, c.tool, c.dur, c.isError); err != nil {
			t.Fatalf("RecordCall failed: %v", err)
		}
	}

	stats, err := ledger.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(stats))
	}

	top := stats[0]
	if top.Tool != "get_iot_cnc_data" || top.Calls != 2 || top.Errors != 1 {
		t.Errorf("unexpected top stats: %+v", top)
	}
	if top.AvgDurationMS != 200 {
		t.Errorf("expected avg 200ms, got %d", top.AvgDurationMS)
	}
}

func TestStats_EmptyLedger(t *testing.T) {
	ledger := openTestLedger(t)
	stats, err := ledger.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("expected no stats, got %+v", stats)
	}
}
