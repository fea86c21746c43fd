package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yunmindata/dedupe/internal/config"
	"github.com/yunmindata/dedupe/internal/events"
	"github.com/yunmindata/dedupe/internal/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(id string, startedAt time.Time) *RunRecord {
	return &RunRecord{
		ID:         id,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(90 * time.Second),
		Config:     config.DefaultConfig(),
		Report: &types.Report{
			RunID:             id,
			InputCount:        1000,
			KeptCount:         900,
			DuplicateCount:    100,
			ClusterCount:      40,
			DeduplicationRate: 0.1,
			CandidateCount:    500,
			ConfirmedCount:    120,
			OverflowSkips:     16,
			PerDomain: map[string]types.DomainReduction{
				"news":  {InputCount: 600, RemovedCount: 80, Rate: 80.0 / 600.0},
				"books": {InputCount: 400, RemovedCount: 20, Rate: 0.05},
			},
			SamplePairs: []types.DuplicatePair{
				{A: 3, B: 17, Similarity: 0.92},
				{A: 5, B: 9, Similarity: 1.0},
			},
			Duration: 90 * time.Second,
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	run := testRun(uuid.New().String(), time.Now().UTC().Truncate(time.Second))
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.ID != run.ID {
		t.Errorf("Expected id %s, got %s", run.ID, got.ID)
	}
	if got.Config != run.Config {
		t.Errorf("Config round trip mismatch: %+v != %+v", got.Config, run.Config)
	}
	if got.Report.InputCount != 1000 || got.Report.DuplicateCount != 100 {
		t.Errorf("Report counts mismatch: %+v", got.Report)
	}
	if got.Report.Duration != 90*time.Second {
		t.Errorf("Expected duration 90s, got %v", got.Report.Duration)
	}
	if len(got.Report.PerDomain) != 2 {
		t.Fatalf("Expected 2 domains, got %d", len(got.Report.PerDomain))
	}
	if got.Report.PerDomain["news"].RemovedCount != 80 {
		t.Errorf("Domain stats mismatch: %+v", got.Report.PerDomain["news"])
	}
	if len(got.Report.SamplePairs) != 2 {
		t.Fatalf("Expected 2 sample pairs, got %d", len(got.Report.SamplePairs))
	}
	if got.Report.SamplePairs[0] != (types.DuplicatePair{A: 3, B: 17, Similarity: 0.92}) {
		t.Errorf("Sample pair mismatch: %+v", got.Report.SamplePairs[0])
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetRun(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("Expected error for missing run")
	}
	if !strings.Contains(err.Error(), "run not found") {
		t.Errorf("Expected 'run not found' error, got: %v", err)
	}
}

func TestSaveRunRequiresReport(t *testing.T) {
	store := newTestStorage(t)

	err := store.SaveRun(context.Background(), &RunRecord{ID: "r1"})
	if err == nil {
		t.Fatal("Expected error for run without report")
	}
}

func TestSaveRunDuplicateID(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	run := testRun("dup-run", time.Now().UTC())
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("First SaveRun failed: %v", err)
	}
	if err := store.SaveRun(ctx, run); err == nil {
		t.Fatal("Expected error saving a run id twice")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		run := testRun(uuid.New().String(), base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun %d failed: %v", i, err)
		}
	}

	runs, err := store.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.After(runs[i-1].StartedAt) {
			t.Errorf("Runs not ordered newest first: %v after %v",
				runs[i].StartedAt, runs[i-1].StartedAt)
		}
	}
}

func TestRecordAndGetRunEvents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	runID := uuid.New().String()

	// Events stream in before the run row exists
	first := events.New(runID, events.EventTypeRunStarted, events.SeverityInfo,
		"run started", map[string]interface{}{"config": "defaults"})
	second := events.New(runID, events.EventTypeBucketOverflow, events.SeverityWarning,
		"42 documents excluded", map[string]interface{}{"overflow_skips": float64(42)})
	second.Timestamp = first.Timestamp.Add(time.Second)

	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record(ctx, second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	// An unrelated run's event must not leak in
	other := events.New(uuid.New().String(), events.EventTypeRunStarted, events.SeverityInfo, "other run", nil)
	if err := store.Record(ctx, other); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.GetRunEvents(ctx, runID)
	if err != nil {
		t.Fatalf("GetRunEvents failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].Type != events.EventTypeRunStarted || got[1].Type != events.EventTypeBucketOverflow {
		t.Errorf("Events out of order: %s, %s", got[0].Type, got[1].Type)
	}
	if got[1].Severity != events.SeverityWarning {
		t.Errorf("Expected warning severity, got %s", got[1].Severity)
	}
	if got[1].Data["overflow_skips"] != float64(42) {
		t.Errorf("Event data round trip mismatch: %+v", got[1].Data)
	}
}

func TestRecordRejectsUnknownType(t *testing.T) {
	store := newTestStorage(t)

	bad := events.New("r1", events.EventType("bogus"), events.SeverityInfo, "nope", nil)
	if err := store.Record(context.Background(), bad); err == nil {
		t.Fatal("Expected CHECK constraint to reject unknown event type")
	}
}
