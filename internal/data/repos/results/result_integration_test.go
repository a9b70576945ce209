package results

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/selftune/selftune-backend/internal/data/repos/testutil"
	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
)

func observationFor(f *testutil.TuningFixture, workload string) ObservationParams {
	now := time.Now().UTC().Truncate(time.Second)
	return ObservationParams{
		Session:      f.Session,
		DBMS:         f.DBMS,
		WorkloadName: workload,
		KnobData: &types.KnobData{
			Name:  "knobs#deadbeef",
			Knobs: datatypes.JSON(`{"shared_buffers": 4294967296}`),
			Data:  datatypes.JSON(`{"shared_buffers": 4294967296}`),
		},
		MetricData: &types.MetricData{
			Name:    "metrics#deadbeef",
			Metrics: datatypes.JSON(`{"xact_commit": 50}`),
			Data:    datatypes.JSON(`{"throughput_txn_per_sec": 50}`),
		},
		Backup: &types.BackupData{
			RawSummary:        datatypes.JSON(`{}`),
			RawKnobs:          datatypes.JSON(`{}`),
			RawInitialMetrics: datatypes.JSON(`{}`),
			RawFinalMetrics:   datatypes.JSON(`{}`),
			KnobLog:           datatypes.JSON(`[]`),
			MetricLog:         datatypes.JSON(`{}`),
		},
		StartTime:          now.Add(-5 * time.Minute),
		EndTime:            now,
		ObservationTime:    300,
		NondefaultSettings: []string{"shared_buffers"},
	}
}

func TestRecordObservationIntegration(t *testing.T) {
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	f := testutil.SeedTuningFixture(t, db, true)
	repo := NewResultRepo(db, log)
	dbc := dbctx.New(context.Background())

	result, session, err := repo.RecordObservation(dbc, observationFor(f, "tpcc"))
	if err != nil {
		t.Fatalf("record observation: %v", err)
	}
	if result.ID == (types.Result{}).ID {
		t.Fatalf("result id not assigned")
	}
	if result.TaskIDs != "" {
		t.Fatalf("fresh result must carry no task ids, got %q", result.TaskIDs)
	}

	// The session picked up the nondefault settings exactly once.
	var settings []string
	if err := json.Unmarshal(session.NondefaultSettings, &settings); err != nil {
		t.Fatalf("decode nondefault settings: %v", err)
	}
	if len(settings) != 1 || settings[0] != "shared_buffers" {
		t.Fatalf("nondefault settings = %v", settings)
	}

	// Backup row exists and retains the raw upload.
	backup, err := repo.GetBackup(dbc, result.ID)
	if err != nil {
		t.Fatalf("get backup: %v", err)
	}
	if backup.ResultID != result.ID {
		t.Fatalf("backup result id = %s", backup.ResultID)
	}

	// A second upload with the same workload name reuses the workload row.
	second := observationFor(f, "tpcc")
	second.NondefaultSettings = []string{"work_mem"}
	result2, session2, err := repo.RecordObservation(dbc, second)
	if err != nil {
		t.Fatalf("second observation: %v", err)
	}
	if result2.WorkloadID != result.WorkloadID {
		t.Fatalf("workload duplicated: %s vs %s", result2.WorkloadID, result.WorkloadID)
	}

	// Nondefault settings are write-once per session.
	if err := json.Unmarshal(session2.NondefaultSettings, &settings); err != nil {
		t.Fatalf("decode nondefault settings: %v", err)
	}
	if len(settings) != 1 || settings[0] != "shared_buffers" {
		t.Fatalf("nondefault settings overwritten: %v", settings)
	}

	rows, err := repo.ListBySession(dbc, f.Session.ID)
	if err != nil {
		t.Fatalf("list by session: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("results = %d, want 2", len(rows))
	}
}

func TestSetTaskIDsWriteOnceIntegration(t *testing.T) {
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	f := testutil.SeedTuningFixture(t, db, true)
	repo := NewResultRepo(db, log)
	dbc := dbctx.New(context.Background())

	result, _, err := repo.RecordObservation(dbc, observationFor(f, "tpcc"))
	if err != nil {
		t.Fatalf("record observation: %v", err)
	}

	ok, err := repo.SetTaskIDs(dbc, result.ID, "a,b,c")
	if err != nil || !ok {
		t.Fatalf("first SetTaskIDs = (%v, %v)", ok, err)
	}
	ok, err = repo.SetTaskIDs(dbc, result.ID, "x,y,z")
	if err != nil {
		t.Fatalf("second SetTaskIDs: %v", err)
	}
	if ok {
		t.Fatalf("task ids must be write-once")
	}

	stored, err := repo.GetByID(dbc, result.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if stored.TaskIDs != "a,b,c" {
		t.Fatalf("task ids = %q, want the first write", stored.TaskIDs)
	}
	if got := stored.TaskIDList(); len(got) != 3 || got[0] != "a" {
		t.Fatalf("task id list = %v", got)
	}
}

func TestPipelineResultsIntegration(t *testing.T) {
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	f := testutil.SeedTuningFixture(t, db, true)
	repo := NewResultRepo(db, log)
	dbc := dbctx.New(context.Background())

	result, _, err := repo.RecordObservation(dbc, observationFor(f, "tpcc"))
	if err != nil {
		t.Fatalf("record observation: %v", err)
	}
	base := time.Now().UTC()
	for i, taskType := range []string{"aggregate_target_results", "map_workload"} {
		if err := repo.CreatePipelineResult(dbc, &types.PipelineResult{
			ResultID:     result.ID,
			TaskType:     taskType,
			Value:        datatypes.JSON(`{"ok": true}`),
			CreationTime: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("create pipeline result: %v", err)
		}
	}

	rows, err := repo.ListPipelineResults(dbc, result.ID)
	if err != nil {
		t.Fatalf("list pipeline results: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("pipeline rows = %d, want 2", len(rows))
	}
	if rows[0].TaskType != "aggregate_target_results" {
		t.Fatalf("rows out of creation order: %s first", rows[0].TaskType)
	}
}
