package stages

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/selftune/selftune-backend/internal/data/repos/results"
	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

// memStore is an in-memory observation store for exercising the stage
// computations without Postgres.
type memStore struct {
	results   map[uuid.UUID]*types.Result
	workloads []*types.Workload
	pipeline  []*types.PipelineResult
}

func newMemStore() *memStore {
	return &memStore{results: map[uuid.UUID]*types.Result{}}
}

func (m *memStore) addObservation(session *types.Session, workload *types.Workload, knobs, metrics map[string]float64) *types.Result {
	kd := &types.KnobData{ID: uuid.New(), Data: mustJSON(knobs)}
	md := &types.MetricData{ID: uuid.New(), Data: mustJSON(metrics)}
	r := &types.Result{
		ID:           uuid.New(),
		SessionID:    session.ID,
		DBMSID:       session.DBMSID,
		WorkloadID:   workload.ID,
		CreationTime: time.Now().UTC(),
		Session:      session,
		Workload:     workload,
		KnobData:     kd,
		MetricData:   md,
	}
	m.results[r.ID] = r
	return r
}

func mustJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(raw)
}

func (m *memStore) RecordObservation(dbc dbctx.Context, p results.ObservationParams) (*types.Result, *types.Session, error) {
	panic("not used by the stage runner")
}

func (m *memStore) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Result, error) {
	if r, ok := m.results[id]; ok {
		return r, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Result, error) {
	var out []*types.Result
	for _, r := range m.results {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListByWorkload(dbc dbctx.Context, workloadID uuid.UUID) ([]*types.Result, error) {
	var out []*types.Result
	for _, r := range m.results {
		if r.WorkloadID == workloadID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListWorkloads(dbc dbctx.Context, dbmsID, hardwareID uuid.UUID) ([]*types.Workload, error) {
	return m.workloads, nil
}

func (m *memStore) GetWorkload(dbc dbctx.Context, id uuid.UUID) (*types.Workload, error) {
	for _, w := range m.workloads {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) GetKnobData(dbc dbctx.Context, id uuid.UUID) (*types.KnobData, error) {
	return nil, apperr.ErrNotFound
}
func (m *memStore) GetMetricData(dbc dbctx.Context, id uuid.UUID) (*types.MetricData, error) {
	return nil, apperr.ErrNotFound
}
func (m *memStore) GetBackup(dbc dbctx.Context, resultID uuid.UUID) (*types.BackupData, error) {
	return nil, apperr.ErrNotFound
}
func (m *memStore) SetTaskIDs(dbc dbctx.Context, resultID uuid.UUID, taskIDs string) (bool, error) {
	return false, nil
}
func (m *memStore) CreatePipelineResult(dbc dbctx.Context, pr *types.PipelineResult) error {
	m.pipeline = append(m.pipeline, pr)
	return nil
}
func (m *memStore) ListPipelineResults(dbc dbctx.Context, resultID uuid.UUID) ([]*types.PipelineResult, error) {
	var out []*types.PipelineResult
	for _, pr := range m.pipeline {
		if pr.ResultID == resultID {
			out = append(out, pr)
		}
	}
	return out, nil
}

func testRunner(t *testing.T, store *memStore) *Runner {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return NewRunner(store, log)
}

type runnerFixture struct {
	store    *memStore
	runner   *Runner
	session  *types.Session
	workload *types.Workload
	other    *types.Workload
	target   *types.Result
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	store := newMemStore()

	dbmsID := uuid.New()
	hwID := uuid.New()
	session := &types.Session{
		ID: uuid.New(), DBMSID: dbmsID, HardwareID: hwID,
		TargetObjective: "throughput_txn_per_sec", TuningSession: true,
	}
	own := &types.Workload{ID: uuid.New(), DBMSID: dbmsID, HardwareID: hwID, Name: "tpcc"}
	other := &types.Workload{ID: uuid.New(), DBMSID: dbmsID, HardwareID: hwID, Name: "ycsb"}
	store.workloads = []*types.Workload{own, other}

	// Two observations of the target session on its own workload.
	store.addObservation(session, own,
		map[string]float64{"shared_buffers": 1 << 30, "work_mem": 4 << 20},
		map[string]float64{"throughput_txn_per_sec": 100, "numbackends": 8})
	target := store.addObservation(session, own,
		map[string]float64{"shared_buffers": 4 << 30, "work_mem": 8 << 20},
		map[string]float64{"throughput_txn_per_sec": 200, "numbackends": 4})

	// A foreign session's history on a different workload, far away in
	// metric space but with one clearly best configuration.
	foreign := &types.Session{ID: uuid.New(), DBMSID: dbmsID, HardwareID: hwID}
	store.addObservation(foreign, other,
		map[string]float64{"shared_buffers": 2 << 30, "work_mem": 16 << 20},
		map[string]float64{"throughput_txn_per_sec": 5000, "numbackends": 64})

	return &runnerFixture{
		store: store, runner: testRunner(t, store),
		session: session, workload: own, other: other, target: target,
	}
}

func TestAggregateTargetResults(t *testing.T) {
	f := newRunnerFixture(t)

	agg, err := f.runner.AggregateTargetResults(context.Background(), f.target.ID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if agg.NumResults != 2 {
		t.Fatalf("num results = %d, want 2", agg.NumResults)
	}
	if agg.MetricMeans["throughput_txn_per_sec"] != 150 {
		t.Fatalf("throughput mean = %v, want 150", agg.MetricMeans["throughput_txn_per_sec"])
	}
	if len(agg.KnobNames) != 2 {
		t.Fatalf("knob names = %v", agg.KnobNames)
	}
	if got := f.store.pipeline; len(got) != 1 || got[0].TaskType != TaskAggregate {
		t.Fatalf("pipeline rows = %+v", got)
	}
}

func TestMapWorkloadPicksNearestProfile(t *testing.T) {
	f := newRunnerFixture(t)

	agg, err := f.runner.AggregateTargetResults(context.Background(), f.target.ID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	mapped, err := f.runner.MapWorkload(context.Background(), f.target.ID, agg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	// The session's own tpcc history is far closer than the ycsb outlier.
	if mapped.WorkloadID != f.workload.ID {
		t.Fatalf("mapped %s, want own workload", mapped.WorkloadName)
	}
	if mapped.NumCandidates != 2 {
		t.Fatalf("candidates = %d, want 2", mapped.NumCandidates)
	}
}

func TestConfigurationRecommendationPicksBestObjective(t *testing.T) {
	f := newRunnerFixture(t)

	agg, err := f.runner.AggregateTargetResults(context.Background(), f.target.ID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	mapped, err := f.runner.MapWorkload(context.Background(), f.target.ID, agg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	rec, err := f.runner.ConfigurationRecommendation(context.Background(), f.target.ID, mapped)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.ObjectiveValue != 200 {
		t.Fatalf("objective = %v, want the best observed 200", rec.ObjectiveValue)
	}
	if rec.Knobs["shared_buffers"] != 4<<30 {
		t.Fatalf("recommended shared_buffers = %v", rec.Knobs["shared_buffers"])
	}
	if rec.SourceResultID != f.target.ID {
		t.Fatalf("source result = %s", rec.SourceResultID)
	}

	rows, _ := f.store.ListPipelineResults(dbctx.New(context.Background()), f.target.ID)
	if len(rows) != 3 {
		t.Fatalf("pipeline rows = %d, want one per stage", len(rows))
	}
}

func TestAggregateFailsWithoutObservations(t *testing.T) {
	store := newMemStore()
	runner := testRunner(t, store)

	if _, err := runner.AggregateTargetResults(context.Background(), uuid.New()); err == nil {
		t.Fatalf("aggregate of unknown result must fail")
	}
}
