package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/selftune/selftune-backend/internal/domain"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestReduceChain(t *testing.T) {
	created := ts("2016-06-18T10:00:00Z").UTC()

	cases := []struct {
		name          string
		stages        []StageInfo
		wantOverall   StageState
		wantCompleted int
		wantRuntime   time.Duration
	}{
		{
			name: "all pending",
			stages: []StageInfo{
				{Name: StageAggregate, State: StatePending},
				{Name: StageMapWorkload, State: StatePending},
				{Name: StageRecommend, State: StatePending},
			},
			wantOverall: StatePending,
		},
		{
			name: "first received but not started",
			stages: []StageInfo{
				{Name: StageAggregate, State: StateReceived},
				{Name: StageMapWorkload, State: StatePending},
				{Name: StageRecommend, State: StatePending},
			},
			wantOverall: StateReceived,
		},
		{
			name: "first running",
			stages: []StageInfo{
				{Name: StageAggregate, State: StateStarted},
				{Name: StageMapWorkload, State: StatePending},
				{Name: StageRecommend, State: StatePending},
			},
			wantOverall: StateStarted,
		},
		{
			name: "mid chain running",
			stages: []StageInfo{
				{Name: StageAggregate, State: StateSuccess, CompletedAt: ts("2016-06-18T10:01:00Z")},
				{Name: StageMapWorkload, State: StateStarted},
				{Name: StageRecommend, State: StatePending},
			},
			wantOverall:   StateStarted,
			wantCompleted: 1,
		},
		{
			name: "failure short-circuits",
			stages: []StageInfo{
				{Name: StageAggregate, State: StateSuccess, CompletedAt: ts("2016-06-18T10:01:00Z")},
				{Name: StageMapWorkload, State: StateFailure},
				{Name: StageRecommend, State: StatePending},
			},
			wantOverall:   StateFailure,
			wantCompleted: 1,
		},
		{
			name: "revoked",
			stages: []StageInfo{
				{Name: StageAggregate, State: StateRevoked},
				{Name: StageMapWorkload, State: StatePending},
				{Name: StageRecommend, State: StatePending},
			},
			wantOverall: StateRevoked,
		},
		{
			name: "all success",
			stages: []StageInfo{
				{Name: StageAggregate, State: StateSuccess, CompletedAt: ts("2016-06-18T10:01:00Z")},
				{Name: StageMapWorkload, State: StateSuccess, CompletedAt: ts("2016-06-18T10:02:00Z")},
				{Name: StageRecommend, State: StateSuccess, CompletedAt: ts("2016-06-18T10:05:00Z")},
			},
			wantOverall:   StateSuccess,
			wantCompleted: 3,
			wantRuntime:   5 * time.Minute,
		},
		{
			name: "lookup failure",
			stages: []StageInfo{
				{Name: StageAggregate, State: StateSuccess, CompletedAt: ts("2016-06-18T10:01:00Z")},
				{Name: StageMapWorkload, State: StateUnavailable},
				{Name: StageRecommend, State: StatePending},
			},
			wantOverall:   StateUnavailable,
			wantCompleted: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := ReduceChain(created, tc.stages)
			if st.Overall != tc.wantOverall {
				t.Fatalf("overall = %s, want %s", st.Overall, tc.wantOverall)
			}
			if st.NumCompleted != tc.wantCompleted {
				t.Fatalf("completed = %d, want %d", st.NumCompleted, tc.wantCompleted)
			}
			if tc.wantOverall == StateSuccess {
				if st.CompletionTime == nil {
					t.Fatalf("success chain must report a completion time")
				}
				if st.TotalRuntime != tc.wantRuntime {
					t.Fatalf("runtime = %v, want %v", st.TotalRuntime, tc.wantRuntime)
				}
			} else if st.CompletionTime != nil {
				t.Fatalf("unfinished chain must not report a completion time")
			}
		})
	}
}

func TestStatusAggregatorNoTaskIDs(t *testing.T) {
	agg := NewStatusAggregator(&fakeExec{}, testLogger(t))
	result := &types.Result{ID: uuid.New()}

	st := agg.ChainStatus(context.Background(), result)
	if st.Overall != StateNotApplicable {
		t.Fatalf("overall = %s, want NOT_APPLICABLE", st.Overall)
	}
	if len(st.Stages) != 0 {
		t.Fatalf("no stages expected, got %d", len(st.Stages))
	}
}

func TestStatusAggregatorSkipsLookupsPastFirstBlock(t *testing.T) {
	exec := &fakeExec{
		statuses: map[string]JobStatus{
			"a": {State: StateSuccess, CompletedAt: ts("2016-06-18T10:01:00Z")},
			"b": {State: StateFailure},
			// "c" would fail the test if looked up
		},
		statusErr: map[string]error{"c": fmt.Errorf("must not be queried")},
	}
	agg := NewStatusAggregator(exec, testLogger(t))
	result := &types.Result{ID: uuid.New(), TaskIDs: "a,b,c", CreationTime: ts("2016-06-18T10:00:00Z").UTC()}

	st := agg.ChainStatus(context.Background(), result)
	if st.Overall != StateFailure {
		t.Fatalf("overall = %s, want FAILURE", st.Overall)
	}
	if st.Stages[2].State != StatePending {
		t.Fatalf("unreached stage = %s, want PENDING", st.Stages[2].State)
	}
}

func TestStatusAggregatorLookupErrorIsUnavailable(t *testing.T) {
	exec := &fakeExec{
		statuses:  map[string]JobStatus{"a": {State: StateSuccess, CompletedAt: ts("2016-06-18T10:01:00Z")}},
		statusErr: map[string]error{"b": fmt.Errorf("backend unreachable")},
	}
	agg := NewStatusAggregator(exec, testLogger(t))
	result := &types.Result{ID: uuid.New(), TaskIDs: "a,b,c", CreationTime: ts("2016-06-18T10:00:00Z").UTC()}

	st := agg.ChainStatus(context.Background(), result)
	if st.Overall != StateUnavailable {
		t.Fatalf("overall = %s, want UNAVAILABLE", st.Overall)
	}
	if st.NumCompleted != 1 {
		t.Fatalf("completed = %d, want 1", st.NumCompleted)
	}
}

func TestStatusAggregatorFullSuccess(t *testing.T) {
	exec := &fakeExec{
		statuses: map[string]JobStatus{
			"a": {State: StateSuccess, CompletedAt: ts("2016-06-18T10:01:00Z")},
			"b": {State: StateSuccess, CompletedAt: ts("2016-06-18T10:02:00Z")},
			"c": {State: StateSuccess, CompletedAt: ts("2016-06-18T10:04:30Z")},
		},
	}
	agg := NewStatusAggregator(exec, testLogger(t))
	result := &types.Result{ID: uuid.New(), TaskIDs: "a,b,c", CreationTime: ts("2016-06-18T10:00:00Z").UTC()}

	st := agg.ChainStatus(context.Background(), result)
	if st.Overall != StateSuccess || st.NumCompleted != 3 {
		t.Fatalf("overall = %s completed = %d", st.Overall, st.NumCompleted)
	}
	if st.TotalRuntime != 4*time.Minute+30*time.Second {
		t.Fatalf("runtime = %v", st.TotalRuntime)
	}
}
