package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

type fakeExec struct {
	handles   ChainHandles
	submitErr error
	submits   int

	statuses  map[string]JobStatus
	statusErr map[string]error
}

func (f *fakeExec) SubmitChain(ctx context.Context, resultID uuid.UUID) (ChainHandles, error) {
	f.submits++
	if f.submitErr != nil {
		return ChainHandles{}, f.submitErr
	}
	return f.handles, nil
}

func (f *fakeExec) JobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	if err := f.statusErr[jobID]; err != nil {
		return JobStatus{}, err
	}
	if st, ok := f.statuses[jobID]; ok {
		return st, nil
	}
	return JobStatus{State: StatePending}, nil
}

type fakeStore struct {
	taskIDs map[uuid.UUID]string
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{taskIDs: map[uuid.UUID]string{}}
}

func (f *fakeStore) SetTaskIDs(dbc dbctx.Context, resultID uuid.UUID, taskIDs string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.taskIDs[resultID]; ok {
		return false, nil
	}
	f.taskIDs[resultID] = taskIDs
	return true, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func tuningFixture() (*types.Session, *types.Result) {
	session := &types.Session{ID: uuid.New(), TuningSession: true}
	result := &types.Result{ID: uuid.New(), SessionID: session.ID}
	return session, result
}

func TestLauncherDispatchesForTuningSession(t *testing.T) {
	session, result := tuningFixture()
	exec := &fakeExec{
		handles:  ChainHandles{AggregateID: "a", MapID: "b", RecommendID: "c"},
		statuses: map[string]JobStatus{"a": {State: StateStarted}},
	}
	store := newFakeStore()
	l := NewLauncher(exec, store, testLogger(t))

	out, err := l.MaybeLaunchRecommendation(dbctx.New(context.Background()), session, result)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if !out.Launched {
		t.Fatalf("expected a launch")
	}
	if got := store.taskIDs[result.ID]; got != "a,b,c" {
		t.Fatalf("stored task ids = %q, want a,b,c", got)
	}
	if result.TaskIDs != "a,b,c" {
		t.Fatalf("result task ids = %q", result.TaskIDs)
	}
	if out.DispatchState != StateStarted {
		t.Fatalf("dispatch state = %s, want STARTED", out.DispatchState)
	}
}

func TestLauncherSkipsNonTuningSession(t *testing.T) {
	session, result := tuningFixture()
	session.TuningSession = false
	exec := &fakeExec{handles: ChainHandles{AggregateID: "a", MapID: "b", RecommendID: "c"}}
	store := newFakeStore()
	l := NewLauncher(exec, store, testLogger(t))

	out, err := l.MaybeLaunchRecommendation(dbctx.New(context.Background()), session, result)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if out.Launched || exec.submits != 0 {
		t.Fatalf("non-tuning session must not dispatch (launched=%v submits=%d)", out.Launched, exec.submits)
	}
	if len(store.taskIDs) != 0 {
		t.Fatalf("non-tuning session must not record task ids")
	}
}

func TestLauncherDispatchFailureRecordsNothing(t *testing.T) {
	session, result := tuningFixture()
	exec := &fakeExec{submitErr: fmt.Errorf("broker down")}
	store := newFakeStore()
	l := NewLauncher(exec, store, testLogger(t))

	_, err := l.MaybeLaunchRecommendation(dbctx.New(context.Background()), session, result)
	if !errors.Is(err, apperr.ErrChainDispatch) {
		t.Fatalf("err = %v, want ErrChainDispatch", err)
	}
	if len(store.taskIDs) != 0 {
		t.Fatalf("failed dispatch must leave zero task ids, got %v", store.taskIDs)
	}
	if result.TaskIDs != "" {
		t.Fatalf("result task ids mutated on failure: %q", result.TaskIDs)
	}
}

func TestLauncherRefusesSecondDispatch(t *testing.T) {
	session, result := tuningFixture()
	result.TaskIDs = "a,b,c"
	exec := &fakeExec{handles: ChainHandles{AggregateID: "x", MapID: "y", RecommendID: "z"}}
	store := newFakeStore()
	l := NewLauncher(exec, store, testLogger(t))

	_, err := l.MaybeLaunchRecommendation(dbctx.New(context.Background()), session, result)
	if !errors.Is(err, apperr.ErrAlreadyLaunched) {
		t.Fatalf("err = %v, want ErrAlreadyLaunched", err)
	}
	if exec.submits != 0 {
		t.Fatalf("must not re-submit a launched result")
	}
}

func TestLauncherLosesWriteRace(t *testing.T) {
	session, result := tuningFixture()
	exec := &fakeExec{handles: ChainHandles{AggregateID: "a", MapID: "b", RecommendID: "c"}}
	store := newFakeStore()
	store.taskIDs[result.ID] = "p,q,r" // concurrent launch already recorded
	l := NewLauncher(exec, store, testLogger(t))

	_, err := l.MaybeLaunchRecommendation(dbctx.New(context.Background()), session, result)
	if !errors.Is(err, apperr.ErrAlreadyLaunched) {
		t.Fatalf("err = %v, want ErrAlreadyLaunched", err)
	}
	if store.taskIDs[result.ID] != "p,q,r" {
		t.Fatalf("winning chain's ids were overwritten: %q", store.taskIDs[result.ID])
	}
}

func TestLauncherDefaultsDispatchStateToPending(t *testing.T) {
	session, result := tuningFixture()
	exec := &fakeExec{
		handles:   ChainHandles{AggregateID: "a", MapID: "b", RecommendID: "c"},
		statusErr: map[string]error{"a": fmt.Errorf("visibility lag")},
	}
	store := newFakeStore()
	l := NewLauncher(exec, store, testLogger(t))

	out, err := l.MaybeLaunchRecommendation(dbctx.New(context.Background()), session, result)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if out.DispatchState != StatePending {
		t.Fatalf("dispatch state = %s, want PENDING fallback", out.DispatchState)
	}
}

func TestParseTaskIDs(t *testing.T) {
	if _, ok := ParseTaskIDs(""); ok {
		t.Fatalf("empty task ids must not parse")
	}
	if _, ok := ParseTaskIDs("a,b"); ok {
		t.Fatalf("two ids must not parse")
	}
	h, ok := ParseTaskIDs("a,b,c")
	if !ok || h.AggregateID != "a" || h.MapID != "b" || h.RecommendID != "c" {
		t.Fatalf("ParseTaskIDs = %+v ok=%v", h, ok)
	}
	if h.Join() != "a,b,c" {
		t.Fatalf("Join = %q", h.Join())
	}
}
