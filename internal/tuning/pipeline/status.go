package pipeline

import (
	"context"
	"time"

	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

// StageInfo is one stage's contribution to a chain status report.
type StageInfo struct {
	Name        StageName
	State       StageState
	CompletedAt *time.Time
}

// ChainStatus is the reduced view of one result's recommendation chain.
type ChainStatus struct {
	Overall StageState
	Stages  []StageInfo
	// NumCompleted counts stages that finished successfully.
	NumCompleted int
	// CompletionTime is set only when the whole chain succeeded.
	CompletionTime *time.Time
	// TotalRuntime is the span from result creation to chain completion,
	// set only when the whole chain succeeded.
	TotalRuntime time.Duration
}

// ReduceChain folds per-stage states into one chain status. The overall
// state is the state of the first stage, in chain order, that has not yet
// succeeded; when every stage succeeded the overall state is SUCCESS and the
// completion time is the last stage's finish time.
func ReduceChain(resultCreated time.Time, stages []StageInfo) ChainStatus {
	if len(stages) == 0 {
		return ChainStatus{Overall: StateNotApplicable}
	}
	st := ChainStatus{Overall: StateSuccess, Stages: stages}
	for _, stage := range stages {
		if stage.State == StateSuccess {
			st.NumCompleted++
			continue
		}
		st.Overall = stage.State
		break
	}
	if st.Overall != StateSuccess {
		return st
	}
	last := stages[len(stages)-1]
	if last.CompletedAt != nil {
		t := last.CompletedAt.UTC()
		st.CompletionTime = &t
		st.TotalRuntime = t.Sub(resultCreated)
	}
	return st
}

// StatusAggregator reads per-stage job states from the execution service and
// reduces them to one chain status per result.
type StatusAggregator struct {
	exec ExecutionService
	log  *logger.Logger
}

func NewStatusAggregator(exec ExecutionService, baseLog *logger.Logger) *StatusAggregator {
	return &StatusAggregator{
		exec: exec,
		log:  baseLog.With("component", "StatusAggregator"),
	}
}

// ChainStatus reports the chain state of one result. A result with no
// recorded job identifiers reports NOT_APPLICABLE. A stage whose lookup
// fails reports UNAVAILABLE; lookups past the first non-successful stage are
// skipped since they cannot change the overall state.
func (a *StatusAggregator) ChainStatus(ctx context.Context, result *types.Result) ChainStatus {
	handles, ok := ParseTaskIDs(result.TaskIDs)
	if !ok {
		return ChainStatus{Overall: StateNotApplicable}
	}

	ids := handles.List()
	stages := make([]StageInfo, 0, len(StageOrder))
	blocked := false
	for i, name := range StageOrder {
		if blocked {
			stages = append(stages, StageInfo{Name: name, State: StatePending})
			continue
		}
		status, err := a.exec.JobStatus(ctx, ids[i])
		if err != nil {
			a.log.Warn("stage status lookup failed", "result_id", result.ID, "stage", name, "error", err)
			stages = append(stages, StageInfo{Name: name, State: StateUnavailable})
			blocked = true
			continue
		}
		stages = append(stages, StageInfo{Name: name, State: status.State, CompletedAt: status.CompletedAt})
		if status.State != StateSuccess {
			blocked = true
		}
	}
	st := ReduceChain(result.CreationTime, stages)
	if st.Overall.Terminal() {
		a.log.Debug("chain reached terminal state", "result_id", result.ID, "overall", st.Overall)
	}
	return st
}
