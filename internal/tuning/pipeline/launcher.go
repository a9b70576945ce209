package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

// ResultStore is the slice of the result repository the launcher needs.
type ResultStore interface {
	SetTaskIDs(dbc dbctx.Context, resultID uuid.UUID, taskIDs string) (bool, error)
}

// Launcher dispatches the recommendation chain for results of tuning
// sessions and records the job identifiers on the result.
type Launcher struct {
	exec    ExecutionService
	results ResultStore
	log     *logger.Logger
}

func NewLauncher(exec ExecutionService, results ResultStore, baseLog *logger.Logger) *Launcher {
	return &Launcher{
		exec:    exec,
		results: results,
		log:     baseLog.With("component", "Launcher"),
	}
}

// LaunchOutcome reports what happened to one launch attempt.
type LaunchOutcome struct {
	// Launched is true when a chain was dispatched by this call.
	Launched bool
	// DispatchState is the observed state of the first stage right after
	// dispatch; PENDING when the state could not be read yet.
	DispatchState StageState
	// Handles are the recorded job identifiers, set only when Launched.
	Handles ChainHandles
}

// MaybeLaunchRecommendation dispatches the three-stage chain for the result
// when the session is a tuning session. Non-tuning sessions are a silent
// pass-through. The job identifiers are written exactly once: a result that
// already carries identifiers is never re-dispatched over, and a dispatch
// failure leaves the result with no identifiers at all.
func (l *Launcher) MaybeLaunchRecommendation(dbc dbctx.Context, session *types.Session, result *types.Result) (LaunchOutcome, error) {
	if session == nil || result == nil {
		return LaunchOutcome{}, fmt.Errorf("launch recommendation: nil session or result")
	}
	if !session.TuningSession {
		return LaunchOutcome{}, nil
	}
	if result.TaskIDs != "" {
		return LaunchOutcome{}, apperr.ErrAlreadyLaunched
	}

	handles, err := l.exec.SubmitChain(dbc.Ctx, result.ID)
	if err != nil {
		return LaunchOutcome{}, fmt.Errorf("%w: %v", apperr.ErrChainDispatch, err)
	}

	stored, err := l.results.SetTaskIDs(dbc, result.ID, handles.Join())
	if err != nil {
		return LaunchOutcome{}, fmt.Errorf("record task ids: %w", err)
	}
	if !stored {
		// Lost the race to a concurrent launch; the other caller's chain wins.
		l.log.Warn("task ids already recorded, dropping duplicate chain", "result_id", result.ID)
		return LaunchOutcome{}, apperr.ErrAlreadyLaunched
	}
	result.TaskIDs = handles.Join()

	outcome := LaunchOutcome{
		Launched:      true,
		DispatchState: StatePending,
		Handles:       handles,
	}
	if status, err := l.exec.JobStatus(dbc.Ctx, handles.AggregateID); err == nil {
		outcome.DispatchState = status.State
	}
	l.log.Info("recommendation chain dispatched",
		"result_id", result.ID,
		"session_id", session.ID,
		"state", outcome.DispatchState)
	return outcome, nil
}
