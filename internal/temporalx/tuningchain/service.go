package tuningchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/temporalx"
	"github.com/selftune/selftune-backend/internal/tuning/pipeline"
)

// Service runs the recommendation chain on Temporal. It satisfies the
// pipeline's execution-service contract: one ExecuteWorkflow call dispatches
// the whole chain, and per-stage status reads come from the child workflows'
// visibility records.
type Service struct {
	tc  temporalsdkclient.Client
	cfg temporalx.Config
	log *logger.Logger
}

func NewService(tc temporalsdkclient.Client, baseLog *logger.Logger) (*Service, error) {
	if tc == nil {
		return nil, fmt.Errorf("tuningchain: temporal client is not configured")
	}
	return &Service{
		tc:  tc,
		cfg: temporalx.LoadConfig(),
		log: baseLog.With("service", "TuningChainService"),
	}, nil
}

// SubmitChain starts the parent chain workflow. All stage identifiers derive
// from the result, so the handles exist atomically with the single start
// call; a failed start leaves nothing behind. A duplicate start for the same
// result is rejected by the deterministic workflow identifier.
func (s *Service) SubmitChain(ctx context.Context, resultID uuid.UUID) (pipeline.ChainHandles, error) {
	if resultID == uuid.Nil {
		return pipeline.ChainHandles{}, fmt.Errorf("tuningchain: missing result id")
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    ChainWorkflowID(resultID),
		TaskQueue:             s.cfg.TaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	if _, err := s.tc.ExecuteWorkflow(ctx, opts, ChainWorkflowName, ChainInput{ResultID: resultID}); err != nil {
		return pipeline.ChainHandles{}, fmt.Errorf("start chain workflow: %w", err)
	}
	s.log.Info("tuning chain started", "result_id", resultID, "task_queue", s.cfg.TaskQueue)
	return HandlesFor(resultID), nil
}

// JobStatus maps one stage workflow's visibility state onto the chain stage
// lifecycle. A stage whose child workflow has not started yet has no
// visibility record and reports PENDING.
func (s *Service) JobStatus(ctx context.Context, jobID string) (pipeline.JobStatus, error) {
	resp, err := s.tc.DescribeWorkflowExecution(ctx, jobID, "")
	if err != nil {
		var nfe *serviceerror.NotFound
		if errors.As(err, &nfe) {
			return pipeline.JobStatus{State: pipeline.StatePending}, nil
		}
		return pipeline.JobStatus{}, fmt.Errorf("%w: describe workflow %s: %v", apperr.ErrStageLookup, jobID, err)
	}

	info := resp.GetWorkflowExecutionInfo()
	switch info.GetStatus() {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return pipeline.JobStatus{State: pipeline.StateStarted}, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		st := pipeline.JobStatus{State: pipeline.StateSuccess}
		if ct := info.GetCloseTime(); ct != nil {
			t := ct.AsTime()
			st.CompletedAt = &t
		}
		return st, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED, enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return pipeline.JobStatus{State: pipeline.StateFailure}, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED, enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return pipeline.JobStatus{State: pipeline.StateRevoked}, nil
	default:
		return pipeline.JobStatus{State: pipeline.StatePending}, nil
	}
}
