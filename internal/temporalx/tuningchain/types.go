package tuningchain

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/selftune/selftune-backend/internal/tuning/pipeline"
)

// Registered workflow and activity names.
const (
	ChainWorkflowName     = "tuning_chain"
	AggregateWorkflowName = "tuning_aggregate"
	MapWorkflowName       = "tuning_map_workload"
	RecommendWorkflowName = "tuning_recommend"

	ActivityAggregate = "tuning_aggregate_target_results"
	ActivityMap       = "tuning_map_workload_activity"
	ActivityRecommend = "tuning_configuration_recommendation"
)

// ChainInput is the parent workflow's only argument.
type ChainInput struct {
	ResultID uuid.UUID `json:"result_id"`
}

// ChainWorkflowID derives the parent workflow identifier for a result. The
// identifier is deterministic so a duplicate dispatch for the same result
// collides instead of spawning a second chain.
func ChainWorkflowID(resultID uuid.UUID) string {
	return fmt.Sprintf("tuning-chain-%s", resultID)
}

// StageWorkflowID derives the child workflow identifier of one stage. Stage
// identifiers are computable from the result alone, so the caller can record
// all three before the chain produces any history.
func StageWorkflowID(stage pipeline.StageName, resultID uuid.UUID) string {
	return fmt.Sprintf("tuning-%s-%s", stage, resultID)
}

// HandlesFor lists the three stage identifiers of a result's chain, in stage
// order.
func HandlesFor(resultID uuid.UUID) pipeline.ChainHandles {
	return pipeline.ChainHandles{
		AggregateID: StageWorkflowID(pipeline.StageAggregate, resultID),
		MapID:       StageWorkflowID(pipeline.StageMapWorkload, resultID),
		RecommendID: StageWorkflowID(pipeline.StageRecommend, resultID),
	}
}
