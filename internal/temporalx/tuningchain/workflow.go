package tuningchain

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/selftune/selftune-backend/internal/tuning/pipeline"
	"github.com/selftune/selftune-backend/internal/tuning/stages"
)

// MapInput carries the aggregation output into the mapping stage.
type MapInput struct {
	Input     ChainInput               `json:"input"`
	Aggregate *stages.AggregateSummary `json:"aggregate"`
}

// RecommendInput carries the mapping output into the recommendation stage.
type RecommendInput struct {
	Input  ChainInput             `json:"input"`
	Mapped *stages.MappedWorkload `json:"mapped"`
}

// ChainWorkflow runs the three stages strictly in order, each as a child
// workflow under its precomputed identifier. A stage failure fails the parent
// and the remaining children are never started, so their lookups keep
// reporting PENDING.
func ChainWorkflow(ctx workflow.Context, in ChainInput) error {
	var agg stages.AggregateSummary
	aggCtx := childCtx(ctx, pipeline.StageAggregate, in)
	if err := workflow.ExecuteChildWorkflow(aggCtx, AggregateWorkflowName, in).Get(ctx, &agg); err != nil {
		return fmt.Errorf("aggregate stage: %w", err)
	}

	var mapped stages.MappedWorkload
	mapCtx := childCtx(ctx, pipeline.StageMapWorkload, in)
	mapIn := MapInput{Input: in, Aggregate: &agg}
	if err := workflow.ExecuteChildWorkflow(mapCtx, MapWorkflowName, mapIn).Get(ctx, &mapped); err != nil {
		return fmt.Errorf("map stage: %w", err)
	}

	recCtx := childCtx(ctx, pipeline.StageRecommend, in)
	recIn := RecommendInput{Input: in, Mapped: &mapped}
	if err := workflow.ExecuteChildWorkflow(recCtx, RecommendWorkflowName, recIn).Get(ctx, nil); err != nil {
		return fmt.Errorf("recommend stage: %w", err)
	}
	return nil
}

func childCtx(ctx workflow.Context, stage pipeline.StageName, in ChainInput) workflow.Context {
	return workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: StageWorkflowID(stage, in.ResultID),
	})
}

func activityCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})
}

// AggregateWorkflow wraps the aggregation activity as the chain's first
// stage.
func AggregateWorkflow(ctx workflow.Context, in ChainInput) (*stages.AggregateSummary, error) {
	var out stages.AggregateSummary
	if err := workflow.ExecuteActivity(activityCtx(ctx), ActivityAggregate, in.ResultID).Get(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MapWorkflow wraps the workload-mapping activity as the chain's second
// stage.
func MapWorkflow(ctx workflow.Context, in MapInput) (*stages.MappedWorkload, error) {
	var out stages.MappedWorkload
	if err := workflow.ExecuteActivity(activityCtx(ctx), ActivityMap, in).Get(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecommendWorkflow wraps the recommendation activity as the chain's final
// stage.
func RecommendWorkflow(ctx workflow.Context, in RecommendInput) (*stages.Recommendation, error) {
	var out stages.Recommendation
	if err := workflow.ExecuteActivity(activityCtx(ctx), ActivityRecommend, in).Get(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
