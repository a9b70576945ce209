package tuningchain

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/tuning/stages"
)

// Activities binds the stage computations to the worker. Each activity is a
// thin shell over the stage runner; the runner owns persistence of stage
// outputs.
type Activities struct {
	Log    *logger.Logger
	Runner *stages.Runner
}

func (a *Activities) AggregateTargetResults(ctx context.Context, resultID uuid.UUID) (*stages.AggregateSummary, error) {
	if a == nil || a.Runner == nil {
		return nil, fmt.Errorf("tuningchain: activity not configured")
	}
	return a.Runner.AggregateTargetResults(ctx, resultID)
}

func (a *Activities) MapWorkload(ctx context.Context, in MapInput) (*stages.MappedWorkload, error) {
	if a == nil || a.Runner == nil {
		return nil, fmt.Errorf("tuningchain: activity not configured")
	}
	if in.Aggregate == nil {
		return nil, fmt.Errorf("tuningchain: map stage missing aggregate output")
	}
	return a.Runner.MapWorkload(ctx, in.Input.ResultID, in.Aggregate)
}

func (a *Activities) ConfigurationRecommendation(ctx context.Context, in RecommendInput) (*stages.Recommendation, error) {
	if a == nil || a.Runner == nil {
		return nil, fmt.Errorf("tuningchain: activity not configured")
	}
	if in.Mapped == nil {
		return nil, fmt.Errorf("tuningchain: recommend stage missing mapped workload")
	}
	return a.Runner.ConfigurationRecommendation(ctx, in.Input.ResultID, in.Mapped)
}
