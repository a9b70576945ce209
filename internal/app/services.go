package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/services"
	"github.com/selftune/selftune-backend/internal/temporalx/tuningchain"
	"github.com/selftune/selftune-backend/internal/tuning/ingest"
	"github.com/selftune/selftune-backend/internal/tuning/pipeline"
	"github.com/selftune/selftune-backend/internal/tuning/stages"
)

type Services struct {
	Session     *services.SessionService
	StageRunner *stages.Runner
	Exec        pipeline.ExecutionService
	Launcher    *pipeline.Launcher
	Aggregator  *pipeline.StatusAggregator
	Ingest      *ingest.Service
}

func wireServices(log *logger.Logger, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	sessionSvc := services.NewSessionService(reposet.Project, reposet.Session, reposet.Catalog, log)
	stageRunner := stages.NewRunner(reposet.Result, log)

	var exec pipeline.ExecutionService
	if clients.Temporal != nil {
		chainSvc, err := tuningchain.NewService(clients.Temporal, log)
		if err != nil {
			return Services{}, err
		}
		exec = chainSvc
	} else {
		exec = disabledExecutionService{}
	}

	launcher := pipeline.NewLauncher(exec, reposet.Result, log)
	aggregator := pipeline.NewStatusAggregator(exec, log)
	ingestSvc := ingest.NewService(reposet.Session, reposet.Catalog, reposet.Result, launcher, log)

	return Services{
		Session:     sessionSvc,
		StageRunner: stageRunner,
		Exec:        exec,
		Launcher:    launcher,
		Aggregator:  aggregator,
		Ingest:      ingestSvc,
	}, nil
}

// disabledExecutionService stands in when no Temporal address is configured.
// Dispatch fails cleanly, so results are stored with no job identifiers, and
// status lookups report the stage as unreachable.
type disabledExecutionService struct{}

func (disabledExecutionService) SubmitChain(ctx context.Context, resultID uuid.UUID) (pipeline.ChainHandles, error) {
	return pipeline.ChainHandles{}, fmt.Errorf("execution service is not configured")
}

func (disabledExecutionService) JobStatus(ctx context.Context, jobID string) (pipeline.JobStatus, error) {
	return pipeline.JobStatus{}, fmt.Errorf("execution service is not configured")
}
