package tuningworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/selftune/selftune-backend/internal/pkg/envutil"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/temporalx"
	"github.com/selftune/selftune-backend/internal/temporalx/tuningchain"
	"github.com/selftune/selftune-backend/internal/tuning/stages"
)

// Runner hosts the tuning-chain workflows and activities on the configured
// task queue.
type Runner struct {
	log    *logger.Logger
	tc     temporalsdkclient.Client
	runner *stages.Runner
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, stageRunner *stages.Runner) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if stageRunner == nil {
		return nil, fmt.Errorf("temporal worker missing stage runner")
	}
	return &Runner{log: log, tc: tc, runner: stageRunner}, nil
}

// Start begins polling, retrying transient frontend failures until the
// configured deadline. The worker stops when ctx is canceled.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	cfg := temporalx.LoadConfig()
	r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	maxWait := time.Duration(envutil.GetEnvAsInt("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60, r.log)) * time.Second
	backoff := time.Duration(envutil.GetEnvAsInt("TEMPORAL_WORKER_START_BACKOFF_MS", 250, r.log)) * time.Millisecond
	backoffMax := time.Duration(envutil.GetEnvAsInt("TEMPORAL_WORKER_START_BACKOFF_MAX_MS", 5000, r.log)) * time.Millisecond
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w := r.newWorker(cfg)
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) {
			return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
		}
		if !temporalx.IsRetryableRPC(startErr) || maxWait <= 0 || time.Now().After(deadline) {
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", cfg.TaskQueue, "attempt", attempt, "error", startErr)
		time.Sleep(clampBackoff(backoff, backoffMax, attempt))
	}
}

func (r *Runner) newWorker(cfg temporalx.Config) worker.Worker {
	concurrency := envutil.GetEnvAsInt("WORKER_CONCURRENCY", 4, r.log)
	if concurrency < 1 {
		concurrency = 1
	}

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	acts := &tuningchain.Activities{Log: r.log, Runner: r.runner}

	w.RegisterWorkflowWithOptions(tuningchain.ChainWorkflow, workflow.RegisterOptions{Name: tuningchain.ChainWorkflowName})
	w.RegisterWorkflowWithOptions(tuningchain.AggregateWorkflow, workflow.RegisterOptions{Name: tuningchain.AggregateWorkflowName})
	w.RegisterWorkflowWithOptions(tuningchain.MapWorkflow, workflow.RegisterOptions{Name: tuningchain.MapWorkflowName})
	w.RegisterWorkflowWithOptions(tuningchain.RecommendWorkflow, workflow.RegisterOptions{Name: tuningchain.RecommendWorkflowName})
	w.RegisterActivityWithOptions(acts.AggregateTargetResults, activity.RegisterOptions{Name: tuningchain.ActivityAggregate})
	w.RegisterActivityWithOptions(acts.MapWorkload, activity.RegisterOptions{Name: tuningchain.ActivityMap})
	w.RegisterActivityWithOptions(acts.ConfigurationRecommendation, activity.RegisterOptions{Name: tuningchain.ActivityRecommend})
	return w
}

func clampBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}
