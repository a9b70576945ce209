package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/selftune/selftune-backend/internal/data/db"
	"github.com/selftune/selftune-backend/internal/data/repos/results"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/temporalx"
	"github.com/selftune/selftune-backend/internal/temporalx/tuningworker"
	"github.com/selftune/selftune-backend/internal/tuning/stages"
)

func main() {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}

	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Fatal("Temporal init failed", "error", err)
	}
	if tc == nil {
		log.Fatal("TEMPORAL_ADDRESS is required for the worker")
	}
	defer tc.Close()

	resultRepo := results.NewResultRepo(pg.DB(), log)
	stageRunner := stages.NewRunner(resultRepo, log)

	runner, err := tuningworker.NewRunner(log, tc, stageRunner)
	if err != nil {
		log.Fatal("Worker init failed", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		log.Fatal("Worker start failed", "error", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutting down worker")
	cancel()
}
