package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/selftune/selftune-backend/internal/data/repos/catalog"
	"github.com/selftune/selftune-backend/internal/data/repos/results"
	"github.com/selftune/selftune-backend/internal/data/repos/sessions"
	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/tuning/bundle"
	"github.com/selftune/selftune-backend/internal/tuning/pipeline"
)

// Service ingests one uploaded result bundle end to end: session lookup,
// catalog-driven normalization, atomic persistence and, for tuning sessions,
// dispatch of the recommendation chain.
type Service struct {
	sessions sessions.SessionRepo
	catalog  catalog.CatalogRepo
	results  results.ResultRepo
	launcher *pipeline.Launcher
	log      *logger.Logger
}

func NewService(
	sessionRepo sessions.SessionRepo,
	catalogRepo catalog.CatalogRepo,
	resultRepo results.ResultRepo,
	launcher *pipeline.Launcher,
	baseLog *logger.Logger,
) *Service {
	return &Service{
		sessions: sessionRepo,
		catalog:  catalogRepo,
		results:  resultRepo,
		launcher: launcher,
		log:      baseLog.With("service", "IngestService"),
	}
}

// Outcome reports one successful ingestion. A failed chain dispatch does not
// fail the ingestion; the stored result simply carries no job identifiers and
// DispatchErr records why.
type Outcome struct {
	Result        *types.Result
	Session       *types.Session
	Launched      bool
	DispatchState pipeline.StageState
	DispatchErr   error
}

// HandleUpload validates and persists one result bundle. Validation failures
// before persistence leave no trace in the store.
func (s *Service) HandleUpload(ctx context.Context, uploadCode string, files map[string][]byte) (*Outcome, error) {
	dbc := dbctx.New(ctx)

	session, err := s.sessions.GetByUploadCode(dbc, uploadCode)
	if err != nil {
		return nil, err
	}

	bun, summary, err := bundle.Decode(files)
	if err != nil {
		return nil, err
	}

	dbms, err := s.catalog.ResolveDBMS(dbc, summary.DatabaseType, summary.DatabaseVersion)
	if err != nil {
		return nil, err
	}
	if dbms.ID != session.DBMSID {
		expected, err := s.catalog.GetDBMSByID(dbc, session.DBMSID)
		if err != nil {
			return nil, fmt.Errorf("load session dbms: %w", err)
		}
		return nil, &apperr.DBMSMismatchError{Expected: expected.FullName(), Actual: dbms.FullName()}
	}

	knobDefs, err := s.catalog.KnobsByDBMS(dbc, dbms.ID)
	if err != nil {
		return nil, fmt.Errorf("load knob catalog: %w", err)
	}
	metricDefs, err := s.catalog.MetricsByDBMS(dbc, dbms.ID)
	if err != nil {
		return nil, fmt.Errorf("load metric catalog: %w", err)
	}
	cat := &bundle.Catalog{DBMS: dbms, Knobs: knobDefs, Metrics: metricDefs}

	knobReport, err := bundle.ParseKnobs(cat, bun.Knobs)
	if err != nil {
		return nil, err
	}
	before, err := bundle.ParseMetrics(cat, bun.MetricsBefore)
	if err != nil {
		return nil, err
	}
	after, err := bundle.ParseMetrics(cat, bun.MetricsAfter)
	if err != nil {
		return nil, err
	}
	delta := bundle.DeltaMetrics(cat, before, after)
	scaled := bundle.ScaledMetrics(cat, delta)

	knobData, err := buildKnobData(bun, knobReport)
	if err != nil {
		return nil, err
	}
	metricData, err := buildMetricData(bun, delta, scaled)
	if err != nil {
		return nil, err
	}
	backup, err := buildBackup(bun, knobReport, before, after)
	if err != nil {
		return nil, err
	}

	result, freshSession, err := s.results.RecordObservation(dbc, results.ObservationParams{
		Session:            session,
		DBMS:               dbms,
		WorkloadName:       summary.WorkloadName,
		KnobData:           knobData,
		MetricData:         metricData,
		Backup:             backup,
		StartTime:          summary.StartTime,
		EndTime:            summary.EndTime,
		ObservationTime:    summary.ObservationTime,
		NondefaultSettings: bundle.NondefaultKnobs(cat, knobReport),
	})
	if err != nil {
		return nil, fmt.Errorf("record observation: %w", err)
	}
	s.log.Info("observation stored",
		"result_id", result.ID,
		"session_id", session.ID,
		"workload", summary.WorkloadName,
		"knob_diffs", len(knobReport.Diffs))

	outcome := &Outcome{Result: result, Session: freshSession}
	launch, err := s.launcher.MaybeLaunchRecommendation(dbc, freshSession, result)
	if err != nil {
		// The observation is already durable; surface the dispatch failure to
		// the caller without undoing the ingestion.
		s.log.Error("chain dispatch failed", "result_id", result.ID, "error", err)
		outcome.DispatchErr = err
		return outcome, nil
	}
	outcome.Launched = launch.Launched
	outcome.DispatchState = launch.DispatchState
	return outcome, nil
}

func buildKnobData(bun *bundle.Bundle, report *bundle.KnobReport) (*types.KnobData, error) {
	knobs, err := json.Marshal(report.Normalized())
	if err != nil {
		return nil, fmt.Errorf("encode knob snapshot: %w", err)
	}
	data, err := json.Marshal(report.Tunable)
	if err != nil {
		return nil, fmt.Errorf("encode tunable knobs: %w", err)
	}
	return &types.KnobData{
		Name:  bundle.ContentName("knobs", bun.Knobs),
		Knobs: datatypes.JSON(knobs),
		Data:  datatypes.JSON(data),
	}, nil
}

func buildMetricData(bun *bundle.Bundle, delta, scaled map[string]float64) (*types.MetricData, error) {
	metrics, err := json.Marshal(delta)
	if err != nil {
		return nil, fmt.Errorf("encode metric deltas: %w", err)
	}
	data, err := json.Marshal(scaled)
	if err != nil {
		return nil, fmt.Errorf("encode scaled metrics: %w", err)
	}
	return &types.MetricData{
		Name:    bundle.ContentName("metrics", bun.MetricsAfter),
		Metrics: datatypes.JSON(metrics),
		Data:    datatypes.JSON(data),
	}, nil
}

func buildBackup(bun *bundle.Bundle, knobs *bundle.KnobReport, before, after *bundle.MetricReport) (*types.BackupData, error) {
	knobLog, err := json.Marshal(knobs.Diffs)
	if err != nil {
		return nil, fmt.Errorf("encode knob diff log: %w", err)
	}
	metricLog, err := json.Marshal(map[string][]bundle.DiffEntry{
		"before": before.Diffs,
		"after":  after.Diffs,
	})
	if err != nil {
		return nil, fmt.Errorf("encode metric diff log: %w", err)
	}
	return &types.BackupData{
		RawSummary:        datatypes.JSON(bun.Summary),
		RawKnobs:          datatypes.JSON(bun.Knobs),
		RawInitialMetrics: datatypes.JSON(bun.MetricsBefore),
		RawFinalMetrics:   datatypes.JSON(bun.MetricsAfter),
		KnobLog:           datatypes.JSON(knobLog),
		MetricLog:         datatypes.JSON(metricLog),
	}, nil
}
