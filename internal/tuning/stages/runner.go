package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/selftune/selftune-backend/internal/data/repos/results"
	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

// Stage task types recorded on pipeline result rows.
const (
	TaskAggregate = "aggregate_target_results"
	TaskMap       = "map_workload"
	TaskRecommend = "configuration_recommendation"
)

// Runner executes the three recommendation-chain stages against the
// observation store. Each stage persists its output as a pipeline result row
// keyed by the triggering result, so every recommendation is auditable.
type Runner struct {
	results results.ResultRepo
	log     *logger.Logger
}

func NewRunner(resultRepo results.ResultRepo, baseLog *logger.Logger) *Runner {
	return &Runner{
		results: resultRepo,
		log:     baseLog.With("component", "StageRunner"),
	}
}

// AggregateSummary is the output of the aggregation stage: the session's
// observation history collapsed into per-metric means plus the shared knob
// and metric dimensions every later stage works over.
type AggregateSummary struct {
	SessionID   uuid.UUID          `json:"session_id"`
	NumResults  int                `json:"num_results"`
	KnobNames   []string           `json:"knob_names"`
	MetricNames []string           `json:"metric_names"`
	MetricMeans map[string]float64 `json:"metric_means"`
}

// AggregateTargetResults collects every prior observation of the triggering
// result's session and reduces it to the shared-dimension summary consumed
// by the mapping stage.
func (r *Runner) AggregateTargetResults(ctx context.Context, resultID uuid.UUID) (*AggregateSummary, error) {
	dbc := dbctx.New(ctx)
	target, err := r.results.GetByID(dbc, resultID)
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	history, err := r.results.ListBySession(dbc, target.SessionID)
	if err != nil {
		return nil, fmt.Errorf("list session results: %w", err)
	}

	knobRows := make([]map[string]float64, 0, len(history))
	metricRows := make([]map[string]float64, 0, len(history))
	for _, res := range history {
		if res.KnobData == nil || res.MetricData == nil {
			continue
		}
		kv, err := decodeVector(res.KnobData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode knob data %s: %w", res.KnobDataID, err)
		}
		mv, err := decodeVector(res.MetricData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode metric data %s: %w", res.MetricDataID, err)
		}
		knobRows = append(knobRows, kv)
		metricRows = append(metricRows, mv)
	}
	if len(metricRows) == 0 {
		return nil, fmt.Errorf("session %s has no decodable observations", target.SessionID)
	}

	summary := &AggregateSummary{
		SessionID:   target.SessionID,
		NumResults:  len(metricRows),
		KnobNames:   sharedKeys(knobRows...),
		MetricNames: sharedKeys(metricRows...),
		MetricMeans: columnMeans(metricRows),
	}
	if err := r.store(dbc, resultID, TaskAggregate, summary); err != nil {
		return nil, err
	}
	r.log.Info("aggregated target results",
		"result_id", resultID, "num_results", summary.NumResults)
	return summary, nil
}

// MappedWorkload is the output of the mapping stage: the known workload whose
// observed metric profile sits closest to the target session's.
type MappedWorkload struct {
	WorkloadID    uuid.UUID `json:"workload_id"`
	WorkloadName  string    `json:"workload_name"`
	Distance      float64   `json:"distance"`
	NumCandidates int       `json:"num_candidates"`
}

// MapWorkload matches the target session's aggregated metric profile against
// every known workload on the same DBMS and hardware, by Euclidean distance
// over the shared metric dimensions. The target's own observations
// participate, so a session always maps to at least its own workload.
func (r *Runner) MapWorkload(ctx context.Context, resultID uuid.UUID, agg *AggregateSummary) (*MappedWorkload, error) {
	dbc := dbctx.New(ctx)
	target, err := r.results.GetByID(dbc, resultID)
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	if target.Session == nil {
		return nil, fmt.Errorf("result %s has no session", resultID)
	}
	workloads, err := r.results.ListWorkloads(dbc, target.DBMSID, target.Session.HardwareID)
	if err != nil {
		return nil, fmt.Errorf("list workloads: %w", err)
	}

	var best *MappedWorkload
	candidates := 0
	for _, w := range workloads {
		profile, n, err := r.workloadProfile(dbc, w.ID)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		keys := sharedKeys(agg.MetricMeans, profile)
		if len(keys) == 0 {
			continue
		}
		candidates++
		dist := euclideanDistance(vectorFor(agg.MetricMeans, keys), vectorFor(profile, keys))
		if best == nil || dist < best.Distance {
			best = &MappedWorkload{WorkloadID: w.ID, WorkloadName: w.Name, Distance: dist}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no comparable workload for result %s", resultID)
	}
	best.NumCandidates = candidates

	if err := r.store(dbc, resultID, TaskMap, best); err != nil {
		return nil, err
	}
	r.log.Info("mapped workload",
		"result_id", resultID, "workload", best.WorkloadName, "distance", best.Distance)
	return best, nil
}

// workloadProfile averages the scaled metric vectors of every observation of
// one workload.
func (r *Runner) workloadProfile(dbc dbctx.Context, workloadID uuid.UUID) (map[string]float64, int, error) {
	observations, err := r.results.ListByWorkload(dbc, workloadID)
	if err != nil {
		return nil, 0, fmt.Errorf("list workload results: %w", err)
	}
	rows := make([]map[string]float64, 0, len(observations))
	for _, res := range observations {
		if res.MetricData == nil {
			continue
		}
		mv, err := decodeVector(res.MetricData.Data)
		if err != nil {
			return nil, 0, fmt.Errorf("decode metric data %s: %w", res.MetricDataID, err)
		}
		rows = append(rows, mv)
	}
	return columnMeans(rows), len(rows), nil
}

// Recommendation is the output of the final stage: the best knob
// configuration observed on the mapped workload, judged by the session's
// target objective.
type Recommendation struct {
	WorkloadID      uuid.UUID          `json:"workload_id"`
	SourceResultID  uuid.UUID          `json:"source_result_id"`
	TargetObjective string             `json:"target_objective"`
	ObjectiveValue  float64            `json:"objective_value"`
	Knobs           map[string]float64 `json:"knobs"`
}

// ConfigurationRecommendation picks, among every observation of the mapped
// workload, the knob configuration with the best target-objective reading.
// Larger is better; the target objective names a scaled metric.
func (r *Runner) ConfigurationRecommendation(ctx context.Context, resultID uuid.UUID, mapped *MappedWorkload) (*Recommendation, error) {
	dbc := dbctx.New(ctx)
	target, err := r.results.GetByID(dbc, resultID)
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	if target.Session == nil {
		return nil, fmt.Errorf("result %s has no session", resultID)
	}
	objective := target.Session.TargetObjective

	observations, err := r.results.ListByWorkload(dbc, mapped.WorkloadID)
	if err != nil {
		return nil, fmt.Errorf("list workload results: %w", err)
	}

	var best *Recommendation
	for _, res := range observations {
		if res.KnobData == nil || res.MetricData == nil {
			continue
		}
		mv, err := decodeVector(res.MetricData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode metric data %s: %w", res.MetricDataID, err)
		}
		reading, ok := mv[objective]
		if !ok {
			continue
		}
		if best != nil && reading <= best.ObjectiveValue {
			continue
		}
		kv, err := decodeVector(res.KnobData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode knob data %s: %w", res.KnobDataID, err)
		}
		best = &Recommendation{
			WorkloadID:      mapped.WorkloadID,
			SourceResultID:  res.ID,
			TargetObjective: objective,
			ObjectiveValue:  reading,
			Knobs:           kv,
		}
	}
	if best == nil {
		return nil, fmt.Errorf("workload %s has no observation with objective %q", mapped.WorkloadID, objective)
	}

	if err := r.store(dbc, resultID, TaskRecommend, best); err != nil {
		return nil, err
	}
	r.log.Info("configuration recommendation ready",
		"result_id", resultID, "objective", objective, "value", best.ObjectiveValue)
	return best, nil
}

func (r *Runner) store(dbc dbctx.Context, resultID uuid.UUID, taskType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s output: %w", taskType, err)
	}
	pr := &types.PipelineResult{
		ResultID: resultID,
		TaskType: taskType,
		Value:    datatypes.JSON(raw),
	}
	if err := r.results.CreatePipelineResult(dbc, pr); err != nil {
		return fmt.Errorf("store %s output: %w", taskType, err)
	}
	return nil
}

func decodeVector(raw datatypes.JSON) (map[string]float64, error) {
	var out map[string]float64
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
