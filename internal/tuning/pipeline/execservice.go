package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StageState is the lifecycle state of one chain stage as reported by the
// execution service. A stage moves from PENDING through RECEIVED and STARTED
// to one of SUCCESS, FAILURE or REVOKED. UNAVAILABLE means the lookup itself
// failed.
type StageState string

const (
	StatePending     StageState = "PENDING"
	StateReceived    StageState = "RECEIVED"
	StateStarted     StageState = "STARTED"
	StateSuccess     StageState = "SUCCESS"
	StateFailure     StageState = "FAILURE"
	StateRevoked     StageState = "REVOKED"
	StateUnavailable StageState = "UNAVAILABLE"

	// StateNotApplicable is an overall status only: the result belongs to a
	// non-tuning session and no chain was ever dispatched.
	StateNotApplicable StageState = "NOT_APPLICABLE"
)

// Terminal reports whether a stage can no longer transition.
func (s StageState) Terminal() bool {
	switch s {
	case StateSuccess, StateFailure, StateRevoked:
		return true
	}
	return false
}

// StageName identifies one stage of the recommendation chain.
type StageName string

const (
	StageAggregate   StageName = "aggregate_target_results"
	StageMapWorkload StageName = "map_workload"
	StageRecommend   StageName = "configuration_recommendation"
)

// StageOrder is the chain's document order; job identifiers are always
// recorded and reported in this order.
var StageOrder = [3]StageName{StageAggregate, StageMapWorkload, StageRecommend}

// ChainHandles holds the three job identifiers of one dispatched chain.
type ChainHandles struct {
	AggregateID string
	MapID       string
	RecommendID string
}

// List returns the identifiers in stage order.
func (h ChainHandles) List() []string {
	return []string{h.AggregateID, h.MapID, h.RecommendID}
}

// Join renders the comma-joined form stored on a result.
func (h ChainHandles) Join() string {
	return strings.Join(h.List(), ",")
}

// ParseTaskIDs splits a result's comma-joined job identifiers. ok is false
// when the result carries no chain (non-tuning session or dispatch failure).
func ParseTaskIDs(taskIDs string) (ChainHandles, bool) {
	if strings.TrimSpace(taskIDs) == "" {
		return ChainHandles{}, false
	}
	parts := strings.Split(taskIDs, ",")
	if len(parts) != len(StageOrder) {
		return ChainHandles{}, false
	}
	return ChainHandles{AggregateID: parts[0], MapID: parts[1], RecommendID: parts[2]}, true
}

// JobStatus is one stage's observed state.
type JobStatus struct {
	State       StageState
	CompletedAt *time.Time
}

// ExecutionService is the external asynchronous execution service. SubmitChain
// dispatches the three-stage recommendation chain atomically: either all
// three identifiers exist after a successful call, or none do. JobStatus is a
// read-only lookup of one stage.
type ExecutionService interface {
	SubmitChain(ctx context.Context, resultID uuid.UUID) (ChainHandles, error)
	JobStatus(ctx context.Context, jobID string) (JobStatus, error)
}
