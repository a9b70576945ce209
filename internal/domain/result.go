package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Workload identity is (dbms, hardware, name); created lazily on first
// observation that references it.
type Workload struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DBMSID     uuid.UUID `gorm:"type:uuid;column:dbms_id;not null;uniqueIndex:idx_workload_identity" json:"dbms_id"`
	HardwareID uuid.UUID `gorm:"type:uuid;column:hardware_id;not null;uniqueIndex:idx_workload_identity" json:"hardware_id"`
	Name       string    `gorm:"column:name;not null;uniqueIndex:idx_workload_identity" json:"name"`
}

func (Workload) TableName() string { return "workload" }

// KnobData is one immutable knob-configuration snapshot. Knobs holds every
// raw setting from the bundle; Data is the tunable-only numeric projection.
type KnobData struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID    uuid.UUID      `gorm:"type:uuid;column:session_id;not null;index" json:"session_id"`
	DBMSID       uuid.UUID      `gorm:"type:uuid;column:dbms_id;not null;index" json:"dbms_id"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	Knobs        datatypes.JSON `gorm:"column:knobs;type:jsonb;not null" json:"knobs"`
	Data         datatypes.JSON `gorm:"column:data;type:jsonb;not null" json:"data"`
	CreationTime time.Time      `gorm:"column:creation_time;not null;default:now()" json:"creation_time"`
}

func (KnobData) TableName() string { return "knob_data" }

// MetricData is one immutable metric snapshot. Metrics holds the delta map
// (counter diffs, gauge readings); Data is the scaled numeric projection.
type MetricData struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID    uuid.UUID      `gorm:"type:uuid;column:session_id;not null;index" json:"session_id"`
	DBMSID       uuid.UUID      `gorm:"type:uuid;column:dbms_id;not null;index" json:"dbms_id"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	Metrics      datatypes.JSON `gorm:"column:metrics;type:jsonb;not null" json:"metrics"`
	Data         datatypes.JSON `gorm:"column:data;type:jsonb;not null" json:"data"`
	CreationTime time.Time      `gorm:"column:creation_time;not null;default:now()" json:"creation_time"`
}

func (MetricData) TableName() string { return "metric_data" }

// Result is one tuning trial. TaskIDs is empty until a recommendation chain
// is dispatched, then holds exactly three comma-joined job identifiers in
// stage order; it is the only field mutated after creation, written once.
type Result struct {
	ID                   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID            uuid.UUID `gorm:"type:uuid;column:session_id;not null;index" json:"session_id"`
	DBMSID               uuid.UUID `gorm:"type:uuid;column:dbms_id;not null;index" json:"dbms_id"`
	WorkloadID           uuid.UUID `gorm:"type:uuid;column:workload_id;not null;index" json:"workload_id"`
	KnobDataID           uuid.UUID `gorm:"type:uuid;column:knob_data_id;not null" json:"knob_data_id"`
	MetricDataID         uuid.UUID `gorm:"type:uuid;column:metric_data_id;not null" json:"metric_data_id"`
	ObservationStartTime time.Time `gorm:"column:observation_start_time;not null" json:"observation_start_time"`
	ObservationEndTime   time.Time `gorm:"column:observation_end_time;not null;index" json:"observation_end_time"`
	ObservationTime      float64   `gorm:"column:observation_time;not null" json:"observation_time"`
	TaskIDs              string    `gorm:"column:task_ids;not null;default:''" json:"task_ids"`
	CreationTime         time.Time `gorm:"column:creation_time;not null;default:now()" json:"creation_time"`

	Session    *Session    `gorm:"foreignKey:SessionID" json:"session,omitempty"`
	Workload   *Workload   `gorm:"foreignKey:WorkloadID" json:"workload,omitempty"`
	KnobData   *KnobData   `gorm:"foreignKey:KnobDataID" json:"knob_data,omitempty"`
	MetricData *MetricData `gorm:"foreignKey:MetricDataID" json:"metric_data,omitempty"`
}

func (Result) TableName() string { return "result" }

// TaskIDList splits the comma-joined chain job identifiers, in stage order.
func (r *Result) TaskIDList() []string {
	if strings.TrimSpace(r.TaskIDs) == "" {
		return nil
	}
	return strings.Split(r.TaskIDs, ",")
}

// BackupData keeps the raw uploaded blobs and diff logs for audit/replay,
// 1:1 with a Result.
type BackupData struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ResultID          uuid.UUID      `gorm:"type:uuid;column:result_id;not null;uniqueIndex" json:"result_id"`
	RawSummary        datatypes.JSON `gorm:"column:raw_summary;type:jsonb" json:"raw_summary"`
	RawKnobs          datatypes.JSON `gorm:"column:raw_knobs;type:jsonb" json:"raw_knobs"`
	RawInitialMetrics datatypes.JSON `gorm:"column:raw_initial_metrics;type:jsonb" json:"raw_initial_metrics"`
	RawFinalMetrics   datatypes.JSON `gorm:"column:raw_final_metrics;type:jsonb" json:"raw_final_metrics"`
	KnobLog           datatypes.JSON `gorm:"column:knob_log;type:jsonb" json:"knob_log"`
	MetricLog         datatypes.JSON `gorm:"column:metric_log;type:jsonb" json:"metric_log"`
	CreationTime      time.Time      `gorm:"column:creation_time;not null;default:now()" json:"creation_time"`
}

func (BackupData) TableName() string { return "backup_data" }

// PipelineResult stores the output of one recommendation-chain stage for audit.
type PipelineResult struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ResultID     uuid.UUID      `gorm:"type:uuid;column:result_id;not null;index" json:"result_id"`
	TaskType     string         `gorm:"column:task_type;not null;index" json:"task_type"`
	Value        datatypes.JSON `gorm:"column:value;type:jsonb;not null" json:"value"`
	CreationTime time.Time      `gorm:"column:creation_time;not null;default:now()" json:"creation_time"`
}

func (PipelineResult) TableName() string { return "pipeline_result" }
