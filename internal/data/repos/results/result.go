package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

// ObservationParams carries everything one upload produces. KnobData,
// MetricData and Backup arrive without identity/ownership fields; the repo
// assigns those inside the transaction.
type ObservationParams struct {
	Session      *types.Session
	DBMS         *types.DBMSCatalog
	WorkloadName string

	KnobData   *types.KnobData
	MetricData *types.MetricData
	Backup     *types.BackupData

	StartTime       time.Time
	EndTime         time.Time
	ObservationTime float64

	// NondefaultSettings is the list of knobs whose uploaded value differs
	// from the catalog default; written to the session once per lifetime.
	NondefaultSettings []string
}

type ResultRepo interface {
	// RecordObservation atomically persists the knob snapshot, metric
	// snapshot, result, backup record and (if new) workload, and bumps the
	// owning session and project. Returns the result and refreshed session.
	RecordObservation(dbc dbctx.Context, p ObservationParams) (*types.Result, *types.Session, error)
	// SetTaskIDs records the chain job identifiers; write-once. Returns
	// false when the result already carries identifiers.
	SetTaskIDs(dbc dbctx.Context, resultID uuid.UUID, taskIDs string) (bool, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Result, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Result, error)
	ListByWorkload(dbc dbctx.Context, workloadID uuid.UUID) ([]*types.Result, error)
	GetKnobData(dbc dbctx.Context, id uuid.UUID) (*types.KnobData, error)
	GetMetricData(dbc dbctx.Context, id uuid.UUID) (*types.MetricData, error)
	GetWorkload(dbc dbctx.Context, id uuid.UUID) (*types.Workload, error)
	ListWorkloads(dbc dbctx.Context, dbmsID, hardwareID uuid.UUID) ([]*types.Workload, error)
	GetBackup(dbc dbctx.Context, resultID uuid.UUID) (*types.BackupData, error)
	CreatePipelineResult(dbc dbctx.Context, pr *types.PipelineResult) error
	ListPipelineResults(dbc dbctx.Context, resultID uuid.UUID) ([]*types.PipelineResult, error)
}

type resultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResultRepo(db *gorm.DB, baseLog *logger.Logger) ResultRepo {
	return &resultRepo{
		db:  db,
		log: baseLog.With("repo", "ResultRepo"),
	}
}

func (r *resultRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *resultRepo) RecordObservation(dbc dbctx.Context, p ObservationParams) (*types.Result, *types.Session, error) {
	if p.Session == nil || p.DBMS == nil || p.KnobData == nil || p.MetricData == nil || p.Backup == nil {
		return nil, nil, fmt.Errorf("record observation: incomplete params")
	}

	var (
		result  *types.Result
		session types.Session
	)
	err := r.conn(dbc).WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		workload, err := lookupOrCreateWorkload(tx, p.DBMS.ID, p.Session.HardwareID, p.WorkloadName)
		if err != nil {
			return err
		}

		p.KnobData.SessionID = p.Session.ID
		p.KnobData.DBMSID = p.DBMS.ID
		p.KnobData.CreationTime = now
		if err := tx.Create(p.KnobData).Error; err != nil {
			return fmt.Errorf("create knob data: %w", err)
		}

		p.MetricData.SessionID = p.Session.ID
		p.MetricData.DBMSID = p.DBMS.ID
		p.MetricData.CreationTime = now
		if err := tx.Create(p.MetricData).Error; err != nil {
			return fmt.Errorf("create metric data: %w", err)
		}

		result = &types.Result{
			SessionID:            p.Session.ID,
			DBMSID:               p.DBMS.ID,
			WorkloadID:           workload.ID,
			KnobDataID:           p.KnobData.ID,
			MetricDataID:         p.MetricData.ID,
			ObservationStartTime: p.StartTime,
			ObservationEndTime:   p.EndTime,
			ObservationTime:      p.ObservationTime,
			CreationTime:         now,
		}
		if err := tx.Create(result).Error; err != nil {
			return fmt.Errorf("create result: %w", err)
		}

		p.Backup.ResultID = result.ID
		p.Backup.CreationTime = now
		if err := tx.Create(p.Backup).Error; err != nil {
			return fmt.Errorf("create backup data: %w", err)
		}

		sessionUpdates := map[string]interface{}{"last_update": now}
		if err := tx.Model(&types.Session{}).
			Where("id = ?", p.Session.ID).
			Updates(sessionUpdates).Error; err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		if len(p.NondefaultSettings) > 0 {
			raw, err := json.Marshal(p.NondefaultSettings)
			if err != nil {
				return fmt.Errorf("encode nondefault settings: %w", err)
			}
			// Write-once per session lifetime.
			if err := tx.Model(&types.Session{}).
				Where("id = ? AND nondefault_settings IS NULL", p.Session.ID).
				Update("nondefault_settings", datatypes.JSON(raw)).Error; err != nil {
				return fmt.Errorf("set nondefault settings: %w", err)
			}
		}
		if err := tx.Model(&types.Project{}).
			Where("id = ?", p.Session.ProjectID).
			Update("last_update", now).Error; err != nil {
			return fmt.Errorf("touch project: %w", err)
		}

		if err := tx.Where("id = ?", p.Session.ID).First(&session).Error; err != nil {
			return fmt.Errorf("reload session: %w", err)
		}
		result.Workload = workload
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, &session, nil
}

// lookupOrCreateWorkload is safe under concurrent creation: the insert is
// conflict-tolerant against the (dbms, hardware, name) unique index and the
// winner is re-read afterwards.
func lookupOrCreateWorkload(tx *gorm.DB, dbmsID, hardwareID uuid.UUID, name string) (*types.Workload, error) {
	w := types.Workload{DBMSID: dbmsID, HardwareID: hardwareID, Name: name}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&w).Error; err != nil {
		return nil, fmt.Errorf("create workload: %w", err)
	}
	if w.ID != uuid.Nil {
		return &w, nil
	}
	var existing types.Workload
	if err := tx.Where("dbms_id = ? AND hardware_id = ? AND name = ?", dbmsID, hardwareID, name).
		First(&existing).Error; err != nil {
		return nil, fmt.Errorf("lookup workload: %w", err)
	}
	return &existing, nil
}

func (r *resultRepo) SetTaskIDs(dbc dbctx.Context, resultID uuid.UUID, taskIDs string) (bool, error) {
	if resultID == uuid.Nil || taskIDs == "" {
		return false, fmt.Errorf("set task ids: missing result id or task ids")
	}
	res := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Result{}).
		Where("id = ? AND task_ids = ''", resultID).
		Update("task_ids", taskIDs)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *resultRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Result, error) {
	var result types.Result
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Preload("Session").
		Preload("Workload").
		Preload("KnobData").
		Preload("MetricData").
		Where("id = ?", id).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *resultRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Result, error) {
	var out []*types.Result
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Preload("Workload").
		Preload("KnobData").
		Preload("MetricData").
		Where("session_id = ?", sessionID).
		Order("observation_end_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *resultRepo) ListByWorkload(dbc dbctx.Context, workloadID uuid.UUID) ([]*types.Result, error) {
	var out []*types.Result
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Preload("KnobData").
		Preload("MetricData").
		Where("workload_id = ?", workloadID).
		Order("observation_end_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *resultRepo) GetKnobData(dbc dbctx.Context, id uuid.UUID) (*types.KnobData, error) {
	var kd types.KnobData
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&kd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kd, nil
}

func (r *resultRepo) GetMetricData(dbc dbctx.Context, id uuid.UUID) (*types.MetricData, error) {
	var md types.MetricData
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&md).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &md, nil
}

func (r *resultRepo) GetWorkload(dbc dbctx.Context, id uuid.UUID) (*types.Workload, error) {
	var w types.Workload
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *resultRepo) ListWorkloads(dbc dbctx.Context, dbmsID, hardwareID uuid.UUID) ([]*types.Workload, error) {
	var out []*types.Workload
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("dbms_id = ? AND hardware_id = ?", dbmsID, hardwareID).
		Order("name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *resultRepo) GetBackup(dbc dbctx.Context, resultID uuid.UUID) (*types.BackupData, error) {
	var b types.BackupData
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("result_id = ?", resultID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *resultRepo) CreatePipelineResult(dbc dbctx.Context, pr *types.PipelineResult) error {
	if pr == nil {
		return fmt.Errorf("create pipeline result: nil row")
	}
	if pr.CreationTime.IsZero() {
		pr.CreationTime = time.Now().UTC()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(pr).Error
}

func (r *resultRepo) ListPipelineResults(dbc dbctx.Context, resultID uuid.UUID) ([]*types.PipelineResult, error) {
	var out []*types.PipelineResult
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("result_id = ?", resultID).
		Order("creation_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
