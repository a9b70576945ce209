package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Project struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name         string    `gorm:"column:name;not null" json:"name"`
	Description  string    `gorm:"column:description" json:"description,omitempty"`
	CreationTime time.Time `gorm:"column:creation_time;not null;default:now()" json:"creation_time"`
	LastUpdate   time.Time `gorm:"column:last_update;not null;default:now()" json:"last_update"`
}

func (Project) TableName() string { return "project" }

// Session is a long-lived tuning context. TuningSession gates whether each
// uploaded result launches the recommendation chain.
type Session struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID       uuid.UUID `gorm:"type:uuid;column:project_id;not null;index" json:"project_id"`
	Name            string    `gorm:"column:name;not null" json:"name"`
	Description     string    `gorm:"column:description" json:"description,omitempty"`
	DBMSID          uuid.UUID `gorm:"type:uuid;column:dbms_id;not null;index" json:"dbms_id"`
	HardwareID      uuid.UUID `gorm:"type:uuid;column:hardware_id;not null;index" json:"hardware_id"`
	TargetObjective string    `gorm:"column:target_objective;not null;default:throughput_txn_per_sec" json:"target_objective"`
	TuningSession   bool      `gorm:"column:tuning_session;not null;default:false" json:"tuning_session"`
	UploadCode      string    `gorm:"column:upload_code;not null;uniqueIndex" json:"upload_code"`
	// NondefaultSettings is written once, on the first ingested observation.
	NondefaultSettings datatypes.JSON `gorm:"column:nondefault_settings;type:jsonb" json:"nondefault_settings,omitempty"`
	CreationTime       time.Time      `gorm:"column:creation_time;not null;default:now()" json:"creation_time"`
	LastUpdate         time.Time      `gorm:"column:last_update;not null;default:now()" json:"last_update"`

	Project  *Project     `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	DBMS     *DBMSCatalog `gorm:"foreignKey:DBMSID" json:"dbms,omitempty"`
	Hardware *Hardware    `gorm:"foreignKey:HardwareID" json:"hardware,omitempty"`
}

func (Session) TableName() string { return "session" }
