package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type DBMSCatalog struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Type    string    `gorm:"column:type;not null;uniqueIndex:idx_dbms_type_version" json:"type"`
	Version string    `gorm:"column:version;not null;uniqueIndex:idx_dbms_type_version" json:"version"`
}

func (DBMSCatalog) TableName() string { return "dbms_catalog" }

func (d *DBMSCatalog) FullName() string {
	return fmt.Sprintf("%s v%s", d.Type, d.Version)
}

type KnobCatalog struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DBMSID   uuid.UUID `gorm:"type:uuid;column:dbms_id;not null;uniqueIndex:idx_knob_dbms_name" json:"dbms_id"`
	Name     string    `gorm:"column:name;not null;uniqueIndex:idx_knob_dbms_name" json:"name"`
	VarType  VarType   `gorm:"column:vartype;not null" json:"vartype"`
	Unit     KnobUnit  `gorm:"column:unit;not null;default:OTHER" json:"unit"`
	Category string    `gorm:"column:category" json:"category,omitempty"`
	Scope    string    `gorm:"column:scope;not null;default:global" json:"scope"`
	Tunable  bool      `gorm:"column:tunable;not null;default:false" json:"tunable"`
	Default  string    `gorm:"column:default_value" json:"default"`
	MinVal   string    `gorm:"column:minval" json:"minval,omitempty"`
	MaxVal   string    `gorm:"column:maxval" json:"maxval,omitempty"`
	EnumVals string    `gorm:"column:enumvals" json:"enumvals,omitempty"`
	Summary  string    `gorm:"column:summary" json:"summary,omitempty"`
}

func (KnobCatalog) TableName() string { return "knob_catalog" }

// EnumValues splits the comma-joined enumvals column; the position of a value
// in this list is its ordinal code in the tunable projection.
func (k *KnobCatalog) EnumValues() []string {
	if strings.TrimSpace(k.EnumVals) == "" {
		return nil
	}
	vals := strings.Split(k.EnumVals, ",")
	for i := range vals {
		vals[i] = strings.TrimSpace(vals[i])
	}
	return vals
}

type MetricCatalog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DBMSID     uuid.UUID  `gorm:"type:uuid;column:dbms_id;not null;uniqueIndex:idx_metric_dbms_name" json:"dbms_id"`
	Name       string     `gorm:"column:name;not null;uniqueIndex:idx_metric_dbms_name" json:"name"`
	VarType    VarType    `gorm:"column:vartype;not null" json:"vartype"`
	MetricType MetricType `gorm:"column:metric_type;not null" json:"metric_type"`
	Scale      float64    `gorm:"column:scale;not null;default:1" json:"scale"`
	Scope      string     `gorm:"column:scope;not null;default:global" json:"scope"`
	PPrint     string     `gorm:"column:pprint" json:"pprint,omitempty"`
	Summary    string     `gorm:"column:summary" json:"summary,omitempty"`
}

func (MetricCatalog) TableName() string { return "metric_catalog" }

type Hardware struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Type   string    `gorm:"column:type;not null;uniqueIndex" json:"type"`
	Name   string    `gorm:"column:name" json:"name,omitempty"`
	CPU    int       `gorm:"column:cpu;not null;default:0" json:"cpu"`
	Memory int64     `gorm:"column:memory;not null;default:0" json:"memory"`
}

func (Hardware) TableName() string { return "hardware" }
