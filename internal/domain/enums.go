package domain

import "strings"

// VarType is the catalog-declared type of a knob or metric value.
type VarType string

const (
	VarString    VarType = "STRING"
	VarInteger   VarType = "INTEGER"
	VarReal      VarType = "REAL"
	VarBool      VarType = "BOOL"
	VarEnum      VarType = "ENUM"
	VarTimestamp VarType = "TIMESTAMP"
)

// MetricType classifies how a metric reading is interpreted across a run.
// Counters accumulate and are diffed (after - before); gauges are read directly.
type MetricType string

const (
	MetricCounter MetricType = "COUNTER"
	MetricGauge   MetricType = "GAUGE"
	MetricInfo    MetricType = "INFO"
)

// KnobUnit drives unit-suffix parsing of raw knob values.
type KnobUnit string

const (
	UnitBytes        KnobUnit = "BYTES"
	UnitMilliseconds KnobUnit = "MILLISECONDS"
	UnitOther        KnobUnit = "OTHER"
)

// NormalizeDBMSType canonicalizes the agent-reported database type.
func NormalizeDBMSType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
