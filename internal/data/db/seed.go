package db

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/selftune/selftune-backend/internal/domain"
)

// SeedCatalog installs the built-in DBMS/knob/metric catalog and the default
// hardware profile so a fresh deployment can ingest results immediately.
// Inserts are conflict-tolerant; re-running is a no-op.
func (s *PostgresService) SeedCatalog() error {
	s.log.Info("Seeding DBMS catalog...")
	return s.db.Transaction(func(tx *gorm.DB) error {
		pg := types.DBMSCatalog{Type: "postgres", Version: "9.6"}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&pg).Error; err != nil {
			return fmt.Errorf("seed dbms catalog: %w", err)
		}
		if pg.ID == uuid.Nil {
			if err := tx.Where("type = ? AND version = ?", pg.Type, pg.Version).First(&pg).Error; err != nil {
				return fmt.Errorf("load seeded dbms: %w", err)
			}
		}

		knobs := postgres96Knobs(pg)
		for i := range knobs {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&knobs[i]).Error; err != nil {
				return fmt.Errorf("seed knob %s: %w", knobs[i].Name, err)
			}
		}
		metrics := postgres96Metrics(pg)
		for i := range metrics {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&metrics[i]).Error; err != nil {
				return fmt.Errorf("seed metric %s: %w", metrics[i].Name, err)
			}
		}

		hw := types.Hardware{Type: "ec2_m3xlarge", Name: "EC2 m3.xlarge", CPU: 4, Memory: 15 << 30}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&hw).Error; err != nil {
			return fmt.Errorf("seed hardware: %w", err)
		}
		return nil
	})
}

func postgres96Knobs(dbms types.DBMSCatalog) []types.KnobCatalog {
	k := func(name string, vt types.VarType, unit types.KnobUnit, tunable bool, def, category string) types.KnobCatalog {
		return types.KnobCatalog{
			DBMSID:   dbms.ID,
			Name:     name,
			VarType:  vt,
			Unit:     unit,
			Tunable:  tunable,
			Default:  def,
			Category: category,
		}
	}
	out := []types.KnobCatalog{
		k("shared_buffers", types.VarInteger, types.UnitBytes, true, "128MB", "Resource Usage / Memory"),
		k("work_mem", types.VarInteger, types.UnitBytes, true, "4MB", "Resource Usage / Memory"),
		k("maintenance_work_mem", types.VarInteger, types.UnitBytes, true, "64MB", "Resource Usage / Memory"),
		k("effective_cache_size", types.VarInteger, types.UnitBytes, true, "4GB", "Query Tuning / Planner Cost Constants"),
		k("max_wal_size", types.VarInteger, types.UnitBytes, true, "1GB", "Write-Ahead Log / Checkpoints"),
		k("wal_buffers", types.VarInteger, types.UnitBytes, true, "16MB", "Write-Ahead Log / Settings"),
		k("checkpoint_timeout", types.VarInteger, types.UnitMilliseconds, true, "5min", "Write-Ahead Log / Checkpoints"),
		k("checkpoint_completion_target", types.VarReal, types.UnitOther, true, "0.5", "Write-Ahead Log / Checkpoints"),
		k("default_statistics_target", types.VarInteger, types.UnitOther, true, "100", "Query Tuning / Other Planner Options"),
		k("random_page_cost", types.VarReal, types.UnitOther, true, "4.0", "Query Tuning / Planner Cost Constants"),
		k("max_worker_processes", types.VarInteger, types.UnitOther, true, "8", "Resource Usage / Asynchronous Behavior"),
		k("autovacuum", types.VarBool, types.UnitOther, false, "on", "Autovacuum"),
		k("fsync", types.VarBool, types.UnitOther, false, "on", "Write-Ahead Log / Settings"),
		k("synchronous_commit", types.VarBool, types.UnitOther, true, "on", "Write-Ahead Log / Settings"),
		k("wal_sync_method", types.VarEnum, types.UnitOther, false, "fdatasync", "Write-Ahead Log / Settings"),
		k("data_directory", types.VarString, types.UnitOther, false, "", "File Locations"),
	}
	for i := range out {
		if out[i].Name == "wal_sync_method" {
			out[i].EnumVals = "fsync,fdatasync,open_sync,open_datasync"
		}
	}
	return out
}

func postgres96Metrics(dbms types.DBMSCatalog) []types.MetricCatalog {
	m := func(name string, mt types.MetricType, scale float64, pprint string) types.MetricCatalog {
		return types.MetricCatalog{
			DBMSID:     dbms.ID,
			Name:       name,
			VarType:    types.VarInteger,
			MetricType: mt,
			Scale:      scale,
			PPrint:     pprint,
		}
	}
	return []types.MetricCatalog{
		m("xact_commit", types.MetricCounter, 1, "Transactions Committed"),
		m("xact_rollback", types.MetricCounter, 1, "Transactions Rolled Back"),
		m("blks_read", types.MetricCounter, 1, "Blocks Read From Disk"),
		m("blks_hit", types.MetricCounter, 1, "Buffer Cache Hits"),
		m("tup_returned", types.MetricCounter, 1, "Tuples Returned"),
		m("tup_fetched", types.MetricCounter, 1, "Tuples Fetched"),
		m("tup_inserted", types.MetricCounter, 1, "Tuples Inserted"),
		m("tup_updated", types.MetricCounter, 1, "Tuples Updated"),
		m("tup_deleted", types.MetricCounter, 1, "Tuples Deleted"),
		m("temp_bytes", types.MetricCounter, 1.0 / (1 << 20), "Temp File Bytes (MB)"),
		m("deadlocks", types.MetricCounter, 1, "Deadlocks"),
		m("numbackends", types.MetricGauge, 1, "Active Backends"),
		m("throughput_txn_per_sec", types.MetricCounter, 1, "Throughput (txn/sec)"),
	}
}
