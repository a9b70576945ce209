package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

// OpenTestDB connects to the Postgres named by TEST_POSTGRES_DSN and
// migrates the schema. Tests that call it are skipped when the variable is
// unset, so the unit suite stays runnable without a database.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run Postgres integration tests")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test postgres: %v", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		t.Fatalf("create uuid extension: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Project{},
		&types.Hardware{},
		&types.DBMSCatalog{},
		&types.KnobCatalog{},
		&types.MetricCatalog{},
		&types.Session{},
		&types.Workload{},
		&types.KnobData{},
		&types.MetricData{},
		&types.Result{},
		&types.BackupData{},
		&types.PipelineResult{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func NewTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

// SeedTuningFixture inserts the minimal catalog rows plus one project and
// session a result-ingestion test needs. Rows are uniquely named per call so
// parallel test runs on a shared database do not collide.
type TuningFixture struct {
	Project  *types.Project
	Hardware *types.Hardware
	DBMS     *types.DBMSCatalog
	Session  *types.Session
}

func SeedTuningFixture(t *testing.T, db *gorm.DB, tuning bool) *TuningFixture {
	t.Helper()
	suffix := uuid.NewString()[:8]

	project := &types.Project{
		Name:         "it-project-" + suffix,
		CreationTime: time.Now().UTC(),
		LastUpdate:   time.Now().UTC(),
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}

	hw := &types.Hardware{Type: "it-hw-" + suffix, Name: "integration", CPU: 4, Memory: 16}
	if err := db.Create(hw).Error; err != nil {
		t.Fatalf("seed hardware: %v", err)
	}

	dbms := &types.DBMSCatalog{Type: "it-postgres-" + suffix, Version: "9.6"}
	if err := db.Create(dbms).Error; err != nil {
		t.Fatalf("seed dbms: %v", err)
	}

	session := &types.Session{
		ProjectID:       project.ID,
		Name:            "it-session-" + suffix,
		DBMSID:          dbms.ID,
		HardwareID:      hw.ID,
		TargetObjective: "throughput_txn_per_sec",
		TuningSession:   tuning,
		UploadCode:      fmt.Sprintf("ITCODE-%s", suffix),
		CreationTime:    time.Now().UTC(),
		LastUpdate:      time.Now().UTC(),
	}
	if err := db.Create(session).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}

	t.Cleanup(func() {
		db.Where("result_id IN (?)", db.Model(&types.Result{}).Select("id").Where("session_id = ?", session.ID)).
			Delete(&types.BackupData{})
		db.Where("result_id IN (?)", db.Model(&types.Result{}).Select("id").Where("session_id = ?", session.ID)).
			Delete(&types.PipelineResult{})
		db.Where("session_id = ?", session.ID).Delete(&types.Result{})
		db.Where("session_id = ?", session.ID).Delete(&types.KnobData{})
		db.Where("session_id = ?", session.ID).Delete(&types.MetricData{})
		db.Where("id = ?", session.ID).Delete(&types.Session{})
		db.Where("dbms_id = ?", dbms.ID).Delete(&types.Workload{})
		db.Where("id = ?", dbms.ID).Delete(&types.DBMSCatalog{})
		db.Where("id = ?", hw.ID).Delete(&types.Hardware{})
		db.Where("id = ?", project.ID).Delete(&types.Project{})
	})

	return &TuningFixture{Project: project, Hardware: hw, DBMS: dbms, Session: session}
}
