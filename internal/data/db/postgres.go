package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/envutil"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := envutil.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := envutil.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := envutil.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := envutil.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := envutil.GetEnv("POSTGRES_NAME", "selftune", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...", "host", postgresHost, "db", postgresName)
	theDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := theDB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: theDB, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.DBMSCatalog{},
		&types.KnobCatalog{},
		&types.MetricCatalog{},
		&types.Hardware{},
		&types.Project{},
		&types.Session{},
		&types.Workload{},
		&types.KnobData{},
		&types.MetricData{},
		&types.Result{},
		&types.BackupData{},
		&types.PipelineResult{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		name string
		stmt string
	}{
		{"fk_session_project_id", `ALTER TABLE "session" ADD CONSTRAINT "fk_session_project_id" FOREIGN KEY ("project_id") REFERENCES "project"("id") ON DELETE CASCADE`},
		{"fk_result_session_id", `ALTER TABLE "result" ADD CONSTRAINT "fk_result_session_id" FOREIGN KEY ("session_id") REFERENCES "session"("id") ON DELETE CASCADE`},
		{"fk_knob_data_session_id", `ALTER TABLE "knob_data" ADD CONSTRAINT "fk_knob_data_session_id" FOREIGN KEY ("session_id") REFERENCES "session"("id") ON DELETE CASCADE`},
		{"fk_metric_data_session_id", `ALTER TABLE "metric_data" ADD CONSTRAINT "fk_metric_data_session_id" FOREIGN KEY ("session_id") REFERENCES "session"("id") ON DELETE CASCADE`},
		{"fk_backup_data_result_id", `ALTER TABLE "backup_data" ADD CONSTRAINT "fk_backup_data_result_id" FOREIGN KEY ("result_id") REFERENCES "result"("id") ON DELETE CASCADE`},
		{"fk_pipeline_result_result_id", `ALTER TABLE "pipeline_result" ADD CONSTRAINT "fk_pipeline_result_result_id" FOREIGN KEY ("result_id") REFERENCES "result"("id") ON DELETE CASCADE`},
	}
	for _, c := range constraints {
		var exists bool
		if err := s.db.Raw(
			`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)`, c.name,
		).Scan(&exists).Error; err != nil {
			return fmt.Errorf("check constraint %s: %w", c.name, err)
		}
		if exists {
			continue
		}
		if err := s.db.Exec(c.stmt).Error; err != nil {
			return fmt.Errorf("add constraint %s: %w", c.name, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
