package app

import (
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/selftune/selftune-backend/internal/data/repos/catalog"
	"github.com/selftune/selftune-backend/internal/data/repos/results"
	"github.com/selftune/selftune-backend/internal/data/repos/sessions"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

type Repos struct {
	Project sessions.ProjectRepo
	Session sessions.SessionRepo
	Catalog catalog.CatalogRepo
	Result  results.ResultRepo
}

func wireRepos(db *gorm.DB, rdb *goredis.Client, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Project: sessions.NewProjectRepo(db, log),
		Session: sessions.NewSessionRepo(db, log),
		Catalog: catalog.NewCatalogRepo(db, rdb, log),
		Result:  results.NewResultRepo(db, log),
	}
}
