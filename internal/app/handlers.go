package app

import (
	"github.com/gin-gonic/gin"

	httpx "github.com/selftune/selftune-backend/internal/http"
	httpH "github.com/selftune/selftune-backend/internal/http/handlers"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

type Handlers struct {
	Upload      *httpH.UploadHandler
	TunerStatus *httpH.TunerStatusHandler
	Session     *httpH.SessionHandler
	Result      *httpH.ResultHandler
	Catalog     *httpH.CatalogHandler
	Health      *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, reposet Repos, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Upload:      httpH.NewUploadHandler(log, serviceset.Ingest),
		TunerStatus: httpH.NewTunerStatusHandler(log, reposet.Result, serviceset.Aggregator),
		Session:     httpH.NewSessionHandler(log, reposet.Project, reposet.Session, serviceset.Session),
		Result:      httpH.NewResultHandler(log, reposet.Result),
		Catalog:     httpH.NewCatalogHandler(log, reposet.Catalog),
		Health:      httpH.NewHealthHandler(),
	}
}

func wireRouter(handlerset Handlers) *gin.Engine {
	return httpx.NewRouter(httpx.RouterConfig{
		UploadHandler:      handlerset.Upload,
		TunerStatusHandler: handlerset.TunerStatus,
		SessionHandler:     handlerset.Session,
		ResultHandler:      handlerset.Result,
		CatalogHandler:     handlerset.Catalog,
		HealthHandler:      handlerset.Health,
	})
}
