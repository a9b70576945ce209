package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/selftune/selftune-backend/internal/http/handlers"
	httpMW "github.com/selftune/selftune-backend/internal/http/middleware"
	"github.com/selftune/selftune-backend/internal/observability"
)

type RouterConfig struct {
	UploadHandler      *httpH.UploadHandler
	TunerStatusHandler *httpH.TunerStatusHandler
	SessionHandler     *httpH.SessionHandler
	ResultHandler      *httpH.ResultHandler
	CatalogHandler     *httpH.CatalogHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	r.GET("/metrics", observability.MetricsHandler())

	// Agent protocol; plain text, outside the JSON API group.
	if cfg.UploadHandler != nil {
		r.POST("/new_result", cfg.UploadHandler.NewResult)
	}

	api := r.Group("/api")
	{
		if cfg.SessionHandler != nil {
			api.POST("/projects", cfg.SessionHandler.CreateProject)
			api.GET("/projects", cfg.SessionHandler.ListProjects)
			api.GET("/projects/:id", cfg.SessionHandler.GetProject)
			api.GET("/projects/:id/sessions", cfg.SessionHandler.ListProjectSessions)
			api.POST("/sessions", cfg.SessionHandler.CreateSession)
			api.GET("/sessions/:id", cfg.SessionHandler.GetSession)
			api.POST("/sessions/:id/upload-code", cfg.SessionHandler.RenewUploadCode)
		}

		if cfg.ResultHandler != nil {
			api.GET("/sessions/:id/results", cfg.ResultHandler.ListSessionResults)
			api.GET("/results/:id", cfg.ResultHandler.GetResult)
			api.GET("/results/:id/backup", cfg.ResultHandler.GetBackup)
			api.GET("/results/:id/pipeline-results", cfg.ResultHandler.ListPipelineResults)
			api.GET("/workloads/:id", cfg.ResultHandler.GetWorkload)
			api.GET("/workloads/:id/results", cfg.ResultHandler.ListWorkloadResults)
			api.GET("/knob-data/:id", cfg.ResultHandler.GetKnobData)
			api.GET("/metric-data/:id", cfg.ResultHandler.GetMetricData)
		}

		if cfg.TunerStatusHandler != nil {
			api.GET("/results/:id/tuner-status", cfg.TunerStatusHandler.GetTunerStatus)
		}

		if cfg.CatalogHandler != nil {
			api.GET("/catalog/knobs", cfg.CatalogHandler.ListKnobs)
			api.GET("/catalog/knobs/:name", cfg.CatalogHandler.GetKnob)
			api.GET("/catalog/metrics", cfg.CatalogHandler.ListMetrics)
			api.GET("/catalog/metrics/:name", cfg.CatalogHandler.GetMetric)
		}
	}

	return r
}
