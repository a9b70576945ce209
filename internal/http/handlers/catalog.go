package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/selftune/selftune-backend/internal/data/repos/catalog"
	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/http/response"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

// CatalogHandler exposes the read-only knob and metric reference catalogs.
type CatalogHandler struct {
	log     *logger.Logger
	catalog catalog.CatalogRepo
}

func NewCatalogHandler(log *logger.Logger, catalogRepo catalog.CatalogRepo) *CatalogHandler {
	return &CatalogHandler{
		log:     log.With("handler", "CatalogHandler"),
		catalog: catalogRepo,
	}
}

// GET /api/catalog/knobs?dbms_type=postgres&dbms_version=9.6
func (h *CatalogHandler) ListKnobs(c *gin.Context) {
	dbms, ok := h.resolveDBMS(c)
	if !ok {
		return
	}
	knobs, err := h.catalog.KnobsByDBMS(dbctx.New(c.Request.Context()), dbms.ID)
	if err != nil {
		h.log.Error("ListKnobs failed", "error", err, "dbms_id", dbms.ID)
		response.RespondError(c, http.StatusInternalServerError, "load_knob_catalog_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"dbms": dbms.FullName(), "knobs": knobs})
}

// GET /api/catalog/metrics?dbms_type=postgres&dbms_version=9.6
func (h *CatalogHandler) ListMetrics(c *gin.Context) {
	dbms, ok := h.resolveDBMS(c)
	if !ok {
		return
	}
	metrics, err := h.catalog.MetricsByDBMS(dbctx.New(c.Request.Context()), dbms.ID)
	if err != nil {
		h.log.Error("ListMetrics failed", "error", err, "dbms_id", dbms.ID)
		response.RespondError(c, http.StatusInternalServerError, "load_metric_catalog_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"dbms": dbms.FullName(), "metrics": metrics})
}

// GET /api/catalog/knobs/:name?dbms_type=postgres&dbms_version=9.6
func (h *CatalogHandler) GetKnob(c *gin.Context) {
	dbms, ok := h.resolveDBMS(c)
	if !ok {
		return
	}
	knob, err := h.catalog.KnobByName(dbctx.New(c.Request.Context()), dbms.ID, c.Param("name"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "knob_not_found", nil)
			return
		}
		h.log.Error("GetKnob failed", "error", err, "dbms_id", dbms.ID)
		response.RespondError(c, http.StatusInternalServerError, "load_knob_failed", err)
		return
	}
	response.RespondOK(c, knob)
}

// GET /api/catalog/metrics/:name?dbms_type=postgres&dbms_version=9.6
func (h *CatalogHandler) GetMetric(c *gin.Context) {
	dbms, ok := h.resolveDBMS(c)
	if !ok {
		return
	}
	metric, err := h.catalog.MetricByName(dbctx.New(c.Request.Context()), dbms.ID, c.Param("name"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "metric_not_found", nil)
			return
		}
		h.log.Error("GetMetric failed", "error", err, "dbms_id", dbms.ID)
		response.RespondError(c, http.StatusInternalServerError, "load_metric_failed", err)
		return
	}
	response.RespondOK(c, metric)
}

func (h *CatalogHandler) resolveDBMS(c *gin.Context) (*types.DBMSCatalog, bool) {
	dbmsType := c.Query("dbms_type")
	dbmsVersion := c.Query("dbms_version")
	if dbmsType == "" || dbmsVersion == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_dbms", nil)
		return nil, false
	}
	row, err := h.catalog.ResolveDBMS(dbctx.New(c.Request.Context()), dbmsType, dbmsVersion)
	if err != nil {
		var unsupported *apperr.UnsupportedDBMSError
		if errors.As(err, &unsupported) {
			response.RespondError(c, http.StatusNotFound, "unsupported_dbms", err)
			return nil, false
		}
		h.log.Error("resolveDBMS failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "resolve_dbms_failed", err)
		return nil, false
	}
	return row, true
}
