package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/selftune/selftune-backend/internal/data/repos/results"
	"github.com/selftune/selftune-backend/internal/http/response"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

// ResultHandler serves stored observations and their derived data.
type ResultHandler struct {
	log     *logger.Logger
	results results.ResultRepo
}

func NewResultHandler(log *logger.Logger, resultRepo results.ResultRepo) *ResultHandler {
	return &ResultHandler{
		log:     log.With("handler", "ResultHandler"),
		results: resultRepo,
	}
}

// GET /api/results/:id
func (h *ResultHandler) GetResult(c *gin.Context) {
	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil || resultID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_result_id", err)
		return
	}
	result, err := h.results.GetByID(dbctx.New(c.Request.Context()), resultID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "result_not_found", nil)
			return
		}
		h.log.Error("GetResult failed", "error", err, "result_id", resultID)
		response.RespondError(c, http.StatusInternalServerError, "load_result_failed", err)
		return
	}
	response.RespondOK(c, result)
}

// GET /api/sessions/:id/results
func (h *ResultHandler) ListSessionResults(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil || sessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	rows, err := h.results.ListBySession(dbctx.New(c.Request.Context()), sessionID)
	if err != nil {
		h.log.Error("ListSessionResults failed", "error", err, "session_id", sessionID)
		response.RespondError(c, http.StatusInternalServerError, "list_results_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"results": rows})
}

// GET /api/workloads/:id
func (h *ResultHandler) GetWorkload(c *gin.Context) {
	workloadID, err := uuid.Parse(c.Param("id"))
	if err != nil || workloadID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_workload_id", err)
		return
	}
	w, err := h.results.GetWorkload(dbctx.New(c.Request.Context()), workloadID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "workload_not_found", nil)
			return
		}
		h.log.Error("GetWorkload failed", "error", err, "workload_id", workloadID)
		response.RespondError(c, http.StatusInternalServerError, "load_workload_failed", err)
		return
	}
	response.RespondOK(c, w)
}

// GET /api/workloads/:id/results
func (h *ResultHandler) ListWorkloadResults(c *gin.Context) {
	workloadID, err := uuid.Parse(c.Param("id"))
	if err != nil || workloadID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_workload_id", err)
		return
	}
	rows, err := h.results.ListByWorkload(dbctx.New(c.Request.Context()), workloadID)
	if err != nil {
		h.log.Error("ListWorkloadResults failed", "error", err, "workload_id", workloadID)
		response.RespondError(c, http.StatusInternalServerError, "list_results_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"results": rows})
}

// GET /api/knob-data/:id
func (h *ResultHandler) GetKnobData(c *gin.Context) {
	dataID, err := uuid.Parse(c.Param("id"))
	if err != nil || dataID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_knob_data_id", err)
		return
	}
	kd, err := h.results.GetKnobData(dbctx.New(c.Request.Context()), dataID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "knob_data_not_found", nil)
			return
		}
		h.log.Error("GetKnobData failed", "error", err, "knob_data_id", dataID)
		response.RespondError(c, http.StatusInternalServerError, "load_knob_data_failed", err)
		return
	}
	response.RespondOK(c, kd)
}

// GET /api/metric-data/:id
func (h *ResultHandler) GetMetricData(c *gin.Context) {
	dataID, err := uuid.Parse(c.Param("id"))
	if err != nil || dataID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_metric_data_id", err)
		return
	}
	md, err := h.results.GetMetricData(dbctx.New(c.Request.Context()), dataID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "metric_data_not_found", nil)
			return
		}
		h.log.Error("GetMetricData failed", "error", err, "metric_data_id", dataID)
		response.RespondError(c, http.StatusInternalServerError, "load_metric_data_failed", err)
		return
	}
	response.RespondOK(c, md)
}

// GET /api/results/:id/backup
func (h *ResultHandler) GetBackup(c *gin.Context) {
	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil || resultID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_result_id", err)
		return
	}
	backup, err := h.results.GetBackup(dbctx.New(c.Request.Context()), resultID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "backup_not_found", nil)
			return
		}
		h.log.Error("GetBackup failed", "error", err, "result_id", resultID)
		response.RespondError(c, http.StatusInternalServerError, "load_backup_failed", err)
		return
	}
	response.RespondOK(c, backup)
}

// GET /api/results/:id/pipeline-results
func (h *ResultHandler) ListPipelineResults(c *gin.Context) {
	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil || resultID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_result_id", err)
		return
	}
	rows, err := h.results.ListPipelineResults(dbctx.New(c.Request.Context()), resultID)
	if err != nil {
		h.log.Error("ListPipelineResults failed", "error", err, "result_id", resultID)
		response.RespondError(c, http.StatusInternalServerError, "list_pipeline_results_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"pipeline_results": rows})
}
