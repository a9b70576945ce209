package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/selftune/selftune-backend/internal/data/repos/results"
	"github.com/selftune/selftune-backend/internal/http/response"
	"github.com/selftune/selftune-backend/internal/observability"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/tuning/pipeline"
)

// TunerStatusHandler reports the recommendation-chain progress of a result.
type TunerStatusHandler struct {
	log        *logger.Logger
	results    results.ResultRepo
	aggregator *pipeline.StatusAggregator
}

func NewTunerStatusHandler(
	log *logger.Logger,
	resultRepo results.ResultRepo,
	aggregator *pipeline.StatusAggregator,
) *TunerStatusHandler {
	return &TunerStatusHandler{
		log:        log.With("handler", "TunerStatusHandler"),
		results:    resultRepo,
		aggregator: aggregator,
	}
}

type stageStatusView struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type tunerStatusView struct {
	ID             uuid.UUID         `json:"id"`
	OverallStatus  string            `json:"overall_status"`
	NumCompleted   string            `json:"num_completed"`
	CompletionTime string            `json:"completion_time"`
	TotalRuntime   string            `json:"total_runtime"`
	Tasks          []stageStatusView `json:"tasks"`
}

// GET /api/results/:id/tuner-status
func (h *TunerStatusHandler) GetTunerStatus(c *gin.Context) {
	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil || resultID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_result_id", err)
		return
	}

	dbc := dbctx.New(c.Request.Context())
	result, err := h.results.GetByID(dbc, resultID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "result_not_found", nil)
			return
		}
		h.log.Error("GetTunerStatus failed (load result)", "error", err, "result_id", resultID)
		response.RespondError(c, http.StatusInternalServerError, "load_result_failed", err)
		return
	}

	st := h.aggregator.ChainStatus(c.Request.Context(), result)
	observability.StatusPollTotal.WithLabelValues(string(st.Overall)).Inc()

	view := tunerStatusView{
		ID:             result.ID,
		OverallStatus:  string(st.Overall),
		NumCompleted:   fmt.Sprintf("%d / %d", st.NumCompleted, len(pipeline.StageOrder)),
		CompletionTime: "N/A",
		TotalRuntime:   "N/A",
	}
	if st.CompletionTime != nil {
		view.CompletionTime = st.CompletionTime.Format(time.RFC3339)
		view.TotalRuntime = fmt.Sprintf("%.2f seconds", st.TotalRuntime.Seconds())
	}
	for _, stage := range st.Stages {
		view.Tasks = append(view.Tasks, stageStatusView{
			Name:   string(stage.Name),
			Status: string(stage.State),
		})
	}
	response.RespondOK(c, view)
}
