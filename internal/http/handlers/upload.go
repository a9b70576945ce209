package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/selftune/selftune-backend/internal/http/response"
	"github.com/selftune/selftune-backend/internal/observability"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/tuning/bundle"
	"github.com/selftune/selftune-backend/internal/tuning/ingest"
)

// UploadHandler serves the agent-facing result upload endpoint. The agent
// speaks a plain-text protocol: every outcome is a 200 with a fixed message
// the agent string-matches on.
type UploadHandler struct {
	log    *logger.Logger
	ingest *ingest.Service
}

func NewUploadHandler(log *logger.Logger, ingestSvc *ingest.Service) *UploadHandler {
	return &UploadHandler{
		log:    log.With("handler", "UploadHandler"),
		ingest: ingestSvc,
	}
}

// POST /new_result
func (h *UploadHandler) NewResult(c *gin.Context) {
	start := time.Now()

	form, err := c.MultipartForm()
	if err != nil {
		observability.UploadsTotal.WithLabelValues("malformed").Inc()
		response.RespondText(c, "Form is not valid\n"+err.Error())
		return
	}
	uploadCode := c.PostForm("upload_code")
	if uploadCode == "" {
		observability.UploadsTotal.WithLabelValues("malformed").Inc()
		response.RespondText(c, "Form is not valid\nupload_code is required")
		return
	}

	files, err := readBlobs(form)
	if err != nil {
		observability.UploadsTotal.WithLabelValues("malformed").Inc()
		response.RespondText(c, "Form is not valid\n"+err.Error())
		return
	}

	outcome, err := h.ingest.HandleUpload(c.Request.Context(), uploadCode, files)
	if err != nil {
		h.respondIngestError(c, uploadCode, err)
		return
	}
	observability.UploadsTotal.WithLabelValues("stored").Inc()
	observability.IngestDuration.Observe(time.Since(start).Seconds())

	if !outcome.Session.TuningSession {
		response.RespondText(c, "Result stored successfully!")
		return
	}
	if outcome.DispatchErr != nil {
		observability.ChainDispatchTotal.WithLabelValues("error").Inc()
		response.RespondText(c, "Result stored successfully! Running tuner... (status=FAILURE)")
		return
	}
	observability.ChainDispatchTotal.WithLabelValues("ok").Inc()
	response.RespondText(c, fmt.Sprintf("Result stored successfully! Running tuner... (status=%s)", outcome.DispatchState))
}

func (h *UploadHandler) respondIngestError(c *gin.Context, uploadCode string, err error) {
	var unsupported *apperr.UnsupportedDBMSError
	var mismatch *apperr.DBMSMismatchError
	switch {
	case errors.Is(err, apperr.ErrSessionNotFound):
		h.log.Warn("Wrong upload code", "upload_code", uploadCode)
		observability.UploadsTotal.WithLabelValues("wrong_code").Inc()
		response.RespondText(c, "wrong upload_code!")
	case errors.As(err, &unsupported):
		observability.UploadsTotal.WithLabelValues("unsupported_dbms").Inc()
		response.RespondText(c, fmt.Sprintf("%s v%s is not yet supported.", unsupported.Type, unsupported.Version))
	case errors.As(err, &mismatch):
		observability.UploadsTotal.WithLabelValues("dbms_mismatch").Inc()
		response.RespondText(c, "The DBMS must match the type and version "+
			"specified when creating the session. "+
			"(expected="+mismatch.Expected+") "+
			"(actual="+mismatch.Actual+")")
	case errors.Is(err, apperr.ErrMalformedBundle):
		observability.UploadsTotal.WithLabelValues("malformed").Inc()
		response.RespondText(c, "Form is not valid\n"+err.Error())
	default:
		h.log.Error("Result upload failed", "error", err)
		observability.UploadsTotal.WithLabelValues("error").Inc()
		response.RespondText(c, "Failed to store result: "+err.Error())
	}
}

func readBlobs(form *multipart.Form) (map[string][]byte, error) {
	out := make(map[string][]byte, 4)
	for _, name := range []string{bundle.BlobSummary, bundle.BlobKnobs, bundle.BlobMetricsBefore, bundle.BlobMetricsAfter} {
		headers := form.File[name]
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out[name] = raw
	}
	return out, nil
}
