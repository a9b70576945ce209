package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/selftune/selftune-backend/internal/data/repos/sessions"
	"github.com/selftune/selftune-backend/internal/http/response"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
	"github.com/selftune/selftune-backend/internal/services"
)

// SessionHandler serves project and session management.
type SessionHandler struct {
	log      *logger.Logger
	projects sessions.ProjectRepo
	sessions sessions.SessionRepo
	svc      *services.SessionService
}

func NewSessionHandler(
	log *logger.Logger,
	projectRepo sessions.ProjectRepo,
	sessionRepo sessions.SessionRepo,
	svc *services.SessionService,
) *SessionHandler {
	return &SessionHandler{
		log:      log.With("handler", "SessionHandler"),
		projects: projectRepo,
		sessions: sessionRepo,
		svc:      svc,
	}
}

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// POST /api/projects
func (h *SessionHandler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	project, err := h.svc.CreateProject(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.log.Error("CreateProject failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "create_project_failed", err)
		return
	}
	response.RespondOK(c, project)
}

// GET /api/projects
func (h *SessionHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.List(dbctx.New(c.Request.Context()))
	if err != nil {
		h.log.Error("ListProjects failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_projects_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"projects": projects})
}

// GET /api/projects/:id
func (h *SessionHandler) GetProject(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil || projectID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	project, err := h.projects.GetByID(dbctx.New(c.Request.Context()), projectID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "project_not_found", nil)
			return
		}
		h.log.Error("GetProject failed", "error", err, "project_id", projectID)
		response.RespondError(c, http.StatusInternalServerError, "load_project_failed", err)
		return
	}
	response.RespondOK(c, project)
}

// GET /api/projects/:id/sessions
func (h *SessionHandler) ListProjectSessions(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil || projectID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	rows, err := h.sessions.ListByProject(dbctx.New(c.Request.Context()), projectID)
	if err != nil {
		h.log.Error("ListProjectSessions failed", "error", err, "project_id", projectID)
		response.RespondError(c, http.StatusInternalServerError, "list_sessions_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": rows})
}

type createSessionRequest struct {
	ProjectID       uuid.UUID `json:"project_id" binding:"required"`
	Name            string    `json:"name" binding:"required"`
	Description     string    `json:"description"`
	DBMSType        string    `json:"dbms_type" binding:"required"`
	DBMSVersion     string    `json:"dbms_version" binding:"required"`
	HardwareType    string    `json:"hardware_type" binding:"required"`
	TargetObjective string    `json:"target_objective"`
	TuningSession   bool      `json:"tuning_session"`
}

// POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	session, err := h.svc.CreateSession(c.Request.Context(), services.CreateSessionParams{
		ProjectID:       req.ProjectID,
		Name:            req.Name,
		Description:     req.Description,
		DBMSType:        req.DBMSType,
		DBMSVersion:     req.DBMSVersion,
		HardwareType:    req.HardwareType,
		TargetObjective: req.TargetObjective,
		TuningSession:   req.TuningSession,
	})
	if err != nil {
		var unsupported *apperr.UnsupportedDBMSError
		if errors.As(err, &unsupported) {
			response.RespondError(c, http.StatusBadRequest, "unsupported_dbms", err)
			return
		}
		h.log.Error("CreateSession failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "create_session_failed", err)
		return
	}
	response.RespondOK(c, session)
}

// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil || sessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	session, err := h.sessions.GetByID(dbctx.New(c.Request.Context()), sessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "session_not_found", nil)
			return
		}
		h.log.Error("GetSession failed", "error", err, "session_id", sessionID)
		response.RespondError(c, http.StatusInternalServerError, "load_session_failed", err)
		return
	}
	response.RespondOK(c, session)
}

// POST /api/sessions/:id/upload-code
func (h *SessionHandler) RenewUploadCode(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil || sessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	code, err := h.svc.RenewUploadCode(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "session_not_found", nil)
			return
		}
		h.log.Error("RenewUploadCode failed", "error", err, "session_id", sessionID)
		response.RespondError(c, http.StatusInternalServerError, "renew_upload_code_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"upload_code": code})
}
