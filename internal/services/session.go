package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/selftune/selftune-backend/internal/data/repos/catalog"
	"github.com/selftune/selftune-backend/internal/data/repos/sessions"
	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

const (
	uploadCodeLength   = 30
	uploadCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateUploadCode returns a fresh random session upload code.
func GenerateUploadCode() (string, error) {
	buf := make([]byte, uploadCodeLength)
	max := big.NewInt(int64(len(uploadCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate upload code: %w", err)
		}
		buf[i] = uploadCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// SessionService owns project and session lifecycle: creation against the
// catalog and upload-code management.
type SessionService struct {
	projects sessions.ProjectRepo
	sessions sessions.SessionRepo
	catalog  catalog.CatalogRepo
	log      *logger.Logger
}

func NewSessionService(
	projectRepo sessions.ProjectRepo,
	sessionRepo sessions.SessionRepo,
	catalogRepo catalog.CatalogRepo,
	baseLog *logger.Logger,
) *SessionService {
	return &SessionService{
		projects: projectRepo,
		sessions: sessionRepo,
		catalog:  catalogRepo,
		log:      baseLog.With("service", "SessionService"),
	}
}

// CreateSessionParams names the session's DBMS and hardware by catalog keys;
// the service resolves them to rows.
type CreateSessionParams struct {
	ProjectID       uuid.UUID
	Name            string
	Description     string
	DBMSType        string
	DBMSVersion     string
	HardwareType    string
	TargetObjective string
	TuningSession   bool
}

func (s *SessionService) CreateProject(ctx context.Context, name, description string) (*types.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("create project: name is required")
	}
	return s.projects.Create(dbctx.New(ctx), &types.Project{Name: name, Description: description})
}

func (s *SessionService) CreateSession(ctx context.Context, p CreateSessionParams) (*types.Session, error) {
	if p.Name == "" || p.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("create session: name and project_id are required")
	}
	dbc := dbctx.New(ctx)

	dbms, err := s.catalog.ResolveDBMS(dbc, p.DBMSType, p.DBMSVersion)
	if err != nil {
		return nil, err
	}
	hw, err := s.catalog.HardwareByType(dbc, p.HardwareType)
	if err != nil {
		return nil, fmt.Errorf("resolve hardware %q: %w", p.HardwareType, err)
	}
	code, err := GenerateUploadCode()
	if err != nil {
		return nil, err
	}

	session := &types.Session{
		ProjectID:     p.ProjectID,
		Name:          p.Name,
		Description:   p.Description,
		DBMSID:        dbms.ID,
		HardwareID:    hw.ID,
		TuningSession: p.TuningSession,
		UploadCode:    code,
	}
	if p.TargetObjective != "" {
		session.TargetObjective = p.TargetObjective
	}
	created, err := s.sessions.Create(dbc, session)
	if err != nil {
		return nil, err
	}
	s.log.Info("session created",
		"session_id", created.ID,
		"project_id", created.ProjectID,
		"tuning", created.TuningSession)
	return created, nil
}

// RenewUploadCode replaces the session's upload code; old codes stop working
// immediately.
func (s *SessionService) RenewUploadCode(ctx context.Context, sessionID uuid.UUID) (string, error) {
	dbc := dbctx.New(ctx)
	if _, err := s.sessions.GetByID(dbc, sessionID); err != nil {
		return "", err
	}
	code, err := GenerateUploadCode()
	if err != nil {
		return "", err
	}
	if err := s.sessions.SetUploadCode(dbc, sessionID, code); err != nil {
		return "", err
	}
	return code, nil
}
