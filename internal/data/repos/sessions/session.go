package sessions

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, session *types.Session) (*types.Session, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	GetByUploadCode(dbc dbctx.Context, uploadCode string) (*types.Session, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.Session, error)
	SetUploadCode(dbc dbctx.Context, id uuid.UUID, uploadCode string) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{
		db:  db,
		log: baseLog.With("repo", "SessionRepo"),
	}
}

func (r *sessionRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sessionRepo) Create(dbc dbctx.Context, session *types.Session) (*types.Session, error) {
	if session == nil {
		return nil, apperr.ErrNotFound
	}
	now := time.Now().UTC()
	if session.CreationTime.IsZero() {
		session.CreationTime = now
	}
	if session.LastUpdate.IsZero() {
		session.LastUpdate = now
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	var session types.Session
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Preload("Project").
		Preload("DBMS").
		Preload("Hardware").
		Where("id = ?", id).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) GetByUploadCode(dbc dbctx.Context, uploadCode string) (*types.Session, error) {
	if uploadCode == "" {
		return nil, apperr.ErrSessionNotFound
	}
	var session types.Session
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Preload("Project").
		Preload("DBMS").
		Preload("Hardware").
		Where("upload_code = ?", uploadCode).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.Session, error) {
	var out []*types.Session
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("project_id = ?", projectID).
		Order("creation_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) SetUploadCode(dbc dbctx.Context, id uuid.UUID, uploadCode string) error {
	now := time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"upload_code": uploadCode,
			"last_update": now,
		}).Error
}
