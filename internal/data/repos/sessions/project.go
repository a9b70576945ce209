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

type ProjectRepo interface {
	Create(dbc dbctx.Context, project *types.Project) (*types.Project, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
	List(dbc dbctx.Context) ([]*types.Project, error)
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{
		db:  db,
		log: baseLog.With("repo", "ProjectRepo"),
	}
}

func (r *projectRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *projectRepo) Create(dbc dbctx.Context, project *types.Project) (*types.Project, error) {
	if project == nil {
		return nil, apperr.ErrNotFound
	}
	now := time.Now().UTC()
	if project.CreationTime.IsZero() {
		project.CreationTime = now
	}
	if project.LastUpdate.IsZero() {
		project.LastUpdate = now
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	var project types.Project
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepo) List(dbc dbctx.Context) ([]*types.Project, error) {
	var out []*types.Project
	if err := r.conn(dbc).WithContext(dbc.Ctx).Order("creation_time ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
