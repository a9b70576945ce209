package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/selftune/selftune-backend/internal/domain"
	"github.com/selftune/selftune-backend/internal/pkg/dbctx"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
	"github.com/selftune/selftune-backend/internal/pkg/logger"
)

const cacheTTL = 5 * time.Minute

// CatalogRepo is read-only access to the per-DBMS knob and metric catalogs.
type CatalogRepo interface {
	ResolveDBMS(dbc dbctx.Context, dbmsType, version string) (*types.DBMSCatalog, error)
	GetDBMSByID(dbc dbctx.Context, id uuid.UUID) (*types.DBMSCatalog, error)
	KnobsByDBMS(dbc dbctx.Context, dbmsID uuid.UUID) (map[string]*types.KnobCatalog, error)
	MetricsByDBMS(dbc dbctx.Context, dbmsID uuid.UUID) (map[string]*types.MetricCatalog, error)
	KnobByName(dbc dbctx.Context, dbmsID uuid.UUID, name string) (*types.KnobCatalog, error)
	MetricByName(dbc dbctx.Context, dbmsID uuid.UUID, name string) (*types.MetricCatalog, error)
	HardwareByType(dbc dbctx.Context, hwType string) (*types.Hardware, error)
}

type catalogRepo struct {
	db  *gorm.DB
	rdb *goredis.Client
	log *logger.Logger
}

// NewCatalogRepo returns a catalog repo. rdb may be nil; definition maps are
// then loaded from Postgres on every call instead of the Redis read-through.
func NewCatalogRepo(db *gorm.DB, rdb *goredis.Client, baseLog *logger.Logger) CatalogRepo {
	return &catalogRepo{
		db:  db,
		rdb: rdb,
		log: baseLog.With("repo", "CatalogRepo"),
	}
}

func (r *catalogRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *catalogRepo) ResolveDBMS(dbc dbctx.Context, dbmsType, version string) (*types.DBMSCatalog, error) {
	var dbms types.DBMSCatalog
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("type = ? AND version = ?", types.NormalizeDBMSType(dbmsType), version).
		First(&dbms).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperr.UnsupportedDBMSError{Type: types.NormalizeDBMSType(dbmsType), Version: version}
	}
	if err != nil {
		return nil, err
	}
	return &dbms, nil
}

func (r *catalogRepo) GetDBMSByID(dbc dbctx.Context, id uuid.UUID) (*types.DBMSCatalog, error) {
	var dbms types.DBMSCatalog
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&dbms).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dbms, nil
}

func (r *catalogRepo) KnobsByDBMS(dbc dbctx.Context, dbmsID uuid.UUID) (map[string]*types.KnobCatalog, error) {
	cacheKey := fmt.Sprintf("catalog:knobs:%s", dbmsID)
	out := map[string]*types.KnobCatalog{}
	if r.cacheGet(dbc, cacheKey, &out) {
		return out, nil
	}
	var rows []*types.KnobCatalog
	if err := r.conn(dbc).WithContext(dbc.Ctx).Where("dbms_id = ?", dbmsID).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Name] = row
	}
	r.cacheSet(dbc, cacheKey, out)
	return out, nil
}

func (r *catalogRepo) MetricsByDBMS(dbc dbctx.Context, dbmsID uuid.UUID) (map[string]*types.MetricCatalog, error) {
	cacheKey := fmt.Sprintf("catalog:metrics:%s", dbmsID)
	out := map[string]*types.MetricCatalog{}
	if r.cacheGet(dbc, cacheKey, &out) {
		return out, nil
	}
	var rows []*types.MetricCatalog
	if err := r.conn(dbc).WithContext(dbc.Ctx).Where("dbms_id = ?", dbmsID).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Name] = row
	}
	r.cacheSet(dbc, cacheKey, out)
	return out, nil
}

func (r *catalogRepo) KnobByName(dbc dbctx.Context, dbmsID uuid.UUID, name string) (*types.KnobCatalog, error) {
	var knob types.KnobCatalog
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("dbms_id = ? AND name = ?", dbmsID, name).
		First(&knob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &knob, nil
}

func (r *catalogRepo) MetricByName(dbc dbctx.Context, dbmsID uuid.UUID, name string) (*types.MetricCatalog, error) {
	var metric types.MetricCatalog
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("dbms_id = ? AND name = ?", dbmsID, name).
		First(&metric).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &metric, nil
}

func (r *catalogRepo) HardwareByType(dbc dbctx.Context, hwType string) (*types.Hardware, error) {
	var hw types.Hardware
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("type = ?", hwType).First(&hw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hw, nil
}

// cacheGet/cacheSet are best-effort; a cold or unreachable Redis falls back to
// Postgres silently.
func (r *catalogRepo) cacheGet(dbc dbctx.Context, key string, dest any) bool {
	if r.rdb == nil {
		return false
	}
	raw, err := r.rdb.Get(dbc.Ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.log.Warn("Dropping undecodable catalog cache entry", "key", key, "error", err)
		_ = r.rdb.Del(dbc.Ctx, key).Err()
		return false
	}
	return true
}

func (r *catalogRepo) cacheSet(dbc dbctx.Context, key string, val any) {
	if r.rdb == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := r.rdb.Set(dbc.Ctx, key, raw, cacheTTL).Err(); err != nil {
		r.log.Debug("Catalog cache write failed", "key", key, "error", err)
	}
}
