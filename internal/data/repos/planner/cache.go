package planner

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/travelplanner-backend/internal/domain/planner"
	"github.com/yungbote/travelplanner-backend/internal/platform/dbctx"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type CacheRepo interface {
	// Get returns nil, nil when the hash is unknown. It does not look at age.
	Get(dbc dbctx.Context, hash string) (*domain.CacheEntry, error)
	// Upsert overwrites report and model and resets hit_count and created_at.
	Upsert(dbc dbctx.Context, entry *domain.CacheEntry) error
	IncrementHits(dbc dbctx.Context, hash string) error
}

type cacheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCacheRepo(db *gorm.DB, baseLog *logger.Logger) CacheRepo {
	repoLog := baseLog.With("repo", "CacheRepo")
	return &cacheRepo{db: db, log: repoLog}
}

func (r *cacheRepo) Get(dbc dbctx.Context, hash string) (*domain.CacheEntry, error) {
	var out domain.CacheEntry
	err := dbc.DB(r.db).Where("hash = ?", hash).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *cacheRepo) Upsert(dbc dbctx.Context, entry *domain.CacheEntry) error {
	if entry == nil || entry.Hash == "" {
		return errors.New("cache entry requires a hash")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.HitCount = 0

	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"report", "model", "hit_count", "created_at"}),
		}).
		Create(entry).Error
}

func (r *cacheRepo) IncrementHits(dbc dbctx.Context, hash string) error {
	return dbc.DB(r.db).
		Model(&domain.CacheEntry{}).
		Where("hash = ?", hash).
		UpdateColumn("hit_count", gorm.Expr("hit_count + ?", 1)).Error
}
