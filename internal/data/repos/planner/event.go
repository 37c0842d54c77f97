package planner

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/travelplanner-backend/internal/domain/planner"
	"github.com/yungbote/travelplanner-backend/internal/platform/dbctx"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type EventRepo interface {
	Create(dbc dbctx.Context, ev *domain.Event) error
	ListBySource(dbc dbctx.Context, source string, limit int) ([]*domain.Event, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	repoLog := baseLog.With("repo", "EventRepo")
	return &eventRepo{db: db, log: repoLog}
}

func (r *eventRepo) Create(dbc dbctx.Context, ev *domain.Event) error {
	if ev == nil {
		return errors.New("nil event")
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return dbc.DB(r.db).Create(ev).Error
}

func (r *eventRepo) ListBySource(dbc dbctx.Context, source string, limit int) ([]*domain.Event, error) {
	var results []*domain.Event
	if limit <= 0 {
		limit = 50
	}
	if err := dbc.DB(r.db).
		Where("source = ?", source).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
