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

type PlanRepo interface {
	Create(dbc dbctx.Context, plan *domain.Plan) (*domain.Plan, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Plan, error)
	ListByUser(dbc dbctx.Context, userID string, limit int) ([]*domain.Plan, error)
}

type planRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanRepo(db *gorm.DB, baseLog *logger.Logger) PlanRepo {
	repoLog := baseLog.With("repo", "PlanRepo")
	return &planRepo{db: db, log: repoLog}
}

func (r *planRepo) Create(dbc dbctx.Context, plan *domain.Plan) (*domain.Plan, error) {
	if plan == nil {
		return nil, errors.New("nil plan")
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	if err := dbc.DB(r.db).Create(plan).Error; err != nil {
		return nil, err
	}
	return plan, nil
}

// GetByID returns nil, nil when no row matches.
func (r *planRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Plan, error) {
	var out domain.Plan
	err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *planRepo) ListByUser(dbc dbctx.Context, userID string, limit int) ([]*domain.Plan, error) {
	var results []*domain.Plan
	if userID == "" {
		return results, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
