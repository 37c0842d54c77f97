package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/travelplanner-backend/internal/data/repos/planner"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type PlanRepo = planner.PlanRepo
type CacheRepo = planner.CacheRepo
type EventRepo = planner.EventRepo

func NewPlanRepo(db *gorm.DB, baseLog *logger.Logger) PlanRepo { return planner.NewPlanRepo(db, baseLog) }
func NewCacheRepo(db *gorm.DB, baseLog *logger.Logger) CacheRepo {
	return planner.NewCacheRepo(db, baseLog)
}
func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return planner.NewEventRepo(db, baseLog)
}
