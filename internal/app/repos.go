package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/travelplanner-backend/internal/data/repos"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type Repos struct {
	Plan  repos.PlanRepo
	Cache repos.CacheRepo
	Event repos.EventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Plan:  repos.NewPlanRepo(db, log),
		Cache: repos.NewCacheRepo(db, log),
		Event: repos.NewEventRepo(db, log),
	}
}
