package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/travelplanner-backend/internal/clients/redis"
	"github.com/yungbote/travelplanner-backend/internal/config"
	"github.com/yungbote/travelplanner-backend/internal/db"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type Clients struct {
	DB *db.Service
	// Redis is nil when no address is configured.
	Redis *goredis.Client
}

func wireClients(log *logger.Logger, cfg *config.Config) (Clients, error) {
	log.Info("Wiring clients...")

	dbs, err := db.Open(log, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return Clients{}, fmt.Errorf("init database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := dbs.AutoMigrate(); err != nil {
			_ = dbs.Close()
			return Clients{}, fmt.Errorf("database automigrate: %w", err)
		}
	}

	var rdb *goredis.Client
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rdb, err = redis.NewClient(log, redis.Config{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout.Duration,
		})
		if err != nil {
			_ = dbs.Close()
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
	}

	return Clients{DB: dbs, Redis: rdb}, nil
}

func (c Clients) pingDB(ctx context.Context) error {
	sqlDB, err := c.DB.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c Clients) pingRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.Redis.Ping(ctx).Err()
}
