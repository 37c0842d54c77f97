package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewClient connects and pings. An empty address is an error; callers that
// treat redis as optional should check the address first.
func NewClient(log *logger.Logger, cfg Config) (*goredis.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dial,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dial)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.With("service", "RedisClient").Info("redis connected", "addr", addr, "db", cfg.DB)
	return rdb, nil
}
