// Package cache stores validated reports by preference fingerprint: an
// expirable in-process LRU in front of a durable store.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/datatypes"

	"github.com/yungbote/travelplanner-backend/internal/data/repos"
	domain "github.com/yungbote/travelplanner-backend/internal/domain/planner"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/platform/dbctx"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

const (
	DefaultTTL     = 7 * 24 * time.Hour
	DefaultLRUSize = 512
	DefaultLRUTTL  = 10 * time.Minute

	incrementTimeout = 5 * time.Second
)

// Store is the durable tier.
type Store interface {
	Get(ctx context.Context, hash string) (*domain.CacheEntry, error)
	Upsert(ctx context.Context, entry *domain.CacheEntry) error
	IncrementHits(ctx context.Context, hash string) error
}

type repoStore struct {
	repo repos.CacheRepo
}

// NewRepoStore adapts the gorm cache repository to Store.
func NewRepoStore(repo repos.CacheRepo) Store {
	return &repoStore{repo: repo}
}

func (s *repoStore) Get(ctx context.Context, hash string) (*domain.CacheEntry, error) {
	return s.repo.Get(dbctx.From(ctx), hash)
}

func (s *repoStore) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	return s.repo.Upsert(dbctx.From(ctx), entry)
}

func (s *repoStore) IncrementHits(ctx context.Context, hash string) error {
	return s.repo.IncrementHits(dbctx.From(ctx), hash)
}

type Config struct {
	TTL     time.Duration
	LRUSize int
	LRUTTL  time.Duration
}

type Entry struct {
	Report    contract.PlannerReport
	Model     string
	CreatedAt time.Time
}

type Cache struct {
	log     *logger.Logger
	store   Store
	front   *expirable.LRU[string, Entry]
	ttl     time.Duration
	metrics *observability.Metrics
	now     func() time.Time
	wg      sync.WaitGroup
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func New(baseLog *logger.Logger, store Store, cfg Config, opts ...Option) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.LRUSize <= 0 {
		cfg.LRUSize = DefaultLRUSize
	}
	if cfg.LRUTTL <= 0 {
		cfg.LRUTTL = DefaultLRUTTL
	}
	if cfg.LRUTTL > cfg.TTL {
		cfg.LRUTTL = cfg.TTL
	}
	c := &Cache{
		log:   baseLog.With("service", "PlannerCache"),
		store: store,
		front: expirable.NewLRU[string, Entry](cfg.LRUSize, nil, cfg.LRUTTL),
		ttl:   cfg.TTL,
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) expired(createdAt time.Time) bool {
	return c.now().Sub(createdAt) > c.ttl
}

// Get returns the cached report for hash. Store errors and expired or
// unreadable rows are misses. A hit bumps the durable hit counter in the
// background.
func (c *Cache) Get(ctx context.Context, hash string) (Entry, bool) {
	if e, ok := c.front.Get(hash); ok {
		if !c.expired(e.CreatedAt) {
			c.metrics.IncCacheLookup("hit")
			c.incrementAsync(ctx, hash)
			return e, true
		}
		c.front.Remove(hash)
	}

	row, err := c.store.Get(ctx, hash)
	if err != nil {
		c.log.Warn("cache read failed", "hash", hash, "error", err)
		c.metrics.IncCacheLookup("error")
		return Entry{}, false
	}
	if row == nil || c.expired(row.CreatedAt) {
		c.metrics.IncCacheLookup("miss")
		return Entry{}, false
	}
	report, err := contract.ValidateReport(row.Report)
	if err != nil {
		c.log.Warn("cached report no longer validates", "hash", hash, "error", err)
		c.metrics.IncCacheLookup("miss")
		return Entry{}, false
	}

	e := Entry{Report: report, Model: row.Model, CreatedAt: row.CreatedAt}
	c.front.Add(hash, e)
	c.metrics.IncCacheLookup("hit")
	c.incrementAsync(ctx, hash)
	return e, true
}

// Set upserts the report, resetting hit count and age.
func (c *Cache) Set(ctx context.Context, hash string, report contract.PlannerReport, model string) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	createdAt := c.now().UTC()
	if err := c.store.Upsert(ctx, &domain.CacheEntry{
		Hash:      hash,
		Report:    datatypes.JSON(raw),
		Model:     model,
		CreatedAt: createdAt,
	}); err != nil {
		c.front.Remove(hash)
		return err
	}
	c.front.Add(hash, Entry{Report: report, Model: model, CreatedAt: createdAt})
	return nil
}

func (c *Cache) incrementAsync(ctx context.Context, hash string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), incrementTimeout)
		defer cancel()
		if err := c.store.IncrementHits(ictx, hash); err != nil {
			c.log.Debug("cache hit increment failed", "hash", hash, "error", err)
		}
	}()
}

// Wait blocks until background hit increments finish.
func (c *Cache) Wait() {
	c.wg.Wait()
}
