package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/travelplanner-backend/internal/config"
	"github.com/yungbote/travelplanner-backend/internal/db"
	"github.com/yungbote/travelplanner-backend/internal/http"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	DB       *db.Service
	Redis    *goredis.Client
	Metrics  *observability.Metrics
	Repos    Repos
	Services Services
	Server   *http.Server

	shutdownOtel func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Log: log, Cfg: cfg}
	a.shutdownOtel = observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Env,
	})
	a.Metrics = observability.Init(log, cfg.Metrics.Enabled)

	clients, err := wireClients(log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.DB, a.Redis = clients.DB, clients.Redis

	a.Repos = wireRepos(a.DB.DB(), log)

	a.Services, err = wireServices(ctx, log, cfg, a.Metrics, a.Repos, clients)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Server = wireServer(log, cfg, a.Metrics, a.Services, clients)
	return a, nil
}

// Start launches background collectors and the optional metrics listener.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB.DB())
		if a.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Redis)
		}
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// and background post-generation work.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("Server listening", "addr", a.Cfg.HTTP.Addr)
		errCh <- a.Server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := a.Cfg.HTTP.ShutdownTimeout.Duration
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a.Log.Info("Shutting down", "timeout", timeout.String())
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Log.Warn("http shutdown incomplete", "error", err)
	}

	drained := make(chan struct{})
	go func() {
		a.Services.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		a.Log.Warn("background work still running at shutdown deadline")
	}
	return <-errCh
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.shutdownOtel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownOtel(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
