package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/pffigueiredo/daily-step-tracker/internal/cache"
	"github.com/pffigueiredo/daily-step-tracker/internal/config"
	"github.com/pffigueiredo/daily-step-tracker/internal/controller"
	"github.com/pffigueiredo/daily-step-tracker/internal/middleware"
	"github.com/pffigueiredo/daily-step-tracker/internal/repository"
	"github.com/pffigueiredo/daily-step-tracker/internal/service"
	"github.com/pffigueiredo/daily-step-tracker/pkg/configwatcher"
	"github.com/pffigueiredo/daily-step-tracker/pkg/database"
	"github.com/pffigueiredo/daily-step-tracker/pkg/logger"
	"github.com/pffigueiredo/daily-step-tracker/pkg/monitoring"
	"github.com/pffigueiredo/daily-step-tracker/pkg/security"
	"github.com/pffigueiredo/daily-step-tracker/pkg/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	dailySteps *repository.DailyStepsRepository
}

type services struct {
	dailySteps *service.DailyStepsService
}

type controllers struct {
	dailySteps *controller.DailyStepsController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		dailySteps: repository.NewDailyStepsRepository(db),
	}
}

func (a *App) initServices(repos *repositories) *services {
	// 未启用 redis 时传入 nil 接口，避免 typed nil
	var stepsCache service.StepsCache
	if a.Redis != nil {
		stepsCache = cache.NewStepsCache(a.Redis, a.Config.Redis.TTL())
	}

	return &services{
		dailySteps: service.NewDailyStepsService(repos.dailySteps, stepsCache),
	}
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		dailySteps: controller.NewDailyStepsController(s.dailySteps),
		health:     controller.NewHealthController(a.DB),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// NewApp 初始化日志、数据库、缓存和路由，失败时释放已建立的连接
func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully", zap.String("mode", cfg.Server.Mode))

	gin.SetMode(cfg.Server.Mode)

	debug := cfg.Server.Mode == gin.DebugMode
	db, err := database.InitDB(&cfg.Database, debug)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: db}

	if cfg.ForceMigrate || debug {
		if err := database.Migrate(db); err != nil {
			app.Close()
			return nil, err
		}
	}

	if cfg.Redis.Enabled() {
		rdb, err := database.InitRedis(context.Background(), &cfg.Redis)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = rdb
	} else {
		logger.Log.Info("Redis not configured, steps cache disabled")
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.tracerProvider = tp
	}

	// 监控初始化
	monitoring.Init()

	repos := app.initRepositories(db)
	svcs := app.initServices(repos)
	ctrls := app.initControllers(svcs)

	router := gin.New()
	app.Router = router
	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls)

	app.RegisterConfigCallback(logger.ApplyConfig)

	return app, nil
}

// Run 阻塞直到收到 SIGINT/SIGTERM，然后优雅关闭
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	if a.Config.ConfigFile != "" {
		go func() {
			if err := configwatcher.WatchConfig(ctx, a.Config.ConfigFile, a.reloadConfig); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down server...")

	// 等待进行中的请求完成（最多5秒）
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Log.Info("Server exiting")
	return nil
}

func (a *App) reloadConfig(cfg *config.Config) {
	logger.Log.Info("Config reloaded", zap.String("file", cfg.ConfigFile))
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
}

// Close 释放数据库、redis 连接并刷新追踪数据
func (a *App) Close() {
	if a.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
		a.tracerProvider = nil
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Log.Error("Failed to close redis", zap.Error(err))
		}
		a.Redis = nil
	}

	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			logger.Log.Error("Failed to close database", zap.Error(err))
		}
		a.DB = nil
	}

	_ = logger.Log.Sync()
}
