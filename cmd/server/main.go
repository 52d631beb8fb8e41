package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskplanner/api/handler"
	"github.com/fastygo/taskplanner/internal/app"
	"github.com/fastygo/taskplanner/internal/config"
	"github.com/fastygo/taskplanner/internal/infrastructure/buffer"
	"github.com/fastygo/taskplanner/internal/infrastructure/monitor"
	"github.com/fastygo/taskplanner/internal/middleware"
	"github.com/fastygo/taskplanner/internal/router"
	"github.com/fastygo/taskplanner/internal/services"
	"github.com/fastygo/taskplanner/internal/services/lifecycle"
	"github.com/fastygo/taskplanner/pkg/httpcontext"
	"github.com/fastygo/taskplanner/pkg/logger"
	authUC "github.com/fastygo/taskplanner/usecase/auth"
	profileUC "github.com/fastygo/taskplanner/usecase/profile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = uuid.NewString()
		zapLogger.Warn("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	stores, err := app.Open(appCtx, cfg, zapLogger, manager)
	if err != nil {
		zapLogger.Fatal("storage initialisation failed", zap.Error(err))
	}

	var outbox *buffer.Outbox
	if cfg.Buffer.Enabled {
		outbox, err = buffer.Open(cfg.Buffer.Path)
		if err != nil {
			zapLogger.Fatal("failed to open outbox", zap.Error(err))
		}
		manager.Register("outbox", lifecycle.Closer(outbox.Close))
	}

	var processor *services.EventProcessor
	mon := monitor.New(stores.Checks, func() int { return processor.Size() }, 10*time.Second, zapLogger)
	processor = services.NewEventProcessor(outbox, stores.Events, mon, zapLogger, services.ProcessorConfig{
		Interval:   cfg.Buffer.SyncInterval,
		BatchSize:  cfg.Buffer.BatchSize,
		MaxRetries: cfg.Buffer.MaxRetry,
	})

	mon.Start()
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})
	processor.Start()
	manager.Register("event_processor", processor.Stop)

	authUseCase := authUC.New(stores.Users, stores.Sessions, authUC.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		TokenTTL: cfg.JWT.TokenTTL,
	}, zapLogger)
	profileUseCase := profileUC.New(stores.Users, zapLogger)
	taskUseCase := stores.TaskUseCase(cfg, processor, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:    apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(authUseCase, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.Bool("outbox", outbox != nil))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
