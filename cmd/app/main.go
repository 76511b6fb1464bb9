package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"questlock/internal/api"
	"questlock/internal/bridge"
	"questlock/internal/metrics"
	"questlock/internal/repository"
	"questlock/internal/service"
	"questlock/pkg/auth"
	"questlock/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	agent := bridge.New(bridge.Config{
		AgentURL: cfg.Bridge.AgentURL,
		Timeout:  time.Duration(cfg.Bridge.TimeoutSeconds) * time.Second,
	})
	lockdown := bridge.NewLockdown(0)

	var notifier service.Notifier = service.NopNotifier{}
	if cfg.TelegramAuth.NotifyChatID != 0 {
		tg, err := service.NewTelegramNotifier(
			cfg.TelegramAuth.TelegramBotToken,
			cfg.TelegramAuth.NotifyChatID,
			cfg.TelegramAuth.Debug,
		)
		if err != nil {
			zapLogger.Warn("Failed to initialize telegram notifier, running silent", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	ledger := service.NewUnlockLedger(repo, cfg.Enforcement.LockedApps)
	if err := ledger.Hydrate(ctx); err != nil && !errors.Is(err, repository.ErrLedgerNotFound) {
		zapLogger.Warn("Failed to hydrate unlock ledger", zap.Error(err))
	}

	source := service.NewReconcilingSource(agent, agent,
		time.Duration(cfg.Bridge.LookbackSeconds)*time.Second)

	monitor := service.NewMonitor(ledger, source, agent, m, service.MonitorConfig{
		Interval:   time.Duration(cfg.Enforcement.PollIntervalMillis) * time.Millisecond,
		Mode:       service.MonitorMode(cfg.Enforcement.MonitorMode),
		ExemptApps: cfg.Enforcement.ExemptApps,
	})

	alarms := service.NewAlarmScheduler(agent, notifier, m)
	questService := service.NewQuestService(repo, alarms)
	timer := service.NewSessionTimer(repo, notifier, m)
	enforcer := service.NewSanctionsEnforcer(repo, repo, repo, repo, lockdown, m,
		time.Duration(cfg.Enforcement.SweepIntervalSeconds)*time.Second)

	hub := api.NewTimerHub()
	timer.SetPublisher(hub.Publish)

	go monitor.Run(ctx)
	go timer.Run(ctx)
	go enforcer.Run(ctx)

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.Debug)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	corsConfig.AllowHeaders = []string{"*"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(cors.New(corsConfig))

	a := router.Group("/api/v1")
	api.NewQuestRoutes(a, questService, telegramAuth)
	api.NewAppLockRoutes(a, ledger, m, telegramAuth)
	api.NewTimerRoutes(a, timer, hub, telegramAuth)
	api.NewPenaltyRoutes(a, repo, repo, telegramAuth)
	api.NewAlarmRoutes(a, alarms)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		zapLogger.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
}
