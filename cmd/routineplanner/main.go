package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"routine-planner/internal/bot"
	"routine-planner/internal/config"
	"routine-planner/internal/httpapi"
	"routine-planner/internal/logger"
	"routine-planner/internal/repository"
	"routine-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		zlog.Fatal("timezone", zap.Error(err))
	}
	clock := func() time.Time { return time.Now().In(loc) }

	db, err := repository.NewDB(cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal("db", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	categorySvc := service.NewCategoryService(categoryRepo)
	taskSvc := service.NewTaskService(taskRepo, categoryRepo, zlog)
	reminderSvc := service.NewReminderService(taskRepo, categorySvc)
	rolloverSvc := service.NewRolloverService(taskRepo, userRepo, cfg.LoginDebounce, zlog)

	var server *http.Server
	if cfg.HTTPAddr != "" {
		if cfg.Log.Environment == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		handler := httpapi.NewHandler(userRepo, taskSvc, rolloverSvc, clock, zlog)
		server = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewRouter(handler, zlog),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			zlog.Info("http api listening", zap.String("addr", cfg.HTTPAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Error("http api stopped", zap.Error(err))
				stop()
			}
		}()
	}

	if cfg.TelegramToken == "" {
		zlog.Info("TELEGRAM_TOKEN not set, running the HTTP API only")
		<-ctx.Done()
		shutdown(server, zlog)
		return
	}

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Services{
		Users:      userRepo,
		Categories: categorySvc,
		Tasks:      taskSvc,
		Reminders:  reminderSvc,
		Rollover:   rolloverSvc,
	}, clock, zlog)
	if err != nil {
		zlog.Fatal("bot", zap.Error(err))
	}

	sendReports := func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("report", zap.Error(err))
		}
	}

	scheduler := service.NewSchedulerService(loc, zlog)
	if _, err := scheduler.ScheduleDaily(cfg.ReportAt, sendReports); err != nil {
		zlog.Fatal("schedule daily report", zap.Error(err))
	}
	if cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, sendReports); err != nil {
			zlog.Fatal("schedule reports", zap.Error(err))
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	zlog.Info("routine planner started", zap.String("report_at", cfg.ReportAt), zap.Duration("report_interval", cfg.ReportInterval))
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Error("bot stopped with error", zap.Error(err))
	}
	shutdown(server, zlog)
	zlog.Info("shutdown complete")
}

func shutdown(server *http.Server, zlog *zap.Logger) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("http shutdown", zap.Error(err))
	}
}
