package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/job"
	"github.com/indexpilot/indexpilot/internal/notify"
	"github.com/indexpilot/indexpilot/internal/progress"
	"github.com/indexpilot/indexpilot/internal/quota"
	"github.com/indexpilot/indexpilot/internal/storage/postgres"
	"github.com/indexpilot/indexpilot/middleware"
)

func main() {
	log := newLogger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal("load database config", zap.Error(err))
	}

	db, err := postgres.ConnectDB(dbCfg, log)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}

	jobRepo := postgres.NewJobRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	quotaRepo := postgres.NewQuotaRepository(db)
	submissionRepo := postgres.NewSubmissionRepository(db)

	ledger := quota.NewLedger(quotaRepo)
	selector := quota.NewSelector(accountRepo, ledger)

	// the API only needs the manual-resume slice of the pause manager;
	// notifications for resumes triggered here would be redundant
	pauseManager := quota.NewPauseManager(
		jobRepo, submissionRepo, selector, notify.Nop{}, progress.Nop{}, log,
	)

	service := job.NewJobService(jobRepo, submissionRepo, pauseManager, selector)
	handler := job.NewJobHandler(service)

	if os.Getenv("APP_ENV") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.ErrorHandler())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handler.RegisterRoutes(router.Group("/api/v1"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("serve failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}

	log.Info("shutdown complete")
}

func newLogger() *zap.Logger {
	if os.Getenv("APP_ENV") == "development" {
		log, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return log
	}

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return log
}
