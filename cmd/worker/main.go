package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/dispatch"
	"github.com/indexpilot/indexpilot/internal/indexing"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/notify"
	"github.com/indexpilot/indexpilot/internal/progress"
	"github.com/indexpilot/indexpilot/internal/quota"
	"github.com/indexpilot/indexpilot/internal/scheduler"
	"github.com/indexpilot/indexpilot/internal/sitemap"
	"github.com/indexpilot/indexpilot/internal/storage/postgres"
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

	engineCfg, err := config.LoadEngineFromEnv(ctx)
	if err != nil {
		log.Fatal("load engine config", zap.Error(err))
	}

	db, err := postgres.ConnectDB(dbCfg, log)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}

	if os.Getenv("AUTO_MIGRATE") == "true" {
		if err := postgres.MigrateModels(db,
			&models.Job{},
			&models.ServiceAccount{},
			&models.QuotaUsage{},
			&models.URLSubmission{},
			&models.QuotaAlert{},
		); err != nil {
			log.Fatal("auto-migrate", zap.Error(err))
		}
	}

	jobRepo := postgres.NewJobRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	quotaRepo := postgres.NewQuotaRepository(db)
	submissionRepo := postgres.NewSubmissionRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

	broadcaster := newBroadcaster(ctx, log)
	sender := newSender(ctx, log)

	ledger := quota.NewLedger(quotaRepo)
	selector := quota.NewSelector(accountRepo, ledger)
	pauseManager := quota.NewPauseManager(jobRepo, submissionRepo, selector, sender, broadcaster, log)
	alertSweeper := quota.NewAlertSweeper(accountRepo, alertRepo, selector, sender, log)

	httpClient := &http.Client{Timeout: engineCfg.RequestTimeout}
	client := indexing.NewGoogleClient(httpClient, accountRepo, log)
	parser := sitemap.NewHTTPParser(httpClient, log)

	runner := dispatch.NewRunner(
		jobRepo, submissionRepo, ledger, pauseManager,
		client, parser, sender, broadcaster, engineCfg, log,
	)

	monitor := scheduler.NewMonitor(
		jobRepo, runner, pauseManager, alertSweeper,
		broadcaster, engineCfg, log,
	)

	log.Info("worker starting", zap.String("worker_id", engineCfg.WorkerID))

	if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("monitor stopped", zap.Error(err))
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

// newBroadcaster connects redis when REDIS_ADDR is set, otherwise job
// updates are dropped. The engine never depends on redis being up.
func newBroadcaster(ctx context.Context, log *zap.Logger) progress.Broadcaster {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Info("REDIS_ADDR not set, progress broadcasting disabled")
		return progress.Nop{}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, progress broadcasting disabled", zap.Error(err))
		return progress.Nop{}
	}

	return progress.NewRedisBroadcaster(rdb, log)
}

func newSender(ctx context.Context, log *zap.Logger) notify.Sender {
	var cfg notify.SMTPConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Warn("load smtp config failed, notifications disabled", zap.Error(err))
		return notify.Nop{}
	}
	if cfg.Host == "" {
		log.Info("SMTP_HOST not set, notifications disabled")
		return notify.Nop{}
	}
	return notify.NewSMTPSender(cfg, notify.IdentityResolver{}, log)
}
