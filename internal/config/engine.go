package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Engine holds the tunables for the dispatch engine. Every knob has a
// default that matches the external provider's published limits (200
// requests/day, 60 requests/minute per service account).
type Engine struct {
	TickInterval        time.Duration `env:"MONITOR_TICK_INTERVAL,default=60s"`
	StuckJobThreshold   time.Duration `env:"STUCK_JOB_THRESHOLD,default=5m"`
	LockTimeout         time.Duration `env:"LOCK_TIMEOUT,default=10m"`
	ResumeSweepInterval time.Duration `env:"RESUME_SWEEP_INTERVAL,default=1h"`
	AlertSweepInterval  time.Duration `env:"ALERT_SWEEP_INTERVAL,default=1h"`
	SubmitDelay         time.Duration `env:"SUBMIT_DELAY,default=1s"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
	MaxConcurrentJobs   int           `env:"MAX_CONCURRENT_JOBS,default=5"`
	WorkerID            string        `env:"WORKER_ID"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadEngineFromEnv(ctx context.Context) (*Engine, error) {
	var cfg Engine
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateEngine(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		cfg.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	return &cfg, nil
}

func validateEngine(cfg *Engine) error {
	var errs []string

	if cfg.TickInterval < time.Second {
		errs = append(errs, "MONITOR_TICK_INTERVAL must be at least 1s")
	}

	if cfg.StuckJobThreshold <= 0 {
		errs = append(errs, "STUCK_JOB_THRESHOLD must be positive")
	}

	if cfg.LockTimeout <= cfg.StuckJobThreshold {
		errs = append(errs, "LOCK_TIMEOUT must be longer than STUCK_JOB_THRESHOLD")
	}

	if cfg.ResumeSweepInterval < time.Minute {
		errs = append(errs, "RESUME_SWEEP_INTERVAL must be at least 1m")
	}

	if cfg.SubmitDelay < 0 {
		errs = append(errs, "SUBMIT_DELAY must be non-negative")
	}

	if cfg.RequestTimeout <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT must be positive")
	}

	if cfg.MaxConcurrentJobs < 1 {
		errs = append(errs, "MAX_CONCURRENT_JOBS must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
