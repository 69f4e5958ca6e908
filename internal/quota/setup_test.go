package quota

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/storage/postgres"
)

type testEnv struct {
	db       *gorm.DB
	jobs     *postgres.JobRepository
	accounts *postgres.AccountRepository
	subs     *postgres.SubmissionRepository
	alerts   *postgres.AlertRepository
	ledger   *Ledger
	selector *Selector
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Job{},
		&models.ServiceAccount{},
		&models.QuotaUsage{},
		&models.URLSubmission{},
		&models.QuotaAlert{},
	))

	ledger := NewLedger(postgres.NewQuotaRepository(db))
	accounts := postgres.NewAccountRepository(db)

	return &testEnv{
		db:       db,
		jobs:     postgres.NewJobRepository(db),
		accounts: accounts,
		subs:     postgres.NewSubmissionRepository(db),
		alerts:   postgres.NewAlertRepository(db),
		ledger:   ledger,
		selector: NewSelector(accounts, ledger),
	}
}

func (e *testEnv) addAccount(t *testing.T, userID, name string, limit, used int, date string) *models.ServiceAccount {
	t.Helper()
	account := &models.ServiceAccount{
		UserID:          userID,
		Name:            name,
		ClientEmail:     name + "@proj.iam.gserviceaccount.com",
		CredentialsJSON: "{}",
		IsActive:        true,
		DailyQuotaLimit: limit,
	}
	require.NoError(t, e.db.Create(account).Error)

	if used > 0 {
		require.NoError(t, e.db.Create(&models.QuotaUsage{
			ServiceAccountID: account.ID,
			Date:             date,
			RequestsCount:    used,
		}).Error)
	}
	return account
}

// recordingSender captures notification calls for assertions.
type recordingSender struct {
	mu          sync.Mutex
	paused      []string
	resumed     []string
	completions []string
	failures    []string
	quotaAlerts []config.AlertLevel
}

func (r *recordingSender) Completion(_ context.Context, _, jobName string, _, _, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, jobName)
}

func (r *recordingSender) Failure(_ context.Context, _, jobName, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, jobName)
}

func (r *recordingSender) Paused(_ context.Context, _, jobName, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = append(r.paused, jobName)
}

func (r *recordingSender) Resumed(_ context.Context, _, jobName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed = append(r.resumed, jobName)
}

func (r *recordingSender) QuotaAlert(_ context.Context, _, _ string, _, _, _ int, level config.AlertLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotaAlerts = append(r.quotaAlerts, level)
}
