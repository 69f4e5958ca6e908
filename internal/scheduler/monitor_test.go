package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/mocks"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/progress"
)

type fakeExecutor struct {
	mu  sync.Mutex
	ids []uint
}

func (f *fakeExecutor) Execute(_ context.Context, jobID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, jobID)
	return nil
}

func (f *fakeExecutor) executed() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.ids...)
}

func testEngineConfig() *config.Engine {
	return &config.Engine{
		TickInterval:      time.Minute,
		StuckJobThreshold: 5 * time.Minute,
		LockTimeout:       10 * time.Minute,
		MaxConcurrentJobs: 4,
		WorkerID:          "worker-test",
	}
}

func newTestMonitor(repo *mocks.JobRepoMock, exec Executor) *Monitor {
	return NewMonitor(repo, exec, nil, nil, progress.Nop{}, testEngineConfig(), zap.NewNop())
}

func TestMonitor_DispatchDue_LocksAndExecutes(t *testing.T) {
	repo := new(mocks.JobRepoMock)
	exec := &fakeExecutor{}
	m := newTestMonitor(repo, exec)

	due := []models.Job{
		{ID: 1, Name: "one-time", Schedule: config.ScheduleOneTime, Status: config.JobStatusPending},
		{ID: 2, Name: "contested", Schedule: config.ScheduleOneTime, Status: config.JobStatusPending},
	}

	repo.On("FindStuck", mock.Anything, 5*time.Minute).Return([]models.Job{}, nil)
	repo.On("FindDue", mock.Anything, mock.Anything).Return(due, nil)
	repo.On("TryLock", mock.Anything, uint(1), "worker-test", 10*time.Minute).Return(true, nil)
	// another worker wins job 2
	repo.On("TryLock", mock.Anything, uint(2), "worker-test", 10*time.Minute).Return(false, nil)

	m.tickOnce(context.Background())
	m.wg.Wait()

	assert.Equal(t, []uint{1}, exec.executed())
	repo.AssertExpectations(t)
}

func TestMonitor_DispatchDue_AdvancesNextRunBeforeExecute(t *testing.T) {
	repo := new(mocks.JobRepoMock)
	exec := &fakeExecutor{}
	m := newTestMonitor(repo, exec)

	due := []models.Job{{
		ID:             3,
		Name:           "hourly",
		Schedule:       config.ScheduleHourly,
		CronExpression: "0 * * * *",
		Status:         config.JobStatusPending,
	}}

	repo.On("FindStuck", mock.Anything, mock.Anything).Return([]models.Job{}, nil)
	repo.On("FindDue", mock.Anything, mock.Anything).Return(due, nil)
	repo.On("TryLock", mock.Anything, uint(3), "worker-test", 10*time.Minute).Return(true, nil)
	repo.On("UpdateNextRun", mock.Anything, uint(3), mock.MatchedBy(func(next time.Time) bool {
		return next.After(time.Now().UTC()) && next.Minute() == 0
	})).Return(nil)

	m.tickOnce(context.Background())
	m.wg.Wait()

	assert.Equal(t, []uint{3}, exec.executed())
	repo.AssertExpectations(t)
}

func TestMonitor_DispatchDue_OneTimeSkipsNextRun(t *testing.T) {
	repo := new(mocks.JobRepoMock)
	exec := &fakeExecutor{}
	m := newTestMonitor(repo, exec)

	due := []models.Job{{ID: 4, Name: "once", Schedule: config.ScheduleOneTime}}

	repo.On("FindStuck", mock.Anything, mock.Anything).Return([]models.Job{}, nil)
	repo.On("FindDue", mock.Anything, mock.Anything).Return(due, nil)
	repo.On("TryLock", mock.Anything, uint(4), "worker-test", 10*time.Minute).Return(true, nil)

	m.tickOnce(context.Background())
	m.wg.Wait()

	repo.AssertNotCalled(t, "UpdateNextRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestMonitor_ReapStuck(t *testing.T) {
	repo := new(mocks.JobRepoMock)
	exec := &fakeExecutor{}
	m := newTestMonitor(repo, exec)

	stuck := []models.Job{
		{ID: 7, Name: "abandoned", Status: config.JobStatusRunning, LockedBy: "dead-worker"},
	}

	repo.On("FindStuck", mock.Anything, 5*time.Minute).Return(stuck, nil)
	repo.On("ResetStuck", mock.Anything, uint(7)).Return(nil)
	repo.On("FindDue", mock.Anything, mock.Anything).Return([]models.Job{}, nil)

	m.tickOnce(context.Background())
	m.wg.Wait()

	repo.AssertExpectations(t)
}

func TestMonitor_ReapStuck_ResetFailureDoesNotStopSweep(t *testing.T) {
	repo := new(mocks.JobRepoMock)
	exec := &fakeExecutor{}
	m := newTestMonitor(repo, exec)

	stuck := []models.Job{
		{ID: 7, Status: config.JobStatusRunning},
		{ID: 8, Status: config.JobStatusRunning},
	}

	repo.On("FindStuck", mock.Anything, mock.Anything).Return(stuck, nil)
	repo.On("ResetStuck", mock.Anything, uint(7)).Return(assert.AnError)
	repo.On("ResetStuck", mock.Anything, uint(8)).Return(nil)
	repo.On("FindDue", mock.Anything, mock.Anything).Return([]models.Job{}, nil)

	m.tickOnce(context.Background())

	repo.AssertExpectations(t)
}

func TestMonitor_DispatchDue_FindDueError(t *testing.T) {
	repo := new(mocks.JobRepoMock)
	exec := &fakeExecutor{}
	m := newTestMonitor(repo, exec)

	repo.On("FindStuck", mock.Anything, mock.Anything).Return([]models.Job{}, nil)
	repo.On("FindDue", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	// must not panic or dispatch anything
	m.tickOnce(context.Background())
	m.wg.Wait()

	assert.Empty(t, exec.executed())
}

func TestMonitor_ConcurrencyBounded(t *testing.T) {
	repo := new(mocks.JobRepoMock)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	block := make(chan struct{})

	exec := executorFunc(func(ctx context.Context, jobID uint) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		<-block

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	cfg := testEngineConfig()
	cfg.MaxConcurrentJobs = 2
	m := NewMonitor(repo, exec, nil, nil, progress.Nop{}, cfg, zap.NewNop())

	due := make([]models.Job, 5)
	for i := range due {
		due[i] = models.Job{ID: uint(i + 1), Schedule: config.ScheduleOneTime}
	}

	repo.On("FindStuck", mock.Anything, mock.Anything).Return([]models.Job{}, nil)
	repo.On("FindDue", mock.Anything, mock.Anything).Return(due, nil)
	repo.On("TryLock", mock.Anything, mock.Anything, "worker-test", mock.Anything).Return(true, nil)

	done := make(chan struct{})
	go func() {
		m.tickOnce(context.Background())
		close(done)
	}()

	// give the first wave time to start, then release everyone
	time.Sleep(100 * time.Millisecond)
	close(block)
	<-done
	m.wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, peak, 2, "dispatch concurrency must respect the slot limit")
}

type executorFunc func(ctx context.Context, jobID uint) error

func (f executorFunc) Execute(ctx context.Context, jobID uint) error { return f(ctx, jobID) }
