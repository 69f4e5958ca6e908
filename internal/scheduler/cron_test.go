package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexpilot/indexpilot/internal/config"
)

func TestCronFor(t *testing.T) {
	tests := []struct {
		schedule config.JobSchedule
		want     string
		wantErr  bool
	}{
		{config.ScheduleOneTime, "", false},
		{config.ScheduleHourly, "0 * * * *", false},
		{config.ScheduleDaily, "0 9 * * *", false},
		{config.ScheduleWeekly, "0 9 * * 1", false},
		{config.ScheduleMonthly, "0 9 1 * *", false},
		{config.JobSchedule("fortnightly"), "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.schedule), func(t *testing.T) {
			expr, err := CronFor(tt.schedule)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr)

			if expr != "" {
				assert.NoError(t, ValidateCron(expr))
			}
		})
	}
}

func TestNextAfter(t *testing.T) {
	// Saturday 2026-08-29 10:30 UTC
	after := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			name: "hourly fires on the next hour",
			expr: "0 * * * *",
			want: time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC),
		},
		{
			name: "daily at 09:00 rolls to tomorrow",
			expr: "0 9 * * *",
			want: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly on monday",
			expr: "0 9 * * 1",
			want: time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly on the first",
			expr: "0 9 1 * *",
			want: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := NextAfter(tt.expr, after)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestNextAfter_InvalidExpression(t *testing.T) {
	_, err := NextAfter("not a cron", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse cron expression")
}

func TestValidateCron(t *testing.T) {
	assert.NoError(t, ValidateCron("*/5 * * * *"))
	assert.Error(t, ValidateCron("61 * * * *"))
	assert.Error(t, ValidateCron(""))
}
