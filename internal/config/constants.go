package config

type JobStatus string

type JobSchedule string

type URLStatus string

type AlertLevel string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCancelled JobStatus = "cancelled"
)

const (
	ScheduleOneTime JobSchedule = "one-time"
	ScheduleHourly  JobSchedule = "hourly"
	ScheduleDaily   JobSchedule = "daily"
	ScheduleWeekly  JobSchedule = "weekly"
	ScheduleMonthly JobSchedule = "monthly"
)

const (
	URLStatusPending       URLStatus = "pending"
	URLStatusSuccess       URLStatus = "success"
	URLStatusError         URLStatus = "error"
	URLStatusQuotaExceeded URLStatus = "quota_exceeded"
)

const (
	AlertWarning   AlertLevel = "warning"
	AlertCritical  AlertLevel = "critical"
	AlertExhausted AlertLevel = "exhausted"
)

var AllowedSchedules = []JobSchedule{
	ScheduleOneTime,
	ScheduleHourly,
	ScheduleDaily,
	ScheduleWeekly,
	ScheduleMonthly,
}

// Terminal reports whether a job status cannot transition any further
// without user action.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}
