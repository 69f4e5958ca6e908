package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/config"
)

const defaultChannel = "jobs:updates"

type event struct {
	Type      string           `json:"type"`
	JobID     uint             `json:"jobId"`
	Status    config.JobStatus `json:"status"`
	Data      map[string]any   `json:"data,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// RedisBroadcaster publishes job updates on a redis pub/sub channel.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisBroadcaster(rdb *redis.Client, log *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, channel: defaultChannel, log: log.Named("progress")}
}

func (b *RedisBroadcaster) JobUpdate(ctx context.Context, jobID uint, status config.JobStatus, data map[string]any) {
	payload, err := json.Marshal(event{
		Type:      "jobUpdate",
		JobID:     jobID,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		b.log.Error("marshal job update", zap.Error(err))
		return
	}

	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn("publish job update failed",
			zap.Uint("job_id", jobID),
			zap.Error(err),
		)
	}
}
