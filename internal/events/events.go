// Package events carries job progress notifications over Redis pub/sub so
// that websocket subscribers on any API instance see worker updates.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hiddenhill/api/internal/model"
)

const (
	channelPrefix = "jobs:"
	// ChannelPattern matches every job channel.
	ChannelPattern = channelPrefix + "*"
)

// Channel returns the pub/sub channel for a job
func Channel(jobID string) string {
	return channelPrefix + jobID
}

// JobIDFromChannel is the inverse of Channel
func JobIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channel, channelPrefix)
	return id, id != ""
}

// Publisher sends a progress event to whoever listens for the job
type Publisher interface {
	Publish(ctx context.Context, ev model.ProgressEvent) error
}

// RedisPublisher publishes events with PUBLISH
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.redis.Publish(ctx, Channel(ev.JobID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event for job %s: %w", ev.JobID, err)
	}
	return nil
}

// Subscribe listens on every job channel and calls fn for each message until
// ctx is done.
func Subscribe(ctx context.Context, redisClient *redis.Client, fn func(jobID string, payload []byte)) error {
	sub := redisClient.PSubscribe(ctx, ChannelPattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", ChannelPattern, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			jobID, ok := JobIDFromChannel(msg.Channel)
			if !ok {
				continue
			}
			fn(jobID, []byte(msg.Payload))
		}
	}
}
