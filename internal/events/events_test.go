package events

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/hiddenhill/api/internal/model"
)

func TestChannelRoundTrip(t *testing.T) {
	ch := Channel("abc")
	assert.Equal(t, "jobs:abc", ch)

	id, ok := JobIDFromChannel(ch)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = JobIDFromChannel("jobs:")
	assert.False(t, ok)
	_, ok = JobIDFromChannel("other:abc")
	assert.False(t, ok)
}

func TestPublishRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	err := NewRedisPublisher(rdb).Publish(context.Background(), model.ProgressEvent{JobID: "abc"})
	assert.Error(t, err)
}
