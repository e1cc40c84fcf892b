package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Market string  `json:"market"`
	Price  float64 `json:"price"`
}

type recordingJob struct {
	got []json.RawMessage
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return "sample" }

func (j *recordingJob) Handle(_ context.Context, payload json.RawMessage) error {
	j.got = append(j.got, payload)
	return nil
}

func TestParsePayload(t *testing.T) {
	got, err := ParsePayload[sample](json.RawMessage(`{"market":"Kunigal","price":1800.5}`))
	require.NoError(t, err)
	assert.Equal(t, sample{Market: "Kunigal", Price: 1800.5}, *got)

	_, err = ParsePayload[sample](nil)
	assert.Error(t, err)
	_, err = ParsePayload[sample](json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestKeysAndDefaults(t *testing.T) {
	q := NewRedisQueue(nil, QueueConfig{}, nil, ModeConsumerOnly, WithKeyPrefix("mc:audit"))
	assert.Equal(t, "mc:audit:messages", q.queueKey())
	assert.Equal(t, "mc:audit:retry", q.retryKey())
	assert.Equal(t, "mc:audit:dlq", q.deadLetterKey())
	assert.Equal(t, 1, q.config.Workers)
	assert.Equal(t, 10*time.Second, q.config.RetryDelay)
	assert.Equal(t, "consumer-only", q.mode.String())
}

func TestRegisterJob(t *testing.T) {
	job := &recordingJob{}
	q := NewRedisConsumer(nil, QueueConfig{}, nil, []Job{job, &recordingJob{}})
	assert.Len(t, q.jobs, 1)
	assert.Same(t, job, q.jobs["sample"])

	p := NewRedisPublisher(nil, nil)
	p.RegisterJob(job)
	assert.Empty(t, p.jobs)
}

func TestEnqueueRequiresRunningQueue(t *testing.T) {
	q := NewRedisPublisher(nil, nil)
	err := q.Enqueue(context.Background(), "sample", sample{})
	assert.EqualError(t, err, "queue not running")
}

func TestProcessMessageDispatchesByType(t *testing.T) {
	job := &recordingJob{}
	q := NewRedisConsumer(nil, QueueConfig{}, nil, []Job{job})

	q.processMessage(Message{ID: "1", Type: "sample", Payload: json.RawMessage(`{"market":"Sompura"}`)})
	require.Len(t, job.got, 1)
	assert.JSONEq(t, `{"market":"Sompura"}`, string(job.got[0]))
}

func TestShouldRetry(t *testing.T) {
	q := NewRedisQueue(nil, QueueConfig{RetryLimit: 2}, nil, ModeProducerConsumer)
	assert.True(t, q.shouldRetry(Message{Attempts: 0}))
	assert.True(t, q.shouldRetry(Message{Attempts: 1}))
	assert.False(t, q.shouldRetry(Message{Attempts: 2}))
}
