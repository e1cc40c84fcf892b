package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchRecorder struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (r *batchRecorder) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.batches = append(r.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (r *batchRecorder) snapshot() [][]AggregatedLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]AggregatedLogEntry(nil), r.batches...)
}

func TestCollectorFoldsRepeatsAndFlushesOnClose(t *testing.T) {
	pub := &batchRecorder{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "mandicast.logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "feed timeout", map[string]interface{}{"market": "Kolar Mandi"}, "feed/ceda.go:80")
	}
	c.AddLog("error", "feed timeout", map[string]interface{}{"market": "Mysore"}, "feed/ceda.go:80")
	assert.Equal(t, 2, c.pending())

	c.Close()
	c.Close()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, 3, batches[0][0].Count)
	assert.Equal(t, "Kolar Mandi", batches[0][0].Fields["market"])
	assert.Equal(t, 1, batches[0][1].Count)
	assert.Equal(t, []string{"mandicast.logs"}, pub.topics)
	assert.Zero(t, c.pending())
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &batchRecorder{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, pub.snapshot()[0], 2)
}

func TestCollectorWithoutPublisherDrops(t *testing.T) {
	c := NewLogCollector(&CollectionConfig{TimeInterval: 10 * time.Millisecond})
	c.AddLog("error", "a", nil, "x.go:1")
	require.Eventually(t, func() bool { return c.pending() == 0 }, time.Second, 5*time.Millisecond)
	c.Close()
}

func TestEntryKeyIgnoresFieldOrder(t *testing.T) {
	a := entryKey("error", "m", map[string]interface{}{"x": 1, "y": "z"}, "c")
	b := entryKey("error", "m", map[string]interface{}{"y": "z", "x": 1}, "c")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, entryKey("error", "m", map[string]interface{}{"x": 2, "y": "z"}, "c"))
	assert.NotEqual(t, a, entryKey("warn", "m", map[string]interface{}{"x": 1, "y": "z"}, "c"))
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &batchRecorder{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Publisher: pub})

	l.Info("ignored")
	l.Warn("ignored too")
	l.Error("store append failed", String("market", "Mysore"), Error(errors.New("locked")))
	l.RemoveCollector()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	e := batches[0][0]
	assert.Equal(t, "error", e.Level)
	assert.Equal(t, "store append failed", e.Message)
	assert.Equal(t, "Mysore", e.Fields["market"])
	assert.Contains(t, e.Caller, "collector_test.go")
}
