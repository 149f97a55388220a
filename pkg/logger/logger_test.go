package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu     sync.Mutex
	topic  string
	logs   []AggregatedLogEntry
	called int
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.called++
	p.logs = append(p.logs, payload.([]AggregatedLogEntry)...)
	return nil
}

func TestLoggerWritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel).Component("risk")

	l.Info("assessed", Symbol("BTCUSDT"), Float64("size", 2.5), Bool("allowed", true), Duration("took", 1500*time.Millisecond))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "risk", entry["component"])
	assert.Equal(t, "BTCUSDT", entry["symbol"])
	assert.Equal(t, 2.5, entry["size"])
	assert.Equal(t, true, entry["allowed"])
	assert.Equal(t, float64(1500), entry["took"])
	assert.Equal(t, "assessed", entry["message"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestCollectorAggregatesRepeatedErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 50, Topic: "errors", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("store failed", Error(errors.New("timeout")))
	}
	l.Error("other failure")
	assert.Equal(t, 2, l.collector.Pending())

	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "errors", pub.topic)
	require.Len(t, pub.logs, 2)
	counts := map[string]int{}
	for _, e := range pub.logs {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 3, counts["store failed"])
	assert.Equal(t, 1, counts["other failure"])
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	assert.Equal(t, 0, c.Pending())

	c.Close()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.logs, 2)
}
