package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type funcHandler struct {
	topic string
	calls int
	fn    func(ctx context.Context, b []byte) error
}

func (h *funcHandler) Topic() string { return h.topic }

func (h *funcHandler) Handle(ctx context.Context, b []byte) error {
	h.calls++
	return h.fn(ctx, b)
}

func TestProducerPublish(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &fakeWriter{}
	p := &Producer{writer: w, metrics: newProducerMetrics(reg)}

	payload := struct {
		Symbol string  `json:"symbol"`
		Size   float64 `json:"size"`
	}{"BTCUSDT", 2.5}
	require.NoError(t, p.Publish(context.Background(), "signals.approved", []byte("BTCUSDT"), payload, Header{Key: TraceIDHeader, Value: "abc"}))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "signals.approved", msg.Topic)
	assert.Equal(t, []byte("BTCUSDT"), msg.Key)
	assert.JSONEq(t, `{"symbol":"BTCUSDT","size":2.5}`, string(msg.Value))
	assert.Equal(t, []kafka.Header{{Key: TraceIDHeader, Value: []byte("abc")}}, msg.Headers)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.messages.WithLabelValues("signals.approved", "ok")))

	w.err = errors.New("broker down")
	err := p.Publish(context.Background(), "signals.approved", nil, "raw")
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.messages.WithLabelValues("signals.approved", "error")))
}

func newTestConsumer(t *testing.T, dlq bool) (*Consumer, *fakeReader, *fakeWriter) {
	t.Helper()
	opts := []ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	}
	if dlq {
		opts = append(opts, WithConsumerDLQ("outcomes.dlq"))
	}
	c, err := NewConsumer(nil, opts...)
	require.NoError(t, err)

	r := &fakeReader{}
	w := &fakeWriter{}
	c.readers["outcomes"] = r
	if dlq {
		c.dlq = w
	}
	return c, r, w
}

func TestConsumerProcessCommitsOnSuccess(t *testing.T) {
	c, r, _ := newTestConsumer(t, false)
	h := &funcHandler{topic: "outcomes", fn: func(context.Context, []byte) error { return nil }}
	c.RegisterHandler(h)

	c.process(kafka.Message{Topic: "outcomes", Offset: 7, Value: []byte("{}")})
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, []int64{7}, r.committed)
}

func TestConsumerRetriesThenParksOnDLQ(t *testing.T) {
	c, r, w := newTestConsumer(t, true)
	h := &funcHandler{topic: "outcomes", fn: func(context.Context, []byte) error { return errors.New("bad payload") }}
	c.RegisterHandler(h)

	c.process(kafka.Message{Topic: "outcomes", Offset: 3, Value: []byte("x")})
	assert.Equal(t, 3, h.calls)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "outcomes.dlq", w.msgs[0].Topic)
	assert.Contains(t, w.msgs[0].Headers, kafka.Header{Key: "source_topic", Value: []byte("outcomes")})
	assert.Equal(t, []int64{3}, r.committed)
}

func TestConsumerWithoutDLQLeavesFailureUncommitted(t *testing.T) {
	c, r, _ := newTestConsumer(t, false)
	c.RegisterHandler(&funcHandler{topic: "outcomes", fn: func(context.Context, []byte) error { panic("boom") }})

	c.process(kafka.Message{Topic: "outcomes", Offset: 9})
	assert.Empty(t, r.committed)
}

func TestConsumerHooks(t *testing.T) {
	c, _, _ := newTestConsumer(t, false)
	var seen string
	h := &funcHandler{topic: "outcomes", fn: func(ctx context.Context, _ []byte) error {
		seen = TraceIDFromContext(ctx)
		return nil
	}}
	c.RegisterHandler(h)

	var after []error
	c.SetHook(HookChain{
		TraceHook{},
		HookFuncs{After: func(_ context.Context, _ string, _ kafka.Message, err error) { after = append(after, err) }},
		HookFuncs{After: func(context.Context, string, kafka.Message, error) { panic("ignored") }},
	})

	c.process(kafka.Message{Topic: "outcomes", Headers: []kafka.Header{{Key: TraceIDHeader, Value: []byte("t-1")}}})
	assert.Equal(t, "t-1", seen)
	assert.Equal(t, []error{nil}, after)

	c.SetHook(HookChain{HookFuncs{Before: func(ctx context.Context, _ string, _ kafka.Message) (context.Context, error) {
		panic("bad hook")
	}}})
	h.calls = 0
	c.process(kafka.Message{Topic: "outcomes"})
	assert.Zero(t, h.calls)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestStopWithoutStart(t *testing.T) {
	c, _, _ := newTestConsumer(t, false)
	c.readers = map[string]messageReader{}
	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
}
