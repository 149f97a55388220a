package repository

import (
	"context"
	"fmt"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	pkgkafka "SignalGate/pkg/kafka"
	applogger "SignalGate/pkg/logger"

	"go.opentelemetry.io/otel/trace"
)

type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error
}

// KafkaTopics names the outbound streams.
type KafkaTopics struct {
	Signals    string
	Rejections string
}

// KafkaSignalPublisher ships approved signals and rejection records keyed by
// symbol. It also serves as the log collector's publisher.
type KafkaSignalPublisher struct {
	p      messagePublisher
	topics KafkaTopics
	l      *applogger.Logger
}

func NewKafkaSignalPublisher(p messagePublisher, topics KafkaTopics, l *applogger.Logger) *KafkaSignalPublisher {
	if l == nil {
		l = applogger.NewNop()
	}
	return &KafkaSignalPublisher{p: p, topics: topics, l: l.Component("signal_publisher")}
}

func (k *KafkaSignalPublisher) Dispatch(ctx context.Context, sig models.ApprovedSignal) error {
	if err := k.p.Publish(ctx, k.topics.Signals, []byte(sig.Signal.Symbol), sig, traceHeaders(ctx)...); err != nil {
		return fmt.Errorf("dispatch %s: %w", sig.Signal.Symbol, err)
	}
	k.l.Info("signal dispatched",
		applogger.Symbol(sig.Signal.Symbol),
		applogger.Strategy(sig.Signal.StrategyID),
		applogger.String("action", string(sig.Signal.Action)),
		applogger.Float64("size_percent", sig.Assessment.RecommendedPositionSizePercent))
	return nil
}

func (k *KafkaSignalPublisher) PublishRejection(ctx context.Context, rec models.RejectionRecord) error {
	return k.p.Publish(ctx, k.topics.Rejections, []byte(rec.Symbol), rec, traceHeaders(ctx)...)
}

// PublishMessage satisfies logger.Publisher.
func (k *KafkaSignalPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return k.p.Publish(ctx, topic, nil, payload)
}

// traceHeaders propagates the active span's trace id, falling back to one
// received from an upstream message.
func traceHeaders(ctx context.Context) []pkgkafka.Header {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return []pkgkafka.Header{{Key: pkgkafka.TraceIDHeader, Value: sc.TraceID().String()}}
	}
	if id := pkgkafka.TraceIDFromContext(ctx); id != "" {
		return []pkgkafka.Header{{Key: pkgkafka.TraceIDHeader, Value: id}}
	}
	return nil
}

var (
	_ domrepo.SignalDispatcher   = (*KafkaSignalPublisher)(nil)
	_ domrepo.RejectionPublisher = (*KafkaSignalPublisher)(nil)
	_ applogger.Publisher        = (*KafkaSignalPublisher)(nil)
)
