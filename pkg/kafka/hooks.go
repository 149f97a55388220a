package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook runs around each handler invocation. A BeforeHandle error skips
// the handler and sends the message down the failure path.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, err error)
}

type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, error) {}

// HookFuncs adapts plain functions. Nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, string, kafka.Message) (context.Context, error)
	After  func(context.Context, string, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, topic, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, topic, km, err)
	}
}

// HookChain applies BeforeHandle in order and AfterHandle in reverse.
// A panicking hook is turned into an error and never reaches the worker.
type HookChain []ConsumerHook

func (c HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message) (_ context.Context, err error) {
	for _, h := range c {
		if h == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("hook panic: %v", r)
				}
			}()
			ctx, err = h.BeforeHandle(ctx, topic, km)
		}()
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func (c HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] == nil {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			c[i].AfterHandle(ctx, topic, km, err)
		}()
	}
}

type ctxKey string

const traceIDKey ctxKey = "kafka_trace_id"

// TraceIDHeader carries a correlation id between producer and consumer.
const TraceIDHeader = "trace_id"

// TraceIDFromContext returns the id stored by TraceHook.
func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// TraceHook copies the trace_id header into the handler context.
type TraceHook struct{}

func (TraceHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message) (context.Context, error) {
	for _, h := range km.Headers {
		if h.Key == TraceIDHeader && len(h.Value) > 0 {
			return context.WithValue(ctx, traceIDKey, string(h.Value)), nil
		}
	}
	return ctx, nil
}

func (TraceHook) AfterHandle(context.Context, string, kafka.Message, error) {}
