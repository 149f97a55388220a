package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	mu       sync.Mutex
	events   *[]string
	startErr error
}

func (f *fakeLedger) Start(context.Context) error {
	f.record("ledger.start")
	return f.startErr
}

func (f *fakeLedger) Close() error {
	f.record("ledger.close")
	return nil
}

func (f *fakeLedger) record(e string) {
	f.mu.Lock()
	*f.events = append(*f.events, e)
	f.mu.Unlock()
}

type scannerFunc func(ctx context.Context) error

func (f scannerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestAppShutsDownInOrder(t *testing.T) {
	var events []string
	ledger := &fakeLedger{events: &events}
	ctx, cancel := context.WithCancel(context.Background())

	scanner := scannerFunc(func(ctx context.Context) error {
		ledger.record("scanner.run")
		cancel()
		<-ctx.Done()
		ledger.record("scanner.stop")
		return nil
	})
	app := New(nil, ledger, scanner,
		WithCleanup(
			Cleanup{Name: "clickhouse", Close: func() error { ledger.record("close.clickhouse"); return nil }},
			Cleanup{Name: "kafka", Close: func() error { ledger.record("close.kafka"); return errors.New("already closed") }},
		),
		WithShutdownTimeout(time.Second))

	require.NoError(t, app.Run(ctx))
	assert.Equal(t, []string{
		"ledger.start",
		"scanner.run",
		"scanner.stop",
		"ledger.close",
		"close.kafka",
		"close.clickhouse",
	}, events)
}

func TestAppReportsScannerExit(t *testing.T) {
	var events []string
	ledger := &fakeLedger{events: &events}
	scanner := scannerFunc(func(context.Context) error { return errors.New("boom") })

	err := New(nil, ledger, scanner).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanner exited")
	assert.Contains(t, events, "ledger.close")
}

func TestAppLedgerStartFailure(t *testing.T) {
	var events []string
	ledger := &fakeLedger{events: &events, startErr: errors.New("clickhouse down")}
	ran := false
	scanner := scannerFunc(func(context.Context) error { ran = true; return nil })

	err := New(nil, ledger, scanner).Run(context.Background())
	require.Error(t, err)
	assert.False(t, ran)
}
