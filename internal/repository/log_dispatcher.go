package repository

import (
	"context"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	applogger "SignalGate/pkg/logger"
)

// LogDispatcher writes approved signals to the log. Used when Kafka is disabled.
type LogDispatcher struct {
	l *applogger.Logger
}

func NewLogDispatcher(l *applogger.Logger) *LogDispatcher {
	if l == nil {
		l = applogger.NewNop()
	}
	return &LogDispatcher{l: l.Component("signal_log")}
}

func (d *LogDispatcher) Dispatch(_ context.Context, sig models.ApprovedSignal) error {
	d.l.Info("signal approved",
		applogger.Symbol(sig.Signal.Symbol),
		applogger.Strategy(sig.Signal.LedgerID()),
		applogger.String("action", string(sig.Signal.Action)),
		applogger.Float64("entry", sig.Signal.EntryPrice),
		applogger.Float64("stop", sig.Signal.StopLoss),
		applogger.Float64("target", sig.Signal.TargetPrice),
		applogger.Float64("confidence", sig.Signal.Confidence),
		applogger.Float64("size_percent", sig.Assessment.RecommendedPositionSizePercent))
	return nil
}

var _ domrepo.SignalDispatcher = (*LogDispatcher)(nil)
