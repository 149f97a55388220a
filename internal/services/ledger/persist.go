package ledger

import (
	"context"
	"fmt"
	"time"

	"SignalGate/internal/domain/models"
	applogger "SignalGate/pkg/logger"
)

func (l *Ledger) persistLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.PersistInterval)
	defer ticker.Stop()

	batch := make([]models.RejectionRecord, 0, l.cfg.PersistBatch)
	for {
		select {
		case rec := <-l.queue:
			batch = append(batch, rec)
			if len(batch) >= l.cfg.PersistBatch {
				batch = l.flush(batch)
			}
		case <-ticker.C:
			batch = l.flush(batch)
		case <-l.done:
			for {
				select {
				case rec := <-l.queue:
					batch = append(batch, rec)
				default:
					l.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch and returns the emptied slice for reuse.
func (l *Ledger) flush(batch []models.RejectionRecord) []models.RejectionRecord {
	if len(batch) == 0 {
		return batch
	}
	start := time.Now()

	if l.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.PersistTimeout)
		err := l.store.StoreRejections(ctx, batch)
		cancel()
		if err != nil {
			l.persistFailed(fmt.Errorf("%w: store %d records: %v", models.ErrPersistenceFailure, len(batch), err), len(batch))
		}
	}
	if l.publisher != nil {
		for _, rec := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), l.cfg.PersistTimeout)
			err := l.publisher.PublishRejection(ctx, rec)
			cancel()
			if err != nil {
				l.persistFailed(fmt.Errorf("%w: publish %s: %v", models.ErrPersistenceFailure, rec.ID, err), 1)
			}
		}
	}
	l.metrics.RecordLatency("ledger_flush", time.Since(start).Seconds())
	return batch[:0]
}

func (l *Ledger) persistFailed(err error, n int) {
	l.failures.Add(int64(n))
	l.metrics.RecordError("persistence")
	l.logger.Warn("rejection mirror failed", applogger.Error(err), applogger.Int("records", n))
}
