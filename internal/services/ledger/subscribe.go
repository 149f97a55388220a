package ledger

import (
	"SignalGate/internal/domain/models"
	applogger "SignalGate/pkg/logger"
)

// Subscribe returns a channel receiving every new record. Slow subscribers miss
// records rather than block logging. cancel closes the channel.
func (l *Ledger) Subscribe(buffer int) (<-chan models.RejectionRecord, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan models.RejectionRecord, buffer)

	l.subsMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subsMu.Unlock()

	cancel := func() {
		l.subsMu.Lock()
		defer l.subsMu.Unlock()
		if c, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (l *Ledger) fanOut(rec models.RejectionRecord) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	for id, ch := range l.subs {
		select {
		case ch <- rec:
		default:
			l.logger.Debug("subscriber lagging, record dropped", applogger.Int("subscriber", id))
		}
	}
}
