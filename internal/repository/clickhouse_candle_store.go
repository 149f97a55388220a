package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	applogger "SignalGate/pkg/logger"
)

// CHCandleStore reads candle windows from one ClickHouse table per timeframe,
// named <prefix>_<timeframe> (candles_1m, candles_1h, ...).
type CHCandleStore struct {
	db     *sql.DB
	prefix string
	l      *applogger.Logger
}

func NewCHCandleStore(db *sql.DB, prefix string, l *applogger.Logger) *CHCandleStore {
	if prefix == "" {
		prefix = "candles"
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHCandleStore{db: db, prefix: prefix, l: l.Component("candle_store")}
}

// CandleSchema returns DDL for every supported timeframe table.
func CandleSchema(prefix string) []string {
	tfs := []domrepo.Timeframe{domrepo.TF1m, domrepo.TF5m, domrepo.TF15m, domrepo.TF1h, domrepo.TF4h, domrepo.TF1d}
	out := make([]string, 0, len(tfs))
	for _, tf := range tfs {
		out = append(out, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s_%s (
            ts     DateTime64(3, 'UTC'),
            symbol LowCardinality(String),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (symbol, ts)`, prefix, tf))
	}
	return out
}

func (s *CHCandleStore) table(tf domrepo.Timeframe) (string, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return s.prefix + "_" + string(tf), nil
}

// GetLatestNCandles returns the last n bars in ascending time order.
func (s *CHCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	table, err := s.table(tf)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	const qtpl = `
        SELECT ts, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, n)
	if err != nil {
		s.l.Error("latest candles query failed",
			applogger.String("table", table),
			applogger.Symbol(symbol),
			applogger.Int("limit", n),
			applogger.Error(err))
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.l.Error("latest candles scan failed", applogger.String("table", table), applogger.Symbol(symbol), applogger.Error(err))
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("latest candles ok",
		applogger.String("table", table),
		applogger.Symbol(symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

var _ domrepo.CandleSource = (*CHCandleStore)(nil)
