package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	applogger "SignalGate/pkg/logger"
)

// CHRejectionStore is the append-only ClickHouse mirror of the rejection ledger.
type CHRejectionStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHRejectionStore(db *sql.DB, table string, l *applogger.Logger) *CHRejectionStore {
	if table == "" {
		table = "signal_rejections"
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHRejectionStore{db: db, table: table, l: l.Component("rejection_store")}
}

const rejectionColumns = "id, ts, symbol, strategy_id, category, reason, threshold, actual, severity"

func (s *CHRejectionStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id          UUID,
            ts          DateTime64(3, 'UTC'),
            symbol      LowCardinality(String),
            strategy_id String,
            category    LowCardinality(String),
            reason      String,
            threshold   Float64,
            actual      Float64,
            severity    LowCardinality(String)
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (category, symbol, ts)
        TTL toDateTime(ts) + INTERVAL 90 DAY`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// StoreRejections inserts records in one transaction so clickhouse-go sends a single block.
func (s *CHRejectionStore) StoreRejections(ctx context.Context, records []models.RejectionRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s)", s.table, rejectionColumns))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err = stmt.ExecContext(ctx,
			r.ID, r.Timestamp.UTC(), r.Symbol, r.StrategyID, string(r.Category),
			r.Reason, r.Threshold, r.Actual, string(r.Severity),
		); err != nil {
			return fmt.Errorf("append %s: %w", r.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.l.Debug("rejections stored",
		applogger.Int("rows", len(records)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// QueryRejections reads mirrored records newest first. It covers history the
// in-memory ledger has already evicted.
func (s *CHRejectionStore) QueryRejections(ctx context.Context, f models.RejectionFilter) ([]models.RejectionRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if f.StrategyID != "" {
		where = append(where, "has(splitByString(?, strategy_id), ?)")
		args = append(args, models.StrategySeparator, f.StrategyID)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if !f.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.Since.UTC())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	q := fmt.Sprintf("SELECT %s FROM %s", rejectionColumns, s.table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("rejection query failed", applogger.Error(err))
		return nil, fmt.Errorf("query rejections: %w", err)
	}
	defer rows.Close()

	out := make([]models.RejectionRecord, 0, limit)
	for rows.Next() {
		var (
			r                  models.RejectionRecord
			category, severity string
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Symbol, &r.StrategyID, &category,
			&r.Reason, &r.Threshold, &r.Actual, &severity); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		r.Category = models.RejectionCategory(category)
		r.Severity = models.Severity(severity)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

var _ domrepo.RejectionStore = (*CHRejectionStore)(nil)
