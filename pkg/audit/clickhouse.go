package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/retry"
	"github.com/poknet/pokengine/pkg/utils"
)

const auditTableName = "audit_log"

// auditColumns defines the schema for the audit_log table.
var auditColumns = []struct {
	Name string
	Type string
}{
	{"id", "String"},
	{"kind", "String"},
	{"subject", "String"},
	{"actor", "String"},
	{"amount", "UInt64"},
	{"impact", "UInt8"},
	{"detail", "String"},
	{"at", "Int64"},
}

// ClickHouseSink persists audit entries to an append-only ClickHouse table.
// Entries buffer in memory and flush in batches off the operation path; the
// engine never blocks on the database.
type ClickHouseSink struct {
	logger *zap.Logger
	conn   driver.Conn
	pool   pond.Pool

	entries chan Entry
	done    chan struct{}
}

// NewClickHouseSink connects using CLICKHOUSE_ADDR and ensures the audit
// table exists.
func NewClickHouseSink(ctx context.Context, logger *zap.Logger) (*ClickHouseSink, error) {
	addr := utils.Env("CLICKHOUSE_ADDR", "localhost:9000")
	database := utils.Env("CLICKHOUSE_DATABASE", "pokengine")

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: utils.Env("CLICKHOUSE_USERNAME", "default"),
			Password: utils.Env("CLICKHOUSE_PASSWORD", ""),
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	s := &ClickHouseSink{
		logger:  logger,
		conn:    conn,
		pool:    pond.NewPool(utils.EnvInt("AUDIT_FLUSH_WORKERS", 2)),
		entries: make(chan Entry, 4096),
		done:    make(chan struct{}),
	}
	if err := s.initTable(ctx); err != nil {
		return nil, err
	}

	go s.flushLoop(ctx)
	logger.Info("audit sink connected",
		zap.String("addr", addr),
		zap.String("database", database))
	return s, nil
}

func (s *ClickHouseSink) initTable(ctx context.Context) error {
	cols := ""
	for i, c := range auditColumns {
		if i > 0 {
			cols += ", "
		}
		cols += fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree ORDER BY (at, kind)`,
		auditTableName, cols,
	)
	return s.conn.Exec(ctx, query)
}

// Persist implements Sink. Full buffers drop the entry with a warning; the
// in-memory ring still holds it.
func (s *ClickHouseSink) Persist(e Entry) {
	select {
	case s.entries <- e:
	default:
		s.logger.Warn("audit sink buffer full, entry not persisted",
			zap.String("kind", string(e.Kind)),
			zap.String("subject", e.Subject))
	}
}

// flushLoop drains the buffer into batched inserts on a short cadence.
func (s *ClickHouseSink) flushLoop(ctx context.Context) {
	interval := time.Duration(utils.EnvInt("AUDIT_FLUSH_INTERVAL_MS", 500)) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []Entry
	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		s.pool.Submit(func() {
			s.insert(ctx, batch)
		})
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			s.pool.StopAndWait()
			close(s.done)
			return
		case e := <-s.entries:
			pending = append(pending, e)
			if len(pending) >= 256 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *ClickHouseSink) insert(ctx context.Context, entries []Entry) {
	cfg := retry.Config{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2, JitterEnabled: true}
	err := retry.WithBackoff(ctx, cfg, s.logger, "audit insert", func() error {
		batch, err := s.conn.PrepareBatch(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, kind, subject, actor, amount, impact, detail, at) VALUES`, auditTableName))
		if err != nil {
			return err
		}
		defer func(batch driver.Batch) {
			_ = batch.Abort()
		}(batch)

		for _, e := range entries {
			if err := batch.Append(
				e.ID, string(e.Kind), e.Subject, e.Actor,
				e.Amount, e.Impact, e.Detail, e.At,
			); err != nil {
				return err
			}
		}
		return batch.Send()
	})
	if err != nil {
		s.logger.Error("audit batch insert failed",
			zap.Int("entries", len(entries)),
			zap.Error(err))
	}
}

// Close waits for the flush loop to drain and closes the connection.
func (s *ClickHouseSink) Close() error {
	<-s.done
	return s.conn.Close()
}
