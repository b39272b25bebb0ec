// Package events forwards engine audit entries to a Redis stream so external
// consumers (dashboards, indexers) can follow state changes in real time.
// Publishing is best effort: a down Redis never blocks engine operations.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/poknet/pokengine/pkg/audit"
	"github.com/poknet/pokengine/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultStreamMaxLen caps the stream so an unattended deployment does
	// not grow Redis without bound.
	DefaultStreamMaxLen = 10000

	// DefaultStream is the stream key events are appended to.
	DefaultStream = "pokengine:events"
)

// Publisher pushes audit entries onto a Redis stream.
type Publisher struct {
	client       *redis.Client
	logger       *zap.Logger
	stream       string
	streamMaxLen int64
}

// New connects to Redis using environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: "0")
//   - REDIS_STREAM: stream key (default: "pokengine:events")
//   - REDIS_STREAM_MAXLEN: max entries per stream (default: 10000, 0 = unlimited)
func New(ctx context.Context, logger *zap.Logger) (*Publisher, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)
	stream := utils.Env("REDIS_STREAM", DefaultStream)
	streamMaxLen := utils.EnvInt64("REDIS_STREAM_MAXLEN", DefaultStreamMaxLen)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.String("stream", stream),
		zap.Int64("streamMaxLen", streamMaxLen))

	return &Publisher{
		client:       rdb,
		logger:       logger,
		stream:       stream,
		streamMaxLen: streamMaxLen,
	}, nil
}

// Close closes the Redis connection. Nil-safe.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}

// Health checks whether Redis answers a ping.
func (p *Publisher) Health(ctx context.Context) error {
	if p == nil {
		return fmt.Errorf("events publisher disabled")
	}
	return p.client.Ping(ctx).Err()
}

// Publish appends one audit entry to the stream. Errors are logged, not
// returned, so a Redis outage cannot fail the operation that produced the
// entry. Nil-safe so the engine can run without Redis configured.
func (p *Publisher) Publish(ctx context.Context, e audit.Entry) {
	if p == nil {
		return
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"id":      e.ID,
			"kind":    string(e.Kind),
			"actor":   e.Actor,
			"subject": e.Subject,
			"detail":  e.Detail,
			"at":      int64(e.At),
		},
	}
	if p.streamMaxLen > 0 {
		args.MaxLen = p.streamMaxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("stream", p.stream),
			zap.String("kind", string(e.Kind)),
			zap.Error(err))
	}
}

// Run drains the recorder's live feed into Redis until ctx is done.
// Intended to run in its own goroutine.
func (p *Publisher) Run(ctx context.Context, rec *audit.Recorder) {
	if p == nil {
		return
	}
	ch, cancel := rec.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			p.Publish(ctx, e)
		}
	}
}
