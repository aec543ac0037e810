// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for session action logs.
const DefaultQueueName = "quizlive_actions"

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionPublisher receives every recorded session action.
type ActionPublisher interface {
	Publish(rec models.ActionRecord)
}

// publishBuffer bounds the records waiting for Redis. Past it, records are dropped.
const publishBuffer = 256

// RedisPublisher RPushes action records onto a list consumed by the historian.
// One drain goroutine pushes records in the order Publish saw them.
// A nil *RedisPublisher, or one without a client, drops records.
type RedisPublisher struct {
	rdb     *redis.Client
	queue   string
	timeout time.Duration
	logger  *logrus.Logger

	push   func(ctx context.Context, data []byte) error
	out    chan models.ActionRecord
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

var _ ActionPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher publishes to queue on rdb. Call Close to flush on shutdown.
func NewRedisPublisher(rdb *redis.Client, queue string, logger *logrus.Logger) *RedisPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	p := &RedisPublisher{rdb: rdb, queue: queue, timeout: 2 * time.Second, logger: logger}
	if rdb == nil {
		return p
	}
	p.start(func(ctx context.Context, data []byte) error {
		return rdb.RPush(ctx, queue, data).Err()
	}, publishBuffer)
	return p
}

func (p *RedisPublisher) start(push func(ctx context.Context, data []byte) error, size int) {
	p.push = push
	p.out = make(chan models.ActionRecord, size)
	p.done = make(chan struct{})
	go p.drain()
}

func (p *RedisPublisher) drain() {
	defer close(p.done)
	for rec := range p.out {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.send(ctx, rec)
		cancel()
		if err != nil {
			p.warn(rec, "publish action: %v", err)
		}
	}
}

func (p *RedisPublisher) send(ctx context.Context, rec models.ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := p.push(ctx, data); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// PublishAction serializes the record and pushes it to the queue synchronously.
func (p *RedisPublisher) PublishAction(ctx context.Context, rec models.ActionRecord) error {
	if p.push == nil {
		return fmt.Errorf("no redis client configured")
	}
	return p.send(ctx, rec)
}

// Publish queues rec for the drain goroutine so callers holding session locks
// never wait on Redis. A full buffer drops the record with a warning.
func (p *RedisPublisher) Publish(rec models.ActionRecord) {
	if p == nil || p.out == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.out <- rec:
	default:
		p.warn(rec, "action buffer full, record dropped")
	}
}

// Close stops accepting records and waits for the queued ones to be pushed.
func (p *RedisPublisher) Close() {
	if p == nil || p.out == nil {
		return
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.out)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *RedisPublisher) warn(rec models.ActionRecord, format string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.WithFields(logrus.Fields{
		"session": rec.SessionID,
		"index":   rec.ActionIndex,
		"type":    rec.ActionType,
	}).Warnf(format, args...)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Publish(models.ActionRecord) {}
