// Package historian drains the action queue into the session_actions table.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// popTimeout bounds each blocking pop so shutdown is noticed.
const popTimeout = 3 * time.Second

// Queue yields raw action payloads. ok is false when nothing arrived in time.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (payload string, ok bool, err error)
}

// Sink persists a batch of actions.
type Sink interface {
	InsertActions(ctx context.Context, records []models.ActionRecord) error
}

// RedisQueue pops from a redis list with BLPOP.
type RedisQueue struct {
	rdb  *redis.Client
	name string
}

// NewRedisQueue reads the list name on rdb.
func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name}
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// res[0] is the list name, res[1] the payload.
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// Service batches queued actions and flushes them when the batch fills or
// the flush interval elapses.
type Service struct {
	queue      Queue
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	logger     *logrus.Logger

	mu    sync.Mutex
	batch []models.ActionRecord
}

// New builds a historian. Non-positive sizes fall back to 20 records and 500ms.
func New(queue Queue, sink Sink, batchSize int, flushDelay time.Duration, logger *logrus.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		queue:      queue,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		logger:     logger,
		batch:      make([]models.ActionRecord, 0, batchSize),
	}
}

// Run consumes the queue until ctx ends, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()

	s.logger.Info("historian started")
	for ctx.Err() == nil {
		payload, ok, err := s.queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Errorf("pop action: %v", err)
			// avoid spinning on a dead connection
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}
		var rec models.ActionRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			s.logger.Warnf("invalid action record: %v", err)
			continue
		}
		s.add(ctx, rec)
	}
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Flush(flushCtx)
	s.logger.Info("historian stopped")
	return err
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Errorf("flush actions: %v", err)
			}
		}
	}
}

func (s *Service) add(ctx context.Context, rec models.ActionRecord) {
	s.mu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if full {
		if err := s.Flush(ctx); err != nil {
			s.logger.Errorf("flush actions: %v", err)
		}
	}
}

// Flush writes the pending batch. On failure the records are kept for the
// next attempt.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return nil
	}
	pending := s.batch
	s.batch = make([]models.ActionRecord, 0, s.batchSize)
	s.mu.Unlock()

	if err := s.sink.InsertActions(ctx, pending); err != nil {
		s.mu.Lock()
		s.batch = append(pending, s.batch...)
		s.mu.Unlock()
		return err
	}
	s.logger.Debugf("flushed %d actions", len(pending))
	return nil
}

// Pending returns the number of buffered records.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batch)
}
