// Package dispatch delivers queued notifications off the request path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"reunite/pkg/domain"
)

// Queue carries ids of rows to deliver. It is a fast path only: the
// worker's sweep over the store finds anything a queue lost.
type Queue interface {
	Push(ctx context.Context, id domain.NotificationID) error
	// Pop waits up to timeout for an id. ok is false on timeout.
	Pop(ctx context.Context, timeout time.Duration) (id domain.NotificationID, ok bool, err error)
	// Claim reserves id for one delivery attempt for ttl.
	Claim(ctx context.Context, id domain.NotificationID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, id domain.NotificationID) error
}

// MemoryQueue is a channel-backed queue for single-process runs.
type MemoryQueue struct {
	ch chan domain.NotificationID

	mu     sync.Mutex
	claims map[domain.NotificationID]time.Time
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		ch:     make(chan domain.NotificationID, size),
		claims: make(map[domain.NotificationID]time.Time),
	}
}

// Push drops the id when the buffer is full; the sweep delivers it later.
func (q *MemoryQueue) Push(_ context.Context, id domain.NotificationID) error {
	select {
	case q.ch <- id:
		return nil
	default:
		return errors.New("notification queue full")
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (domain.NotificationID, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case id := <-q.ch:
		return id, true, nil
	case <-timer.C:
		return domain.NotificationID{}, false, nil
	case <-ctx.Done():
		return domain.NotificationID{}, false, ctx.Err()
	}
}

func (q *MemoryQueue) Claim(_ context.Context, id domain.NotificationID, ttl time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	if until, ok := q.claims[id]; ok && now.Before(until) {
		return false, nil
	}
	q.claims[id] = now.Add(ttl)
	return true, nil
}

func (q *MemoryQueue) Release(_ context.Context, id domain.NotificationID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claims, id)
	return nil
}

// RedisQueue is a Redis list shared by every process of one hospital.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue uses the list reunite:notify:<hospital>.
func NewRedisQueue(client *redis.Client, hospitalID domain.HospitalID) *RedisQueue {
	return &RedisQueue{client: client, key: "reunite:notify:" + hospitalID.String()}
}

func (q *RedisQueue) Push(ctx context.Context, id domain.NotificationID) error {
	if err := q.client.LPush(ctx, q.key, id.String()).Err(); err != nil {
		return fmt.Errorf("push notification %s: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (domain.NotificationID, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.NotificationID{}, false, nil
	}
	if err != nil {
		return domain.NotificationID{}, false, fmt.Errorf("pop notification: %w", err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return domain.NotificationID{}, false, fmt.Errorf("pop notification: unexpected reply %v", res)
	}
	u, err := uuid.Parse(res[1])
	if err != nil {
		return domain.NotificationID{}, false, fmt.Errorf("pop notification: %w", err)
	}
	return domain.NotificationID(u), true, nil
}

func (q *RedisQueue) Claim(ctx context.Context, id domain.NotificationID, ttl time.Duration) (bool, error) {
	ok, err := q.client.SetNX(ctx, q.claimKey(id), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim notification %s: %w", id, err)
	}
	return ok, nil
}

func (q *RedisQueue) Release(ctx context.Context, id domain.NotificationID) error {
	return q.client.Del(ctx, q.claimKey(id)).Err()
}

func (q *RedisQueue) claimKey(id domain.NotificationID) string {
	return q.key + ":claim:" + id.String()
}
