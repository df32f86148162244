// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/uno/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list move events are pushed to.
const DefaultQueueName = "uno_moves"

// Connect opens a client for addr and checks it with a ping.
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

// MoveQueue is a Redis list of JSON-encoded move events. The engine pushes,
// the historian pops.
type MoveQueue struct {
	rdb  redis.Cmdable
	name string
}

func NewMoveQueue(rdb redis.Cmdable, name string) *MoveQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &MoveQueue{rdb: rdb, name: name}
}

func (q *MoveQueue) Name() string {
	return q.name
}

// PublishMove serializes ev to JSON and appends it to the queue.
func (q *MoveQueue) PublishMove(ctx context.Context, ev models.MoveEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal MoveEvent: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// ErrMalformedEvent is returned by Pop for a queue entry that is not a move event.
var ErrMalformedEvent = errors.New("malformed move event")

// Pop blocks up to timeout for the next event. ok is false when the timeout
// passed without one.
func (q *MoveQueue) Pop(ctx context.Context, timeout time.Duration) (ev models.MoveEvent, ok bool, err error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return models.MoveEvent{}, false, nil
	}
	if err != nil {
		return models.MoveEvent{}, false, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return models.MoveEvent{}, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return models.MoveEvent{}, false, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return ev, true, nil
}
