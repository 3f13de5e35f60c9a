package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"collection-service/internal/entity"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// Claim is a document request taken off the queue. It must be acked.
type Claim struct {
	Request entity.DocumentRequest
	raw     string
}

type DocumentQueue interface {
	Enqueue(ctx context.Context, req entity.DocumentRequest, priority Priority) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (Claim, error)
	Ack(ctx context.Context, c Claim) error
	RequeueStale(ctx context.Context, olderThan time.Duration, maxPerLane int64) (int64, error)
}

type Lane struct {
	QueueKey      string
	ProcessingKey string
}

// Lanes derives the three lane key pairs from the base keys.
func Lanes(queueKey, processingKey string) (low, normal, high Lane) {
	mk := func(suffix string) Lane {
		return Lane{QueueKey: queueKey + ":" + suffix, ProcessingKey: processingKey + ":" + suffix}
	}
	return mk("low"), mk("normal"), mk("high")
}

// redisPriorityQueue is a reliable queue over Redis lists, one lane per priority.
// Claim: BRPOPLPUSH lane.queue -> lane.processing
// Ack:   LREM from the processing list recorded in processingMapKey
// Claim times live in processingMapKey:claimed_at (unix millis).
type redisPriorityQueue struct {
	rdb              *redis.Client
	processingMapKey string
	claimedAtKey     string

	low    Lane
	normal Lane
	high   Lane
}

func NewRedisPriorityQueue(rdb *redis.Client, processingMapKey string, low, normal, high Lane) DocumentQueue {
	return &redisPriorityQueue{
		rdb:              rdb,
		processingMapKey: processingMapKey,
		claimedAtKey:     processingMapKey + ":claimed_at",
		low:              low,
		normal:           normal,
		high:             high,
	}
}

func (q *redisPriorityQueue) laneByPriority(p Priority) Lane {
	switch {
	case p >= PriorityHigh:
		return q.high
	case p == PriorityNormal:
		return q.normal
	default:
		return q.low
	}
}

func (q *redisPriorityQueue) Enqueue(ctx context.Context, req entity.DocumentRequest, priority Priority) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode document request: %w", err)
	}
	ln := q.laneByPriority(priority)
	return q.rdb.LPush(ctx, ln.QueueKey, payload).Err()
}

// ClaimBlocking tries high->normal->low with short blocking slots so that
// priority is respected. A timeout <= 0 waits until ctx is done.
func (q *redisPriorityQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (Claim, error) {
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := 1 * time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if err := ctx.Err(); err != nil {
			return Claim{}, err
		}
		if !forever && time.Now().After(deadline) {
			return Claim{}, redis.Nil
		}

		for _, ln := range []Lane{q.high, q.normal, q.low} {
			wait := slot
			if !forever {
				remain := time.Until(deadline)
				if remain <= 0 {
					return Claim{}, redis.Nil
				}
				if remain < wait {
					wait = remain
				}
			}

			raw, err := q.rdb.BRPopLPush(ctx, ln.QueueKey, ln.ProcessingKey, wait).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return Claim{}, err
			}

			// without the mapping Ack cannot find the processing list
			_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, q.processingMapKey, raw, ln.ProcessingKey)
				pipe.HSet(ctx, q.claimedAtKey, raw, time.Now().UnixMilli())
				return nil
			})
			if err != nil {
				return Claim{}, err
			}

			c := Claim{raw: raw}
			if err := json.Unmarshal([]byte(raw), &c.Request); err != nil {
				// poison message: drop it so it is not redelivered forever
				_ = q.Ack(ctx, c)
				return Claim{}, fmt.Errorf("decode document request: %w", err)
			}
			return c, nil
		}
	}
}

func (q *redisPriorityQueue) Ack(ctx context.Context, c Claim) error {
	processingKey, err := q.rdb.HGet(ctx, q.processingMapKey, c.raw).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// mapping is gone (reaped or manual cleanup): try every lane
			for _, ln := range []Lane{q.high, q.normal, q.low} {
				_ = q.rdb.LRem(ctx, ln.ProcessingKey, 1, c.raw).Err()
			}
			return nil
		}
		return err
	}

	if err := q.rdb.LRem(ctx, processingKey, 1, c.raw).Err(); err != nil {
		return err
	}
	q.forget(ctx, c.raw)
	return nil
}

func (q *redisPriorityQueue) forget(ctx context.Context, raw string) {
	_ = q.rdb.HDel(ctx, q.processingMapKey, raw).Err()
	_ = q.rdb.HDel(ctx, q.claimedAtKey, raw).Err()
}

// requeueScript moves one entry from processing back to the consumer end of
// its queue, unless an Ack removed it first.
var requeueScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 1 then
  redis.call('RPUSH', KEYS[2], ARGV[1])
  return 1
end
return 0
`)

// RequeueStale returns entries claimed more than olderThan ago to their
// queue, at most maxPerLane per lane. Entries without a claim time are
// treated as stale. Delivery is at-least-once.
func (q *redisPriorityQueue) RequeueStale(ctx context.Context, olderThan time.Duration, maxPerLane int64) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	var moved int64

	for _, ln := range []Lane{q.high, q.normal, q.low} {
		entries, err := q.rdb.LRange(ctx, ln.ProcessingKey, 0, -1).Result()
		if err != nil {
			return moved, err
		}
		var laneMoved int64
		for _, raw := range entries {
			if laneMoved >= maxPerLane {
				break
			}
			claimedAt, err := q.rdb.HGet(ctx, q.claimedAtKey, raw).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return moved, err
			}
			if err == nil && claimedAt > cutoff {
				continue
			}
			n, err := requeueScript.Run(ctx, q.rdb, []string{ln.ProcessingKey, ln.QueueKey}, raw).Int64()
			if err != nil {
				return moved, err
			}
			if n == 1 {
				laneMoved++
				q.forget(ctx, raw)
			}
		}
		moved += laneMoved
	}

	return moved, nil
}
