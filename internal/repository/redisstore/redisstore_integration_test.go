package redisstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"collection-service/internal/entity"
	"collection-service/internal/repository/redisstore"
)

func openRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 and REDIS_ADDR to run")
	}
	rdb := redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDR")})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestDraftStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := redisstore.NewDraftStore(openRedis(t), time.Minute)
	jobID := uuid.New()

	cs, err := s.Get(ctx, jobID)
	if err != nil || !cs.Empty() {
		t.Fatalf("expected empty draft, got %#v err=%v", cs, err)
	}

	want := entity.ChangeSet{Added: []string{"J25001-03"}, Removed: []int64{4}}
	if err := s.Put(ctx, jobID, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Added) != 1 || got.Added[0] != "J25001-03" || len(got.Removed) != 1 || got.Removed[0] != 4 {
		t.Fatalf("unexpected draft %#v", got)
	}

	if err := s.Clear(ctx, jobID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := s.Get(ctx, jobID); !got.Empty() {
		t.Fatalf("expected cleared draft")
	}
}

func TestLocker_SecondHolderIsRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	l := redisstore.NewLocker(openRedis(t), 5*time.Second)
	key := "lock:test:" + uuid.NewString()

	unlock, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := l.Lock(ctx, key); !errors.Is(err, entity.ErrJobNotEditable) {
		t.Fatalf("expected ErrJobNotEditable, got %v", err)
	}
	unlock()

	unlock2, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	unlock2()
}
