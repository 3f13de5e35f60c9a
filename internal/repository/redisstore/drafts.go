package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"collection-service/internal/entity"
)

// DraftStore keeps each job's edit-session change-set as JSON with a TTL,
// so abandoned sessions stop blocking transitions eventually.
type DraftStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewDraftStore(rdb *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{rdb: rdb, prefix: "draft:job:", ttl: ttl}
}

func (s *DraftStore) key(jobID uuid.UUID) string { return s.prefix + jobID.String() }

func (s *DraftStore) Get(ctx context.Context, jobID uuid.UUID) (entity.ChangeSet, error) {
	var cs entity.ChangeSet
	val, err := s.rdb.Get(ctx, s.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cs, nil
	}
	if err != nil {
		return cs, err
	}
	if err := json.Unmarshal(val, &cs); err != nil {
		return cs, fmt.Errorf("decode draft: %w", err)
	}
	return cs, nil
}

func (s *DraftStore) Put(ctx context.Context, jobID uuid.UUID, cs entity.ChangeSet) error {
	b, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(jobID), b, s.ttl).Err()
}

func (s *DraftStore) Clear(ctx context.Context, jobID uuid.UUID) error {
	return s.rdb.Del(ctx, s.key(jobID)).Err()
}
