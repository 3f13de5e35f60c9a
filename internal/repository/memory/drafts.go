package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"collection-service/internal/entity"
)

// DraftStore keeps edit-session change-sets in process. It does not expire them.
type DraftStore struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]entity.ChangeSet
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: map[uuid.UUID]entity.ChangeSet{}}
}

func (s *DraftStore) Get(_ context.Context, jobID uuid.UUID) (entity.ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[jobID], nil
}

func (s *DraftStore) Put(_ context.Context, jobID uuid.UUID, cs entity.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[jobID] = cs
	return nil
}

func (s *DraftStore) Clear(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, jobID)
	return nil
}
