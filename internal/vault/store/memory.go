package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vaultdao/internal/domain"
	"vaultdao/pkg/platform/sentinel"
)

// InMemoryStore keeps both collections under one RWMutex, which makes
// Snapshot trivially consistent. Suitable for tests and single-process runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	proposals map[uint64]domain.Proposal
	order     []uint64
	activity  []domain.VaultActivity
	seenEvent map[string]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		proposals: make(map[uint64]domain.Proposal),
		seenEvent: make(map[string]bool),
	}
}

func (s *InMemoryStore) Save(_ context.Context, p domain.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.proposals[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.proposals[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uint64) (domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return domain.Proposal{}, fmt.Errorf("proposal %d: %w", id, sentinel.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(), nil
}

func (s *InMemoryStore) SetReconciling(_ context.Context, id uint64, reconciling bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return fmt.Errorf("proposal %d: %w", id, sentinel.ErrNotFound)
	}
	p.Reconciling = reconciling
	s.proposals[id] = p
	return nil
}

func (s *InMemoryStore) Append(_ context.Context, a domain.VaultActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenEvent[a.EventID] {
		return nil
	}
	s.seenEvent[a.EventID] = true
	s.activity = append(s.activity, a)
	sort.SliceStable(s.activity, func(i, j int) bool {
		return s.activity[i].Before(s.activity[j])
	})
	return nil
}

func (s *InMemoryStore) ListActivity(_ context.Context) ([]domain.VaultActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.VaultActivity(nil), s.activity...), nil
}

func (s *InMemoryStore) Snapshot(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Proposals: s.listLocked(),
		Activity:  append([]domain.VaultActivity(nil), s.activity...),
		TakenAt:   time.Now(),
	}, nil
}

func (s *InMemoryStore) listLocked() []domain.Proposal {
	out := make([]domain.Proposal, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.proposals[id].Clone())
	}
	return out
}
