package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/wellspring/internal/domain"
	"github.com/google/uuid"
)

// InMemoryAssessmentStore keeps assessments in process. It backs the service
// when no database is configured and stands in for Postgres in tests.
type InMemoryAssessmentStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.Assessment
	now   func() time.Time
}

func NewInMemoryAssessmentStore() *InMemoryAssessmentStore {
	return &InMemoryAssessmentStore{
		items: make(map[uuid.UUID]domain.Assessment),
		now:   time.Now,
	}
}

func (s *InMemoryAssessmentStore) Create(ctx context.Context, a *domain.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, ok := s.items[a.ID]; ok {
		return ErrConflict
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	stored := *a
	stored.Evidence = copyEvidence(a.Evidence)
	s.items[a.ID] = stored
	return nil
}

func (s *InMemoryAssessmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Evidence = copyEvidence(a.Evidence)
	return &a, nil
}

func (s *InMemoryAssessmentStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Assessment, 0, len(s.items))
	for _, a := range s.items {
		if opts.Kind != "" && a.Kind != opts.Kind {
			continue
		}
		if !opts.Since.IsZero() && a.CreatedAt.Before(opts.Since) {
			continue
		}
		a.Evidence = copyEvidence(a.Evidence)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryAssessmentStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.items))
	s.items = make(map[uuid.UUID]domain.Assessment)
	return n, nil
}

func (s *InMemoryAssessmentStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, a := range s.items {
		if a.CreatedAt.Before(cutoff) {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryAssessmentStore) Ping(ctx context.Context) error {
	return nil
}

func copyEvidence(ev map[string]int) map[string]int {
	if ev == nil {
		return nil
	}
	out := make(map[string]int, len(ev))
	for k, v := range ev {
		out[k] = v
	}
	return out
}
