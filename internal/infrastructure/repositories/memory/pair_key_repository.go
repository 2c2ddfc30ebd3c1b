package memory

import (
	"context"
	"sync"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
)

type MemoryPairKeyRepository struct {
	keys map[string]*domain.PairKey
	mu   sync.RWMutex
}

func NewMemoryPairKeyRepository() ports.PairKeyRepository {
	return &MemoryPairKeyRepository{
		keys: make(map[string]*domain.PairKey),
	}
}

func (r *MemoryPairKeyRepository) Add(ctx context.Context, key *domain.PairKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[key.Key]; exists {
		return domain.ErrPairKeyExists
	}

	r.keys[key.Key] = key
	return nil
}

func (r *MemoryPairKeyRepository) Get(ctx context.Context, code string) (*domain.PairKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, exists := r.keys[code]
	if !exists {
		return nil, domain.ErrPairKeyNotFound
	}

	return key, nil
}

func (r *MemoryPairKeyRepository) Remove(ctx context.Context, code string) (*domain.PairKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, exists := r.keys[code]
	if !exists {
		return nil, domain.ErrPairKeyNotFound
	}

	delete(r.keys, code)
	return key, nil
}

func (r *MemoryPairKeyRepository) Exists(ctx context.Context, code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.keys[code]
	return exists
}

func (r *MemoryPairKeyRepository) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.keys)
}
