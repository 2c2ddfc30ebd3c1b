package repositories

import (
	"context"
	"sync"

	"pairlink/internal/core/ports"
	"pairlink/internal/infrastructure/repositories/memory"

	"go.uber.org/zap"
)

// RepositoryFactory creates the in-process signaling tables. Each table is
// created once and shared by every caller.
type RepositoryFactory struct {
	logger *zap.SugaredLogger

	once     sync.Once
	rooms    ports.RoomRepository
	pairKeys ports.PairKeyRepository

	mu     sync.RWMutex
	closed bool
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(logger *zap.SugaredLogger) *RepositoryFactory {
	logger.Info("using memory repositories")
	return &RepositoryFactory{logger: logger}
}

func (f *RepositoryFactory) init() {
	f.once.Do(func() {
		f.rooms = memory.NewMemoryRoomRepository()
		f.pairKeys = memory.NewMemoryPairKeyRepository()
	})
}

// CreateRoomRepository returns the shared room table
func (f *RepositoryFactory) CreateRoomRepository() ports.RoomRepository {
	f.init()
	return f.rooms
}

// CreatePairKeyRepository returns the shared pairing key table
func (f *RepositoryFactory) CreatePairKeyRepository() ports.PairKeyRepository {
	f.init()
	return f.pairKeys
}

// Close marks the tables as unavailable for readiness checks
func (f *RepositoryFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.logger.Info("repositories closed")
	return nil
}

// HealthCheck reports whether the tables can still serve requests
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return errRepositoriesClosed
	}
	return nil
}
