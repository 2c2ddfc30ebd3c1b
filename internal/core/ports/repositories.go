package ports

import (
	"context"

	"pairlink/internal/core/domain"
)

type RoomRepository interface {
	// Add registers peer in the room, creating the room if needed. An
	// existing member with the same id is replaced.
	Add(ctx context.Context, key domain.RoomKey, peer *domain.Peer) error
	// Remove deletes peer from the room only if that exact peer object is
	// the member. Empty rooms are deleted.
	Remove(ctx context.Context, key domain.RoomKey, peer *domain.Peer) error
	Get(ctx context.Context, key domain.RoomKey, id domain.PeerID) (*domain.Peer, error)
	Members(ctx context.Context, key domain.RoomKey) ([]*domain.Peer, error)
	// Delete drops the room and returns the peers it held.
	Delete(ctx context.Context, key domain.RoomKey) ([]*domain.Peer, error)
	Count(ctx context.Context, roomType domain.RoomType) (rooms int, peers int)
}

type PairKeyRepository interface {
	Add(ctx context.Context, key *domain.PairKey) error
	Get(ctx context.Context, code string) (*domain.PairKey, error)
	Remove(ctx context.Context, code string) (*domain.PairKey, error)
	Exists(ctx context.Context, code string) bool
	Count(ctx context.Context) int
}
