package memory

import (
	"context"
	"fmt"
	"sync"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
)

type MemoryRoomRepository struct {
	rooms map[domain.RoomKey]map[domain.PeerID]*domain.Peer
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.RoomKey]map[domain.PeerID]*domain.Peer),
	}
}

func (r *MemoryRoomRepository) Add(ctx context.Context, key domain.RoomKey, peer *domain.Peer) error {
	if peer == nil {
		return fmt.Errorf("add to room %s: nil peer", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[key]
	if !exists {
		room = make(map[domain.PeerID]*domain.Peer)
		r.rooms[key] = room
	}

	room[peer.ID] = peer
	return nil
}

func (r *MemoryRoomRepository) Remove(ctx context.Context, key domain.RoomKey, peer *domain.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[key]
	if !exists {
		return domain.ErrRoomNotFound
	}

	member, exists := room[peer.ID]
	if !exists || member != peer {
		return domain.ErrPeerNotFound
	}

	delete(room, peer.ID)
	if len(room) == 0 {
		delete(r.rooms, key)
	}

	return nil
}

func (r *MemoryRoomRepository) Get(ctx context.Context, key domain.RoomKey, id domain.PeerID) (*domain.Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[key]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	peer, exists := room[id]
	if !exists {
		return nil, domain.ErrPeerNotFound
	}

	return peer, nil
}

func (r *MemoryRoomRepository) Members(ctx context.Context, key domain.RoomKey) ([]*domain.Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[key]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	members := make([]*domain.Peer, 0, len(room))
	for _, peer := range room {
		members = append(members, peer)
	}

	return members, nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, key domain.RoomKey) ([]*domain.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[key]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	members := make([]*domain.Peer, 0, len(room))
	for _, peer := range room {
		members = append(members, peer)
	}

	delete(r.rooms, key)
	return members, nil
}

func (r *MemoryRoomRepository) Count(ctx context.Context, roomType domain.RoomType) (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms, peers := 0, 0
	for key, room := range r.rooms {
		if key.Type != roomType {
			continue
		}
		rooms++
		peers += len(room)
	}

	return rooms, peers
}
