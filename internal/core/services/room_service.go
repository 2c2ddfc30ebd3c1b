package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
	"pairlink/pkg/utils"

	"go.uber.org/zap"
)

type roomService struct {
	repo    ports.RoomRepository
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger

	mu sync.Mutex
}

func NewRoomService(repo ports.RoomRepository, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) ports.RoomService {
	return &roomService{
		repo:    repo,
		metrics: orNop(metrics),
		logger:  logger,
	}
}

func (s *roomService) Join(ctx context.Context, peer *domain.Peer, key domain.RoomKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.join(ctx, peer, key)
}

func (s *roomService) join(ctx context.Context, peer *domain.Peer, key domain.RoomKey) error {
	// Disconnect marks the peer before taking this lock, so a closed peer
	// is never registered after its rooms were torn down.
	if peer.IsClosed() {
		return domain.ErrPeerClosed
	}

	// A member with the same id leaves first so the others never see
	// peer-left after peer-joined for a reconnecting peer.
	if existing, err := s.repo.Get(ctx, key, peer.ID); err == nil {
		s.leave(ctx, existing, key, false)
	}

	members, err := s.members(ctx, key)
	if err != nil {
		return err
	}

	s.notify(peer, key, members)

	if err := s.repo.Add(ctx, key, peer); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	if key.Type == domain.RoomTypeSecret {
		peer.AddRoomSecret(key.ID)
	}

	s.logger.Debugw("peer joined room",
		"peer_id", peer.ID,
		"room_type", key.Type,
		"room", roomLabel(key),
		"members", len(members)+1,
	)

	return nil
}

func (s *roomService) Leave(ctx context.Context, peer *domain.Peer, key domain.RoomKey, disconnect bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leave(ctx, peer, key, disconnect)
	return nil
}

// leave is a no-op unless peer is the registered member of the room.
func (s *roomService) leave(ctx context.Context, peer *domain.Peer, key domain.RoomKey, disconnect bool) bool {
	if err := s.repo.Remove(ctx, key, peer); err != nil {
		return false
	}

	if key.Type == domain.RoomTypeSecret {
		peer.RemoveRoomSecret(key.ID)
	}

	remaining, err := s.repo.Members(ctx, key)
	if err == nil {
		broadcast(remaining, domain.NewPeerLeftMessage(peer.ID, key, disconnect), s.metrics, s.logger)
	}

	s.logger.Debugw("peer left room",
		"peer_id", peer.ID,
		"room_type", key.Type,
		"room", roomLabel(key),
		"disconnect", disconnect,
		"members", len(remaining),
	)

	return true
}

func (s *roomService) LeaveAll(ctx context.Context, peer *domain.Peer, disconnect bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leave(ctx, peer, peer.AddressRoom(), disconnect)
	for _, secret := range peer.RoomSecrets() {
		s.leave(ctx, peer, domain.SecretRoom(secret), disconnect)
	}
}

func (s *roomService) ResendPeers(ctx context.Context, peer *domain.Peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := peer.AddressRoom()
	members, err := s.repo.Members(ctx, key)
	if err != nil {
		return err
	}

	s.notify(peer, key, members)
	return nil
}

func (s *roomService) Member(ctx context.Context, key domain.RoomKey, id domain.PeerID) (*domain.Peer, error) {
	return s.repo.Get(ctx, key, id)
}

func (s *roomService) Members(ctx context.Context, key domain.RoomKey) ([]*domain.Peer, error) {
	return s.repo.Members(ctx, key)
}

// Dissolve drops the room without notifying anyone and returns its former
// members. Secret memberships are removed from every member.
func (s *roomService) Dissolve(ctx context.Context, key domain.RoomKey) ([]*domain.Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.repo.Delete(ctx, key)
	if err != nil {
		return nil, err
	}

	if key.Type == domain.RoomTypeSecret {
		for _, peer := range members {
			peer.RemoveRoomSecret(key.ID)
		}
	}

	return members, nil
}

func (s *roomService) Stats(ctx context.Context) domain.RegistryStats {
	ipRooms, peers := s.repo.Count(ctx, domain.RoomTypeIP)
	secretRooms, _ := s.repo.Count(ctx, domain.RoomTypeSecret)

	return domain.RegistryStats{
		Rooms:       ipRooms + secretRooms,
		IPRooms:     ipRooms,
		SecretRooms: secretRooms,
		Peers:       peers,
		Timestamp:   time.Now(),
	}
}

// notify announces peer to the current members, then sends it the roster.
func (s *roomService) notify(peer *domain.Peer, key domain.RoomKey, members []*domain.Peer) {
	recipients := make([]*domain.Peer, 0, len(members))
	others := make([]domain.PeerInfo, 0, len(members))

	for _, other := range members {
		if other.ID == peer.ID {
			continue
		}
		recipients = append(recipients, other)
		others = append(others, other.Info())
	}

	broadcast(recipients, domain.NewPeerJoinedMessage(peer.Info(), key), s.metrics, s.logger)
	deliver(peer, domain.NewPeersMessage(others, key), s.metrics, s.logger)
}

func (s *roomService) members(ctx context.Context, key domain.RoomKey) ([]*domain.Peer, error) {
	members, err := s.repo.Members(ctx, key)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil, nil
	}
	return members, err
}

// roomLabel identifies a room in logs without exposing secrets.
func roomLabel(key domain.RoomKey) string {
	if key.Type == domain.RoomTypeSecret {
		return utils.MaskSecret(key.ID, 6)
	}
	return key.ID
}
