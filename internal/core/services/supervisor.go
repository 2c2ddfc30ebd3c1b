package services

import (
	"context"
	"sync"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"

	"go.uber.org/zap"
)

// supervisor runs one heartbeat loop per peer and owns the teardown
// sequence for disconnects.
type supervisor struct {
	rooms    ports.RoomService
	pairing  ports.PairingService
	interval time.Duration
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	tasks map[*domain.Peer]context.CancelFunc
}

func NewSupervisor(
	rooms ports.RoomService,
	pairing ports.PairingService,
	interval time.Duration,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.Supervisor {
	return &supervisor{
		rooms:    rooms,
		pairing:  pairing,
		interval: interval,
		metrics:  orNop(metrics),
		logger:   logger,
		tasks:    make(map[*domain.Peer]context.CancelFunc),
	}
}

// Start (re)starts supervision of peer. Any running loop for the same peer
// is cancelled first. A ping goes out immediately.
func (s *supervisor) Start(ctx context.Context, peer *domain.Peer) {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	if prev, ok := s.tasks[peer]; ok {
		prev()
	}
	s.tasks[peer] = cancel
	s.mu.Unlock()

	peer.Beat(time.Now())
	deliver(peer, domain.NewSignalMessage(domain.TypePing), s.metrics, s.logger)

	go s.run(taskCtx, peer)
}

func (s *supervisor) run(ctx context.Context, peer *domain.Peer) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(peer.LastBeat()) > 2*s.interval {
				s.logger.Infow("peer heartbeat timed out",
					"peer_id", peer.ID,
					"last_beat", peer.LastBeat(),
				)
				s.Disconnect(ctx, peer, domain.DisconnectTimeout)
				return
			}
			deliver(peer, domain.NewSignalMessage(domain.TypePing), s.metrics, s.logger)
		}
	}
}

func (s *supervisor) Confirm(peer *domain.Peer) {
	peer.Beat(time.Now())
}

// Disconnect tears peer down once: rooms first, then the heartbeat, then
// the pairing key, then the transport.
func (s *supervisor) Disconnect(ctx context.Context, peer *domain.Peer, reason string) {
	if !peer.MarkClosed() {
		return
	}

	// Teardown runs to completion regardless of the caller's context.
	ctx = context.WithoutCancel(ctx)

	s.rooms.LeaveAll(ctx, peer, true)
	s.cancel(peer)
	s.pairing.Release(ctx, peer)

	lifetime := time.Since(peer.ConnectedAt)
	s.metrics.RecordPeerDisconnected(reason, lifetime)
	s.logger.Infow("peer disconnected",
		"peer_id", peer.ID,
		"reason", reason,
		"lifetime", lifetime,
	)

	if err := peer.Close(); err != nil {
		s.logger.Debugw("failed to close transport",
			"peer_id", peer.ID,
			"error", err,
		)
	}
}

// DisconnectAll tears down every supervised peer and returns how many.
func (s *supervisor) DisconnectAll(ctx context.Context, reason string) int {
	s.mu.Lock()
	peers := make([]*domain.Peer, 0, len(s.tasks))
	for peer := range s.tasks {
		peers = append(peers, peer)
	}
	s.mu.Unlock()

	for _, peer := range peers {
		s.Disconnect(ctx, peer, reason)
	}
	return len(peers)
}

func (s *supervisor) Supervised() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *supervisor) cancel(peer *domain.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.tasks[peer]; ok {
		cancel()
		delete(s.tasks, peer)
	}
}
