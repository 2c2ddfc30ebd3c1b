package services

import (
	"encoding/json"
	"errors"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"

	"go.uber.org/zap"
)

// deliver sends msg to peer without blocking. Failed sends are logged and
// counted but never returned; delivery is best effort.
func deliver(peer *domain.Peer, msg any, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) bool {
	if peer == nil {
		return false
	}
	return sendLogged(peer, peer.Send(msg), metrics, logger)
}

// broadcast encodes msg once and sends the frame to every peer.
func broadcast(peers []*domain.Peer, msg any, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) int {
	if len(peers) == 0 {
		return 0
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		logger.Errorw("failed to encode broadcast", "error", err)
		return 0
	}

	sent := 0
	for _, peer := range peers {
		if sendLogged(peer, peer.SendFrame(frame), metrics, logger) {
			sent++
		}
	}
	return sent
}

func sendLogged(peer *domain.Peer, err error, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, domain.ErrSendQueueFull) {
		metrics.RecordSendDropped()
	}
	logger.Debugw("dropped outbound message",
		"peer_id", peer.ID,
		"error", err,
	)
	return false
}
