package ports

import (
	"context"
	"time"

	"pairlink/internal/core/domain"
)

type IdentityService interface {
	NewPeer(req domain.ConnectRequest, transport domain.Transport) (*domain.Peer, bool)
}

type RoomService interface {
	Join(ctx context.Context, peer *domain.Peer, key domain.RoomKey) error
	Leave(ctx context.Context, peer *domain.Peer, key domain.RoomKey, disconnect bool) error
	LeaveAll(ctx context.Context, peer *domain.Peer, disconnect bool)
	ResendPeers(ctx context.Context, peer *domain.Peer) error
	Member(ctx context.Context, key domain.RoomKey, id domain.PeerID) (*domain.Peer, error)
	Members(ctx context.Context, key domain.RoomKey) ([]*domain.Peer, error)
	Dissolve(ctx context.Context, key domain.RoomKey) ([]*domain.Peer, error)
	Stats(ctx context.Context) domain.RegistryStats
}

type PairingService interface {
	Initiate(ctx context.Context, creator *domain.Peer) (*domain.PairKey, error)
	Redeem(ctx context.Context, redeemer *domain.Peer, code string) error
	Cancel(ctx context.Context, creator *domain.Peer) error
	Release(ctx context.Context, peer *domain.Peer)
	RegenerateSecret(ctx context.Context, oldSecret string) (string, error)
	DeleteSecretRoom(ctx context.Context, secret string) error
	OutstandingKeys(ctx context.Context) int
}

type Supervisor interface {
	Start(ctx context.Context, peer *domain.Peer)
	Confirm(peer *domain.Peer)
	Disconnect(ctx context.Context, peer *domain.Peer, reason string)
	DisconnectAll(ctx context.Context, reason string) int
	Supervised() int
}

// SignalingService is the entry point used by transports.
type SignalingService interface {
	Connect(ctx context.Context, req domain.ConnectRequest, transport domain.Transport) (*domain.Peer, error)
	HandleMessage(ctx context.Context, peer *domain.Peer, frame []byte) error
	Disconnect(ctx context.Context, peer *domain.Peer, reason string)
	Shutdown(ctx context.Context) int
	Stats(ctx context.Context) domain.RegistryStats
}

type MetricsRecorder interface {
	RecordPeerConnected(reused bool)
	RecordPeerDisconnected(reason string, lifetime time.Duration)
	RecordMessage(msgType string)
	RecordRelay(outcome string)
	RecordPairing(outcome string)
	RecordSendDropped()
	UpdateRegistry(stats domain.RegistryStats)
}
