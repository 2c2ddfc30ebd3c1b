package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
	apperrors "pairlink/pkg/errors"
	"pairlink/pkg/tracing"
	"pairlink/pkg/validation"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Relay outcomes.
const (
	RelayDelivered        = "delivered"
	RelayInvalidRecipient = "invalid_recipient"
	RelayNotMember        = "not_member"
	RelayNoRecipient      = "no_recipient"
	RelayDropped          = "dropped"
)

// DefaultRTCConfig is sent to peers when no ICE configuration is supplied.
var DefaultRTCConfig = json.RawMessage(`{"sdpSemantics":"unified-plan","iceServers":[{"urls":"stun:stun.l.google.com:19302"}]}`)

type relayService struct {
	identity   ports.IdentityService
	rooms      ports.RoomService
	pairing    ports.PairingService
	supervisor ports.Supervisor
	rtcConfig  json.RawMessage
	metrics    ports.MetricsRecorder
	logger     *zap.SugaredLogger
}

func NewRelayService(
	identity ports.IdentityService,
	rooms ports.RoomService,
	pairing ports.PairingService,
	supervisor ports.Supervisor,
	rtcConfig json.RawMessage,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.SignalingService {
	if len(rtcConfig) == 0 {
		rtcConfig = DefaultRTCConfig
	}
	return &relayService{
		identity:   identity,
		rooms:      rooms,
		pairing:    pairing,
		supervisor: supervisor,
		rtcConfig:  rtcConfig,
		metrics:    orNop(metrics),
		logger:     logger,
	}
}

// Connect registers a new connection: heartbeat first, then the ICE
// configuration and names, then the address room.
func (s *relayService) Connect(ctx context.Context, req domain.ConnectRequest, transport domain.Transport) (*domain.Peer, error) {
	peer, reused := s.identity.NewPeer(req, transport)

	ctx, span := tracing.TraceConnection(ctx, string(peer.ID), reused)
	defer span.End()

	s.supervisor.Start(ctx, peer)

	deliver(peer, domain.NewRTCConfigMessage(s.rtcConfig), s.metrics, s.logger)
	deliver(peer, domain.NewDisplayNameMessage(peer), s.metrics, s.logger)

	if err := s.rooms.Join(ctx, peer, peer.AddressRoom()); err != nil {
		tracing.RecordError(ctx, err)
		s.supervisor.Disconnect(ctx, peer, domain.DisconnectTransport)
		return nil, fmt.Errorf("failed to join address room: %w", err)
	}

	s.metrics.RecordPeerConnected(reused)
	s.logger.Infow("peer connected",
		"peer_id", peer.ID,
		"reused_id", reused,
		"rtc_supported", peer.RTCSupported,
		"device", peer.Name.DeviceName,
	)

	return peer, nil
}

// HandleMessage decodes and dispatches one frame. Returned errors describe
// dropped or rejected frames; none of them is fatal to the connection.
func (s *relayService) HandleMessage(ctx context.Context, peer *domain.Peer, frame []byte) error {
	if peer.IsClosed() {
		return domain.ErrPeerClosed
	}

	msg, err := domain.DecodeInbound(frame)
	if err != nil {
		s.metrics.RecordMessage("malformed")
		return apperrors.NewMalformedMessageError(err)
	}

	msgType := messageType(msg)
	s.metrics.RecordMessage(msgType)

	ctx, span := tracing.TraceWebSocketMessage(ctx, msgType, string(peer.ID))
	defer span.End()

	if err := s.dispatch(ctx, peer, msg); err != nil {
		tracing.RecordError(ctx, err)
		tracing.SetSpanStatus(ctx, codes.Error, errorCode(err))
		return err
	}
	return nil
}

// errorCode is the stable description used for span status.
func errorCode(err error) string {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return string(appErr.Code)
	}
	return err.Error()
}

func (s *relayService) dispatch(ctx context.Context, peer *domain.Peer, msg domain.InboundMessage) error {
	switch m := msg.(type) {
	case domain.Disconnect:
		s.supervisor.Disconnect(ctx, peer, domain.DisconnectClient)
		return nil
	case domain.Pong:
		s.supervisor.Confirm(peer)
		return nil
	case domain.JoinIPRoom:
		return s.rooms.Join(ctx, peer, peer.AddressRoom())
	case domain.RoomSecrets:
		return s.joinSecretRooms(ctx, peer, m.RoomSecrets)
	case domain.RoomSecretsDeleted:
		for _, roomSecret := range m.RoomSecrets {
			if err := s.pairing.DeleteSecretRoom(ctx, roomSecret); err != nil {
				s.logger.Debugw("secret room not deleted", "peer_id", peer.ID, "error", err)
			}
		}
		return nil
	case domain.PairDeviceInitiate:
		_, err := s.pairing.Initiate(ctx, peer)
		return err
	case domain.PairDeviceJoin:
		return s.pairing.Redeem(ctx, peer, m.RoomKey)
	case domain.PairDeviceCancel:
		return s.pairing.Cancel(ctx, peer)
	case domain.RegenerateRoomSecret:
		_, err := s.pairing.RegenerateSecret(ctx, m.RoomSecret)
		return err
	case domain.ResendPeers:
		return s.rooms.ResendPeers(ctx, peer)
	case domain.Relay:
		return s.relay(ctx, peer, m)
	default:
		return apperrors.NewMalformedMessageError(fmt.Errorf("unhandled message %T", msg))
	}
}

// joinSecretRooms joins every well-formed secret and skips the rest.
func (s *relayService) joinSecretRooms(ctx context.Context, peer *domain.Peer, secrets []string) error {
	for _, roomSecret := range secrets {
		if err := validation.ValidateRoomSecret(roomSecret); err != nil {
			s.logger.Debugw("skipping invalid room secret", "peer_id", peer.ID, "error", err)
			continue
		}
		if err := s.rooms.Join(ctx, peer, domain.SecretRoom(roomSecret)); err != nil {
			return err
		}
	}
	return nil
}

func (s *relayService) relay(ctx context.Context, sender *domain.Peer, m domain.Relay) error {
	if err := validation.ValidatePeerID(m.To); err != nil {
		s.recordRelay(ctx, RelayInvalidRecipient, "")
		return apperrors.NewMalformedMessageError(domain.ErrInvalidRecipient)
	}

	key := m.Room(sender)
	if key.Type == domain.RoomTypeSecret && !sender.HasRoomSecret(key.ID) {
		s.recordRelay(ctx, RelayNotMember, key.Type)
		return apperrors.NewNotFoundError("room")
	}

	recipient, err := s.rooms.Member(ctx, key, domain.PeerID(m.To))
	if err != nil {
		s.recordRelay(ctx, RelayNoRecipient, key.Type)
		return apperrors.WrapError(err, apperrors.ErrCodeNotFound, "recipient not found", http.StatusNotFound)
	}

	frame, err := m.Stamp(sender.ID, sender.RTCSupported)
	if err != nil {
		return apperrors.NewMalformedMessageError(err)
	}

	if err := recipient.SendFrame(frame); err != nil {
		if errors.Is(err, domain.ErrSendQueueFull) {
			s.metrics.RecordSendDropped()
		}
		s.recordRelay(ctx, RelayDropped, key.Type)
		s.logger.Debugw("relay not delivered",
			"peer_id", sender.ID,
			"recipient_id", recipient.ID,
			"error", err,
		)
		return nil
	}

	s.recordRelay(ctx, RelayDelivered, key.Type)
	return nil
}

func (s *relayService) recordRelay(ctx context.Context, outcome string, roomType domain.RoomType) {
	s.metrics.RecordRelay(outcome)
	tracing.AddSpanAttributes(ctx,
		tracing.RelayOutcomeKey.String(outcome),
		tracing.RoomTypeKey.String(string(roomType)),
	)
}

func (s *relayService) Disconnect(ctx context.Context, peer *domain.Peer, reason string) {
	s.supervisor.Disconnect(ctx, peer, reason)
}

// Shutdown disconnects every peer.
func (s *relayService) Shutdown(ctx context.Context) int {
	n := s.supervisor.DisconnectAll(ctx, domain.DisconnectShutdown)
	s.logger.Infow("disconnected all peers", "peers", n)
	return n
}

func (s *relayService) Stats(ctx context.Context) domain.RegistryStats {
	stats := s.rooms.Stats(ctx)
	stats.PairKeys = s.pairing.OutstandingKeys(ctx)
	return stats
}

// messageType labels msg for metrics and spans. Relayed frames share one
// label so client-chosen types cannot grow label sets.
func messageType(msg domain.InboundMessage) string {
	switch m := msg.(type) {
	case domain.Disconnect:
		return domain.TypeDisconnect
	case domain.Pong:
		return domain.TypePong
	case domain.JoinIPRoom:
		return domain.TypeJoinIPRoom
	case domain.RoomSecrets:
		return domain.TypeRoomSecrets
	case domain.RoomSecretsDeleted:
		return domain.TypeRoomSecretsDeleted
	case domain.PairDeviceInitiate:
		return domain.TypePairDeviceInitiate
	case domain.PairDeviceJoin:
		return domain.TypePairDeviceJoin
	case domain.PairDeviceCancel:
		return domain.TypePairDeviceCancel
	case domain.RegenerateRoomSecret:
		return domain.TypeRegenerateRoomSecret
	case domain.ResendPeers:
		return domain.TypeResendPeers
	case domain.Relay:
		if m.Type == domain.TypeSignal {
			return domain.TypeSignal
		}
		return "relay"
	default:
		return "unknown"
	}
}
