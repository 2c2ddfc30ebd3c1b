package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
	apperrors "pairlink/pkg/errors"
	"pairlink/pkg/secret"
	"pairlink/pkg/utils"
	"pairlink/pkg/validation"

	"go.uber.org/zap"
)

// Pairing outcomes.
const (
	PairingInitiated   = "initiated"
	PairingJoined      = "joined"
	PairingInvalidKey  = "invalid_key"
	PairingRateLimited = "rate_limited"
	PairingCanceled    = "canceled"
	PairingRegenerated = "regenerated"
	PairingRoomDeleted = "room_deleted"
)

// maxKeyRolls bounds the search for an unused pairing code.
const maxKeyRolls = 1000

type PairingConfig struct {
	MaxAttempts      int
	AttemptWindow    time.Duration
	RoomSecretLength int
}

type pairingService struct {
	keys    ports.PairKeyRepository
	rooms   ports.RoomService
	cfg     PairingConfig
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger

	afterFunc func(time.Duration, func())
	newSecret func(int) string
	newKey    func() (string, error)

	mu sync.Mutex
}

type PairingOption func(*pairingService)

// WithAfterFunc replaces the timer used to decay redemption attempts.
func WithAfterFunc(fn func(time.Duration, func())) PairingOption {
	return func(s *pairingService) {
		s.afterFunc = fn
	}
}

// WithKeyGenerator replaces the pairing code source.
func WithKeyGenerator(fn func() (string, error)) PairingOption {
	return func(s *pairingService) {
		s.newKey = fn
	}
}

func NewPairingService(
	keys ports.PairKeyRepository,
	rooms ports.RoomService,
	cfg PairingConfig,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
	opts ...PairingOption,
) ports.PairingService {
	s := &pairingService{
		keys:    keys,
		rooms:   rooms,
		cfg:     cfg,
		metrics: orNop(metrics),
		logger:  logger,
		afterFunc: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		newSecret: secret.RandomString,
		newKey:    secret.RandomPairKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *pairingService) Initiate(ctx context.Context, creator *domain.Peer) (*domain.PairKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if creator.IsClosed() {
		return nil, domain.ErrPeerClosed
	}

	roomSecret := s.newSecret(s.cfg.RoomSecretLength)

	code, err := s.allocateKey(ctx)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to allocate pair key", http.StatusInternalServerError)
	}

	key := &domain.PairKey{
		Key:        code,
		RoomSecret: roomSecret,
		Creator:    creator,
		CreatedAt:  time.Now(),
	}
	if err := s.keys.Add(ctx, key); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to store pair key", http.StatusInternalServerError)
	}

	// The old code stays reserved until the new one exists so the two
	// can never be equal.
	if old := creator.SetPairKey(code); old != "" {
		s.removeKey(ctx, old)
	}

	deliver(creator, domain.NewPairDeviceInitiatedMessage(roomSecret, code), s.metrics, s.logger)

	if err := s.rooms.Join(ctx, creator, domain.SecretRoom(roomSecret)); err != nil {
		return nil, err
	}

	s.metrics.RecordPairing(PairingInitiated)
	s.logger.Infow("pairing initiated", "peer_id", creator.ID)

	return key, nil
}

func (s *pairingService) Redeem(ctx context.Context, redeemer *domain.Peer, code string) error {
	if !redeemer.TryPairAttempt(s.cfg.MaxAttempts) {
		deliver(redeemer, domain.NewSignalMessage(domain.TypePairDeviceJoinKeyRateLimit), s.metrics, s.logger)
		s.metrics.RecordPairing(PairingRateLimited)
		s.logger.Warnw("pair key redemption rate limited", "peer_id", redeemer.ID)
		return apperrors.NewRateLimitError()
	}
	s.afterFunc(s.cfg.AttemptWindow, redeemer.ReleasePairAttempt)

	if err := validation.ValidatePairKey(code); err != nil {
		return s.rejectKey(redeemer, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if redeemer.IsClosed() {
		return domain.ErrPeerClosed
	}

	key, err := s.keys.Get(ctx, code)
	if err != nil || key.Creator.ID == redeemer.ID {
		return s.rejectKey(redeemer, "unknown pair key or own key")
	}

	// A creator being torn down has already left its rooms; its key is
	// released right after, so it is treated as gone.
	if key.Creator.IsClosed() {
		s.removeKey(ctx, code)
		return s.rejectKey(redeemer, "pair key creator disconnected")
	}

	s.removeKey(ctx, code)

	deliver(redeemer, domain.NewPairDeviceJoinedMessage(key.RoomSecret, key.Creator.ID), s.metrics, s.logger)
	deliver(key.Creator, domain.NewPairDeviceJoinedMessage(key.RoomSecret, redeemer.ID), s.metrics, s.logger)

	if err := s.rooms.Join(ctx, redeemer, domain.SecretRoom(key.RoomSecret)); err != nil {
		return err
	}

	if own := redeemer.PairKey(); own != "" {
		s.removeKey(ctx, own)
	}

	s.metrics.RecordPairing(PairingJoined)
	s.logger.Infow("pairing completed",
		"peer_id", redeemer.ID,
		"creator_id", key.Creator.ID,
	)

	return nil
}

func (s *pairingService) rejectKey(redeemer *domain.Peer, reason string) error {
	deliver(redeemer, domain.NewSignalMessage(domain.TypePairDeviceJoinKeyInvalid), s.metrics, s.logger)
	s.metrics.RecordPairing(PairingInvalidKey)
	return apperrors.NewInvalidPairKeyError(reason)
}

func (s *pairingService) Cancel(ctx context.Context, creator *domain.Peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := creator.PairKey()
	if code == "" {
		return nil
	}

	s.removeKey(ctx, code)
	deliver(creator, domain.NewPairDeviceCanceledMessage(code), s.metrics, s.logger)
	s.metrics.RecordPairing(PairingCanceled)

	return nil
}

func (s *pairingService) Release(ctx context.Context, peer *domain.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := peer.PairKey(); code != "" {
		s.removeKey(ctx, code)
	}
}

// RegenerateSecret dissolves the room under oldSecret and tells every
// former member the replacement. Members are not re-joined.
func (s *pairingService) RegenerateSecret(ctx context.Context, oldSecret string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.rooms.Dissolve(ctx, domain.SecretRoom(oldSecret))
	if err != nil {
		return "", apperrors.WrapError(err, apperrors.ErrCodeNotFound, "room not found", http.StatusNotFound)
	}

	newSecret := s.newSecret(s.cfg.RoomSecretLength)
	broadcast(members, domain.NewRoomSecretRegeneratedMessage(oldSecret, newSecret), s.metrics, s.logger)

	s.metrics.RecordPairing(PairingRegenerated)
	s.logger.Infow("room secret regenerated",
		"room", utils.MaskSecret(oldSecret, 6),
		"members", len(members),
	)

	return newSecret, nil
}

func (s *pairingService) DeleteSecretRoom(ctx context.Context, roomSecret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.SecretRoom(roomSecret)
	members, err := s.rooms.Members(ctx, key)
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeNotFound, "room not found", http.StatusNotFound)
	}

	msg := domain.NewSecretRoomDeletedMessage(roomSecret)
	for _, peer := range members {
		if err := s.rooms.Leave(ctx, peer, key, false); err != nil {
			return err
		}
		deliver(peer, msg, s.metrics, s.logger)
	}

	s.metrics.RecordPairing(PairingRoomDeleted)
	s.logger.Infow("secret room deleted",
		"room", utils.MaskSecret(roomSecret, 6),
		"members", len(members),
	)

	return nil
}

func (s *pairingService) OutstandingKeys(ctx context.Context) int {
	return s.keys.Count(ctx)
}

func (s *pairingService) allocateKey(ctx context.Context) (string, error) {
	for i := 0; i < maxKeyRolls; i++ {
		code, err := s.newKey()
		if err != nil {
			return "", err
		}
		if !s.keys.Exists(ctx, code) {
			return code, nil
		}
	}
	return "", domain.ErrPairKeySpaceFull
}

// removeKey drops code and clears it from its creator.
func (s *pairingService) removeKey(ctx context.Context, code string) {
	key, err := s.keys.Remove(ctx, code)
	if err != nil {
		return
	}
	key.Creator.ClearPairKey(code)
}
