package services

import (
	"errors"
	"regexp"
	"sync"
	"testing"

	"pairlink/internal/core/domain"
	apperrors "pairlink/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

func TestPairingService_Initiate(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, trA := newPeer("a", "127.0.0.1")

	key, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)

	assert.Regexp(t, sixDigits, key.Key)
	assert.Len(t, key.RoomSecret, 256)
	assert.Same(t, a, key.Creator)
	assert.Equal(t, key.Key, a.PairKey())

	assert.Equal(t, []string{domain.TypePairDeviceInitiated, domain.TypePeers}, trA.types())
	initiated := trA.ofType(domain.TypePairDeviceInitiated)[0]
	assert.Equal(t, key.Key, initiated["roomKey"])
	assert.Equal(t, key.RoomSecret, initiated["roomSecret"])

	assert.Equal(t, []domain.PeerID{"a"}, memberIDs(t, env.rooms, domain.SecretRoom(key.RoomSecret)))
	assert.True(t, a.HasRoomSecret(key.RoomSecret))
}

func TestPairingService_InitiateSupersedesOldKey(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, _ := newPeer("a", "127.0.0.1")

	first, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)
	second, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, second.Key, a.PairKey())
	assert.Equal(t, 1, env.pairing.OutstandingKeys(ctx))
	assert.False(t, env.keyRepo.Exists(ctx, first.Key))
}

func TestPairingService_KeyCollisionRerolls(t *testing.T) {
	ctx := t.Context()

	var mu sync.Mutex
	codes := []string{"111111", "111111", "111111", "222222"}
	gen := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	env := newTestEnv(t, 0, WithKeyGenerator(gen))
	a, _ := newPeer("a", "127.0.0.1")
	b, _ := newPeer("b", "127.0.0.1")

	ka, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)
	kb, err := env.pairing.Initiate(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, "111111", ka.Key)
	assert.Equal(t, "222222", kb.Key)
}

func TestPairingService_KeySpaceExhausted(t *testing.T) {
	env := newTestEnv(t, 0, WithKeyGenerator(func() (string, error) { return "000000", nil }))
	a, _ := newPeer("a", "127.0.0.1")
	b, _ := newPeer("b", "127.0.0.1")

	_, err := env.pairing.Initiate(t.Context(), a)
	require.NoError(t, err)

	_, err = env.pairing.Initiate(t.Context(), b)
	assert.ErrorIs(t, err, domain.ErrPairKeySpaceFull)
	assert.Equal(t, "", b.PairKey())
}

func TestPairingService_Redeem(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, trA := newPeer("a", "127.0.0.1")
	b, trB := newPeer("b", "198.51.100.7")

	key, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)

	// b holds a key of its own that redemption must release
	own, err := env.pairing.Initiate(ctx, b)
	require.NoError(t, err)
	trA.reset()
	trB.reset()

	require.NoError(t, env.pairing.Redeem(ctx, b, key.Key))

	joinedB := trB.ofType(domain.TypePairDeviceJoined)
	require.Len(t, joinedB, 1)
	assert.Equal(t, "a", joinedB[0]["peerId"])
	assert.Equal(t, key.RoomSecret, joinedB[0]["roomSecret"])

	joinedA := trA.ofType(domain.TypePairDeviceJoined)
	require.Len(t, joinedA, 1)
	assert.Equal(t, "b", joinedA[0]["peerId"])

	assert.ElementsMatch(t, []domain.PeerID{"a", "b"}, memberIDs(t, env.rooms, domain.SecretRoom(key.RoomSecret)))
	assert.False(t, env.keyRepo.Exists(ctx, key.Key))
	assert.False(t, env.keyRepo.Exists(ctx, own.Key))
	assert.Equal(t, "", a.PairKey())
	assert.Equal(t, "", b.PairKey())

	// the code is single use
	c, trC := newPeer("c", "127.0.0.1")
	err = env.pairing.Redeem(ctx, c, key.Key)
	assert.True(t, hasCode(err, apperrors.ErrCodeInvalidPairKey))
	assert.Equal(t, []string{domain.TypePairDeviceJoinKeyInvalid}, trC.types())
}

func TestPairingService_RedeemOwnKey(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, trA := newPeer("a", "127.0.0.1")

	key, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)
	trA.reset()

	err = env.pairing.Redeem(ctx, a, key.Key)
	assert.True(t, hasCode(err, apperrors.ErrCodeInvalidPairKey))
	assert.Equal(t, []string{domain.TypePairDeviceJoinKeyInvalid}, trA.types())
	assert.True(t, env.keyRepo.Exists(ctx, key.Key))
}

func TestPairingService_RedeemUnknownKey(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	c, trC := newPeer("c", "127.0.0.1")

	err := env.pairing.Redeem(ctx, c, "123456")
	assert.True(t, hasCode(err, apperrors.ErrCodeInvalidPairKey))
	assert.Equal(t, []string{domain.TypePairDeviceJoinKeyInvalid}, trC.types())
	assert.Empty(t, c.RoomSecrets())
	assert.Equal(t, 0, env.rooms.Stats(ctx).Rooms)
}

func TestPairingService_RedeemMalformedKey(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	c, trC := newPeer("c", "127.0.0.1")

	for _, code := range []string{"", "12345", "1234567", "12a456", " 123456"} {
		err := env.pairing.Redeem(ctx, c, code)
		assert.True(t, hasCode(err, apperrors.ErrCodeInvalidPairKey), code)
	}

	assert.Len(t, trC.ofType(domain.TypePairDeviceJoinKeyInvalid), 5)
	assert.Equal(t, 5, c.PairAttempts())
	assert.Equal(t, int64(5), env.metrics.Snapshot().Pairings[PairingInvalidKey])
}

// A creator already marked closed is mid-teardown: its key must not pair.
func TestPairingService_RedeemClosedCreator(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, trA := newPeer("a", "127.0.0.1")
	b, trB := newPeer("b", "127.0.0.1")

	key, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)
	trA.reset()

	require.True(t, a.MarkClosed())

	err = env.pairing.Redeem(ctx, b, key.Key)
	assert.True(t, hasCode(err, apperrors.ErrCodeInvalidPairKey))
	assert.Equal(t, []string{domain.TypePairDeviceJoinKeyInvalid}, trB.types())
	assert.Empty(t, trA.types())
	assert.False(t, env.keyRepo.Exists(ctx, key.Key))
	assert.Empty(t, b.RoomSecrets())
	assert.NotContains(t, memberIDs(t, env.rooms, domain.SecretRoom(key.RoomSecret)), domain.PeerID("b"))
}

func TestPairingService_RedeemRateLimit(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, _ := newPeer("a", "127.0.0.1")
	c, trC := newPeer("c", "127.0.0.1")

	key, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		err := env.pairing.Redeem(ctx, c, "999999x")
		require.True(t, hasCode(err, apperrors.ErrCodeInvalidPairKey))
	}

	// a valid code is rejected once the limit is reached
	err = env.pairing.Redeem(ctx, c, key.Key)
	assert.True(t, hasCode(err, apperrors.ErrCodeRateLimit))
	assert.Len(t, trC.ofType(domain.TypePairDeviceJoinKeyRateLimit), 1)
	assert.Equal(t, 10, c.PairAttempts())
	assert.True(t, env.keyRepo.Exists(ctx, key.Key))

	env.timers.fireAll()
	assert.Equal(t, 0, c.PairAttempts())

	require.NoError(t, env.pairing.Redeem(ctx, c, key.Key))
}

func TestPairingService_Cancel(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, trA := newPeer("a", "127.0.0.1")

	require.NoError(t, env.pairing.Cancel(ctx, a))
	assert.Empty(t, trA.types())

	key, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)
	trA.reset()

	require.NoError(t, env.pairing.Cancel(ctx, a))
	canceled := trA.ofType(domain.TypePairDeviceCanceled)
	require.Len(t, canceled, 1)
	assert.Equal(t, key.Key, canceled[0]["roomKey"])
	assert.False(t, env.keyRepo.Exists(ctx, key.Key))
	assert.Equal(t, "", a.PairKey())
}

func TestPairingService_Release(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, trA := newPeer("a", "127.0.0.1")

	key, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)
	trA.reset()

	env.pairing.Release(ctx, a)
	assert.False(t, env.keyRepo.Exists(ctx, key.Key))
	assert.Empty(t, trA.types())
}

func TestPairingService_RegenerateSecret(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, trA := newPeer("a", "127.0.0.1")
	b, trB := newPeer("b", "127.0.0.1")

	key, err := env.pairing.Initiate(ctx, a)
	require.NoError(t, err)
	require.NoError(t, env.pairing.Redeem(ctx, b, key.Key))
	trA.reset()
	trB.reset()

	newSecret, err := env.pairing.RegenerateSecret(ctx, key.RoomSecret)
	require.NoError(t, err)
	assert.Len(t, newSecret, 256)
	assert.NotEqual(t, key.RoomSecret, newSecret)

	for _, tr := range []*fakeTransport{trA, trB} {
		msgs := tr.ofType(domain.TypeRoomSecretRegenerated)
		require.Len(t, msgs, 1)
		assert.Equal(t, key.RoomSecret, msgs[0]["oldRoomSecret"])
		assert.Equal(t, newSecret, msgs[0]["newRoomSecret"])
	}

	assert.False(t, a.HasRoomSecret(key.RoomSecret))
	assert.False(t, b.HasRoomSecret(key.RoomSecret))
	_, err = env.rooms.Members(ctx, domain.SecretRoom(key.RoomSecret))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	// members are not moved to the new secret
	_, err = env.rooms.Members(ctx, domain.SecretRoom(newSecret))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestPairingService_RegenerateUnknownSecret(t *testing.T) {
	env := newTestEnv(t, 0)

	_, err := env.pairing.RegenerateSecret(t.Context(), secretA)
	assert.True(t, hasCode(err, apperrors.ErrCodeNotFound))
	assert.True(t, errors.Is(err, domain.ErrRoomNotFound))
}

func TestPairingService_DeleteSecretRoom(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, 0)
	a, trA := newPeer("a", "127.0.0.1")
	b, trB := newPeer("b", "127.0.0.1")

	key := domain.SecretRoom(secretA)
	require.NoError(t, env.rooms.Join(ctx, a, key))
	require.NoError(t, env.rooms.Join(ctx, b, key))
	trA.reset()
	trB.reset()

	require.NoError(t, env.pairing.DeleteSecretRoom(ctx, secretA))

	for _, tr := range []*fakeTransport{trA, trB} {
		deleted := tr.ofType(domain.TypeSecretRoomDeleted)
		require.Len(t, deleted, 1)
		assert.Equal(t, secretA, deleted[0]["roomSecret"])
	}
	assert.Empty(t, a.RoomSecrets())
	assert.Empty(t, b.RoomSecrets())
	assert.Empty(t, memberIDs(t, env.rooms, key))
}

func TestPairingService_ClosedPeer(t *testing.T) {
	env := newTestEnv(t, 0)
	a, _ := newPeer("a", "127.0.0.1")
	a.MarkClosed()

	_, err := env.pairing.Initiate(t.Context(), a)
	assert.ErrorIs(t, err, domain.ErrPeerClosed)
	assert.Equal(t, 0, env.pairing.OutstandingKeys(t.Context()))
}
