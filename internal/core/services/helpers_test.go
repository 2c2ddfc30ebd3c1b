package services

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
	"pairlink/internal/infrastructure/repositories/memory"
	apperrors "pairlink/pkg/errors"
	"pairlink/pkg/secret"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (t *fakeTransport) Send(frame []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.frames = append(t.frames, append([]byte(nil), frame...))
	return true
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) messages() []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]map[string]any, 0, len(t.frames))
	for _, f := range t.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// types lists message types received, skipping pings.
func (t *fakeTransport) types() []string {
	var out []string
	for _, m := range t.messages() {
		if typ, _ := m["type"].(string); typ != domain.TypePing {
			out = append(out, typ)
		}
	}
	return out
}

func (t *fakeTransport) ofType(typ string) []map[string]any {
	var out []map[string]any
	for _, m := range t.messages() {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (t *fakeTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = nil
}

// manualTimers collects scheduled callbacks so tests decide when they fire.
type manualTimers struct {
	mu    sync.Mutex
	funcs []func()
}

func (m *manualTimers) afterFunc(_ time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, fn)
}

func (m *manualTimers) fireAll() {
	m.mu.Lock()
	funcs := m.funcs
	m.funcs = nil
	m.mu.Unlock()

	for _, fn := range funcs {
		fn()
	}
}

type testEnv struct {
	logger     *zap.SugaredLogger
	hasher     *secret.Hasher
	identity   *IdentityService
	roomRepo   ports.RoomRepository
	keyRepo    ports.PairKeyRepository
	rooms      ports.RoomService
	pairing    ports.PairingService
	supervisor ports.Supervisor
	signaling  ports.SignalingService
	metrics    *MetricsService
	timers     *manualTimers
}

func newTestEnv(t *testing.T, interval time.Duration, opts ...PairingOption) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()
	if interval < time.Second {
		// heartbeat goroutines may outlive the test
		logger = zap.NewNop().Sugar()
	}

	env := &testEnv{
		logger:   logger,
		hasher:   secret.NewHasher(),
		roomRepo: memory.NewMemoryRoomRepository(),
		keyRepo:  memory.NewMemoryPairKeyRepository(),
		metrics:  NewMetricsService(),
		timers:   &manualTimers{},
	}

	env.identity = NewIdentityService(env.hasher, IdentityConfig{}, logger)
	env.rooms = NewRoomService(env.roomRepo, env.metrics, logger)

	opts = append([]PairingOption{WithAfterFunc(env.timers.afterFunc)}, opts...)
	env.pairing = NewPairingService(env.keyRepo, env.rooms, PairingConfig{
		MaxAttempts:      10,
		AttemptWindow:    10 * time.Second,
		RoomSecretLength: 256,
	}, env.metrics, logger, opts...)

	env.supervisor = NewSupervisor(env.rooms, env.pairing, interval, env.metrics, logger)
	env.signaling = NewRelayService(env.identity, env.rooms, env.pairing, env.supervisor, nil, env.metrics, logger)

	return env
}

func connectRequest(ip string) domain.ConnectRequest {
	h := http.Header{}
	h.Set("X-Forwarded-For", ip)
	h.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0")
	return domain.ConnectRequest{
		URI:        "/server/webrtc",
		Header:     h,
		RemoteAddr: "10.1.2.3:40000",
	}
}

// newPeer creates a peer outside of any service.
func newPeer(id, address string) (*domain.Peer, *fakeTransport) {
	tr := &fakeTransport{}
	return domain.NewPeer(domain.PeerID(id), address, tr), tr
}

func memberIDs(t *testing.T, rooms ports.RoomService, key domain.RoomKey) []domain.PeerID {
	t.Helper()
	members, err := rooms.Members(t.Context(), key)
	if err != nil {
		return nil
	}
	ids := make([]domain.PeerID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}

// hasCode reports whether err carries an AppError with the given code.
func hasCode(err error, code apperrors.ErrorCode) bool {
	appErr := apperrors.GetAppError(err)
	return appErr != nil && appErr.Code == code
}
