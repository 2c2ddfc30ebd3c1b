package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/infrastructure/middleware"
	"pairlink/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockSignaling struct {
	mock.Mock
}

func (m *mockSignaling) Connect(ctx context.Context, req domain.ConnectRequest, t domain.Transport) (*domain.Peer, error) {
	args := m.Called(ctx, req, t)
	peer, _ := args.Get(0).(*domain.Peer)
	return peer, args.Error(1)
}

func (m *mockSignaling) HandleMessage(ctx context.Context, peer *domain.Peer, frame []byte) error {
	return m.Called(ctx, peer, frame).Error(0)
}

func (m *mockSignaling) Disconnect(ctx context.Context, peer *domain.Peer, reason string) {
	m.Called(ctx, peer, reason)
}

func (m *mockSignaling) Shutdown(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

func (m *mockSignaling) Stats(ctx context.Context) domain.RegistryStats {
	return m.Called(ctx).Get(0).(domain.RegistryStats)
}

func newStatusRouter(t *testing.T, signaling *mockSignaling, health *monitoring.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(zaptest.NewLogger(t).Sugar()))
	NewStatusHandler(signaling, health, "test").SetupRoutes(router)
	return router
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestStatusHandler_Health(t *testing.T) {
	router := newStatusRouter(t, &mockSignaling{}, monitoring.NewHealthChecker())

	w := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"test"}`, w.Body.String())
}

func TestStatusHandler_Ready(t *testing.T) {
	health := monitoring.NewHealthChecker()
	draining := false
	health.AddShutdownCheck(func() bool { return draining })
	router := newStatusRouter(t, &mockSignaling{}, health)

	assert.Equal(t, http.StatusOK, get(router, "/ready").Code)

	draining = true
	w := get(router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "SERVICE_UNAVAILABLE")
}

func TestStatusHandler_Stats(t *testing.T) {
	signaling := &mockSignaling{}
	signaling.On("Stats", mock.Anything).Return(domain.RegistryStats{
		Rooms:       3,
		IPRooms:     2,
		SecretRooms: 1,
		Peers:       4,
		PairKeys:    1,
		Timestamp:   time.Unix(0, 0).UTC(),
	})
	router := newStatusRouter(t, signaling, monitoring.NewHealthChecker())

	w := get(router, "/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats domain.RegistryStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.Peers)
	assert.Equal(t, 1, stats.PairKeys)
	signaling.AssertExpectations(t)
}
