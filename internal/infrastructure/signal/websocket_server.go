package signal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
	"pairlink/pkg/config"
	apperrors "pairlink/pkg/errors"
	rlog "pairlink/pkg/logger"
	"pairlink/pkg/netaddr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures websocket connections.
type Options struct {
	WriteTimeout   time.Duration
	SendQueueSize  int
	MaxMessageSize int64
	AllowedOrigins []string

	// Inbound frame limit per connection; zero disables it.
	MessagesPerSecond float64
	Burst             int
}

// OptionsFromConfig reads the signal and websocket rate-limit sections.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		WriteTimeout:   cfg.Signal.WriteTimeout,
		SendQueueSize:  cfg.Signal.SendQueueSize,
		MaxMessageSize: cfg.Signal.MaxMessageSizeBytes,
		AllowedOrigins: cfg.Signal.AllowedOrigins,
	}
	if cfg.RateLimiting.Enabled {
		opts.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		opts.Burst = cfg.RateLimiting.WebSocket.Burst
	}
	return opts
}

func DefaultOptions() Options {
	return Options{
		WriteTimeout:   5 * time.Second,
		SendQueueSize:  64,
		MaxMessageSize: 64 * 1024,
		AllowedOrigins: []string{"*"},
	}
}

type WebSocketServer struct {
	signaling ports.SignalingService
	upgrader  websocket.Upgrader
	opts      Options

	connections atomic.Int64

	logger *rlog.ContextLogger
}

func NewWebSocketServer(signaling ports.SignalingService, opts Options, logger *zap.Logger) *WebSocketServer {
	defaults := DefaultOptions()
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = defaults.SendQueueSize
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaults.MaxMessageSize
	}

	s := &WebSocketServer{
		signaling: signaling,
		opts:      opts,
		logger:    rlog.NewContextLogger(logger),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Connections returns the number of open websocket connections.
func (s *WebSocketServer) Connections() int64 {
	return s.connections.Load()
}

// HandleWebSocket upgrades the request and serves the peer until either
// side closes the connection.
func (s *WebSocketServer) HandleWebSocket(c *gin.Context) {
	s.ServeHTTP(c.Writer, c.Request)
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := rlog.WithRequestID(r.Context(), uuid.NewString())
	ctx = rlog.WithRemoteIP(ctx, netaddr.ClientIP(r.Header, r.RemoteAddr))

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Sugar(ctx).Warnw("websocket upgrade failed", "error", err)
		return
	}

	s.connections.Add(1)
	defer s.connections.Add(-1)

	conn := newConnection(ws, s.opts.SendQueueSize, s.opts.WriteTimeout, s.logger.Sugar(ctx))
	go conn.writePump()

	req := domain.ConnectRequest{
		URI:        r.URL.RequestURI(),
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
	}

	peer, err := s.signaling.Connect(ctx, req, conn)
	if err != nil {
		s.logger.Sugar(ctx).Errorw("peer registration failed", "error", err)
		conn.Close()
		return
	}

	ctx = rlog.WithPeerID(ctx, string(peer.ID))
	s.readLoop(ctx, ws, conn, peer)
}

func (s *WebSocketServer) readLoop(ctx context.Context, ws *websocket.Conn, conn *Connection, peer *domain.Peer) {
	log := s.logger.Sugar(ctx)
	ws.SetReadLimit(s.opts.MaxMessageSize)

	var limiter *rate.Limiter
	if s.opts.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.Burst)
	}

	for {
		msgType, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) && !peer.IsClosed() {
				log.Debugw("websocket read failed", "error", err)
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if limiter != nil && !limiter.Allow() {
			log.Debugw("inbound frame rate limited")
			continue
		}

		if err := s.signaling.HandleMessage(ctx, peer, frame); err != nil {
			if errors.Is(err, domain.ErrPeerClosed) {
				break
			}
			s.logDropped(ctx, err)
		}
	}

	s.signaling.Disconnect(context.WithoutCancel(ctx), peer, domain.DisconnectTransport)
	conn.Close()
}

func (s *WebSocketServer) logDropped(ctx context.Context, err error) {
	fields := []interface{}{"error", err}
	if appErr := apperrors.GetAppError(err); appErr != nil {
		fields = append(fields, "code", appErr.Code)
	}
	s.logger.Sugar(ctx).Debugw("inbound frame dropped", fields...)
}

// checkOrigin accepts requests without an Origin header, any origin when
// "*" is configured, and otherwise origins whose host is listed.
func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return strings.EqualFold(u.Host, r.Host)
}
