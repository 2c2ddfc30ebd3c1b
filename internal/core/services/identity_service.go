package services

import (
	"net/url"
	"strings"

	"pairlink/internal/core/domain"
	"pairlink/pkg/names"
	"pairlink/pkg/netaddr"
	"pairlink/pkg/secret"
	"pairlink/pkg/utils"
	"pairlink/pkg/validation"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"go.uber.org/zap"
)

const (
	UnknownDevice = "Unknown Device"

	// rtcMarker in the request URI flags a WebRTC capable client.
	rtcMarker = "webrtc"
)

type IdentityConfig struct {
	// IPv6Localize keeps only the first N segments of public IPv6
	// addresses. Zero disables it.
	IPv6Localize int
	DebugMode    bool
}

// IdentityService derives peer identity, address and names from a
// connection request.
type IdentityService struct {
	hasher *secret.Hasher
	cfg    IdentityConfig
	logger *zap.SugaredLogger
}

func NewIdentityService(hasher *secret.Hasher, cfg IdentityConfig, logger *zap.SugaredLogger) *IdentityService {
	return &IdentityService{
		hasher: hasher,
		cfg:    cfg,
		logger: logger,
	}
}

// NewPeer builds a peer for an accepted connection and reports whether a
// previously issued id was reused.
func (s *IdentityService) NewPeer(req domain.ConnectRequest, transport domain.Transport) (*domain.Peer, bool) {
	id, reused := s.DeriveIdentity(req)

	peer := domain.NewPeer(id, s.DeriveAddress(req), transport)
	peer.IDHash = s.hasher.Hash(string(id))
	peer.RTCSupported = strings.Contains(req.URI, rtcMarker)
	peer.Name = DeriveName(id, req.Header.Get("User-Agent"))

	return peer, reused
}

// DeriveIdentity reuses the client's peer_id only when it comes with the
// matching peer_id_hash issued by this process.
func (s *IdentityService) DeriveIdentity(req domain.ConnectRequest) (domain.PeerID, bool) {
	query := parseQuery(req.URI)
	candidate := query.Get("peer_id")
	hash := query.Get("peer_id_hash")

	if candidate != "" && validation.ValidatePeerID(candidate) == nil && s.hasher.Verify(candidate, hash) {
		return domain.PeerID(candidate), true
	}

	return domain.PeerID(uuid.NewString()), false
}

func (s *IdentityService) DeriveAddress(req domain.ConnectRequest) string {
	raw := netaddr.ClientIP(req.Header, req.RemoteAddr)
	address := netaddr.Canonicalize(raw, s.cfg.IPv6Localize)

	if s.cfg.DebugMode {
		s.logger.Debugw("derived peer address",
			"remote_addr", req.RemoteAddr,
			"x_forwarded_for", req.Header.Get(netaddr.HeaderXForwardedFor),
			"cf_connecting_ip", req.Header.Get(netaddr.HeaderCFConnectingIP),
			"client_ip", raw,
			"ipv6_localize", s.cfg.IPv6Localize,
			"is_private", netaddr.IsPrivate(raw),
			"address", address,
			"user_agent", utils.TruncateString(utils.SanitizeString(req.Header.Get("User-Agent")), 160),
		)
	}

	return address
}

// DeriveName computes the presentation names for a peer. The display name
// depends only on id.
func DeriveName(id domain.PeerID, userAgent string) domain.PeerName {
	ua := useragent.New(userAgent)

	osName := ua.OSInfo().Name
	browser, _ := ua.Browser()
	model := ua.Model()

	var parts []string
	if osName != "" {
		parts = append(parts, shortOSName(osName))
	}
	if model != "" {
		parts = append(parts, model)
	} else if browser != "" {
		parts = append(parts, browser)
	}

	deviceName := strings.Join(parts, " ")
	if deviceName == "" {
		deviceName = UnknownDevice
	}

	var deviceType string
	if ua.Mobile() {
		deviceType = "mobile"
	}

	return domain.PeerName{
		Model:       model,
		OS:          osName,
		Browser:     browser,
		Type:        deviceType,
		DeviceName:  deviceName,
		DisplayName: names.FromID(string(id)),
	}
}

func shortOSName(name string) string {
	if name == "Mac OS X" {
		name = "Mac OS"
	}
	return strings.Replace(name, "Mac OS", "Mac", 1)
}

func parseQuery(uri string) url.Values {
	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}
