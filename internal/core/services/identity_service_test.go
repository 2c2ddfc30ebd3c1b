package services

import (
	"net/http"
	"testing"

	"pairlink/internal/core/domain"
	"pairlink/pkg/secret"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestIdentityService_DeriveIdentity(t *testing.T) {
	hasher := secret.NewHasher()
	svc := NewIdentityService(hasher, IdentityConfig{}, zaptest.NewLogger(t).Sugar())

	const id = "5f0c4a0e-6b7d-4e1f-9a2b-3c4d5e6f7a8b"
	other := secret.NewHasher()

	tests := []struct {
		name   string
		uri    string
		reused bool
	}{
		{"matching hash", "/server?peer_id=" + id + "&peer_id_hash=" + hasher.Hash(id), true},
		{"no params", "/server", false},
		{"missing hash", "/server?peer_id=" + id, false},
		{"wrong hash", "/server?peer_id=" + id + "&peer_id_hash=deadbeef", false},
		{"hash from another process", "/server?peer_id=" + id + "&peer_id_hash=" + other.Hash(id), false},
		{"uppercase id", "/server?peer_id=5F0C4A0E-6B7D-4E1F-9A2B-3C4D5E6F7A8B&peer_id_hash=" + hasher.Hash("5F0C4A0E-6B7D-4E1F-9A2B-3C4D5E6F7A8B"), false},
		{"not a uuid", "/server?peer_id=abc&peer_id_hash=" + hasher.Hash("abc"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reused := svc.DeriveIdentity(domain.ConnectRequest{URI: tt.uri})
			assert.Equal(t, tt.reused, reused)
			if tt.reused {
				assert.Equal(t, domain.PeerID(id), got)
			} else {
				assert.NotEqual(t, domain.PeerID(id), got)
				assert.Regexp(t, `^[0-9a-f]{8}-([0-9a-f]{4}-){3}[0-9a-f]{12}$`, string(got))
			}
		})
	}
}

func TestIdentityService_DeriveAddress(t *testing.T) {
	tests := []struct {
		name     string
		header   map[string]string
		remote   string
		localize int
		want     string
	}{
		{"cf header wins", map[string]string{"CF-Connecting-IP": "203.0.113.5", "X-Forwarded-For": "198.51.100.1"}, "10.0.0.1:1", 0, "203.0.113.5"},
		{"forwarded list", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "10.0.0.1:1", 0, "198.51.100.1"},
		{"remote addr", nil, "203.0.113.9:5555", 0, "203.0.113.9"},
		{"mapped ipv4", nil, "[::ffff:203.0.113.9]:5555", 0, "203.0.113.9"},
		{"private collapses", nil, "192.168.1.20:5555", 0, "127.0.0.1"},
		{"ipv6 loopback", nil, "[::1]:5555", 0, "127.0.0.1"},
		{"ipv6 localized", map[string]string{"X-Forwarded-For": "2001:db8:1:2:3:4:5:6"}, "", 2, "2001:db8"},
		{"ipv6 ula not localized", map[string]string{"X-Forwarded-For": "fd12:3456::1"}, "", 2, "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewIdentityService(secret.NewHasher(), IdentityConfig{IPv6Localize: tt.localize, DebugMode: true}, zaptest.NewLogger(t).Sugar())
			h := http.Header{}
			for k, v := range tt.header {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, svc.DeriveAddress(domain.ConnectRequest{Header: h, RemoteAddr: tt.remote}))
		})
	}
}

func TestDeriveName(t *testing.T) {
	name := DeriveName("peer-1", "")
	assert.Equal(t, UnknownDevice, name.DeviceName)
	assert.NotEmpty(t, name.DisplayName)
	assert.Equal(t, name.DisplayName, DeriveName("peer-1", "curl/8.0").DisplayName)

	ff := DeriveName("peer-1", "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0")
	assert.Equal(t, "Firefox", ff.Browser)
	assert.Contains(t, ff.DeviceName, "Firefox")
	assert.Empty(t, ff.Type)
}

func TestShortOSName(t *testing.T) {
	assert.Equal(t, "Mac", shortOSName("Mac OS X"))
	assert.Equal(t, "Mac", shortOSName("Mac OS"))
	assert.Equal(t, "Linux", shortOSName("Linux"))
}

func TestIdentityService_NewPeer(t *testing.T) {
	hasher := secret.NewHasher()
	svc := NewIdentityService(hasher, IdentityConfig{}, zaptest.NewLogger(t).Sugar())

	req := connectRequest("203.0.113.5")
	peer, reused := svc.NewPeer(req, &fakeTransport{})

	assert.False(t, reused)
	assert.True(t, peer.RTCSupported)
	assert.Equal(t, "203.0.113.5", peer.Address)
	assert.True(t, hasher.Verify(string(peer.ID), peer.IDHash))

	req.URI = "/server/fallback"
	peer, _ = svc.NewPeer(req, &fakeTransport{})
	assert.False(t, peer.RTCSupported)
}
