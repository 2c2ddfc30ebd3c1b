package domain

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"
)

type PeerID string

// Transport delivers encoded frames to one connected client.
type Transport interface {
	// Send enqueues a frame without blocking and reports whether it was accepted.
	Send(frame []byte) bool
	Close() error
}

type PeerName struct {
	Model       string `json:"model,omitempty"`
	OS          string `json:"os,omitempty"`
	Browser     string `json:"browser,omitempty"`
	Type        string `json:"type,omitempty"`
	DeviceName  string `json:"deviceName"`
	DisplayName string `json:"displayName"`
}

// PeerInfo is the public view of a peer shared with other room members.
type PeerInfo struct {
	ID           PeerID   `json:"id"`
	Name         PeerName `json:"name"`
	RTCSupported bool     `json:"rtcSupported"`
}

// ConnectRequest carries the connection metadata identity is derived from.
type ConnectRequest struct {
	URI        string
	Header     http.Header
	RemoteAddr string
}

// Peer is one live connection. Identity fields are fixed at creation;
// room, pairing and liveness state is guarded by mu.
type Peer struct {
	ID           PeerID
	IDHash       string
	Address      string
	RTCSupported bool
	Name         PeerName
	ConnectedAt  time.Time

	transport Transport

	mu           sync.Mutex
	roomSecrets  []string
	pairKey      string
	pairAttempts int
	lastBeat     time.Time
	closed       bool
}

func NewPeer(id PeerID, address string, transport Transport) *Peer {
	return &Peer{
		ID:          id,
		Address:     address,
		ConnectedAt: time.Now(),
		transport:   transport,
	}
}

func (p *Peer) Info() PeerInfo {
	return PeerInfo{
		ID:           p.ID,
		Name:         p.Name,
		RTCSupported: p.RTCSupported,
	}
}

func (p *Peer) AddressRoom() RoomKey {
	return IPRoom(p.Address)
}

// Send encodes msg as JSON and enqueues it on the transport.
func (p *Peer) Send(msg any) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return p.SendFrame(frame)
}

func (p *Peer) SendFrame(frame []byte) error {
	if p.IsClosed() {
		return ErrPeerClosed
	}
	if p.transport == nil || !p.transport.Send(frame) {
		return ErrSendQueueFull
	}
	return nil
}

func (p *Peer) Close() error {
	if p.transport == nil {
		return nil
	}
	return p.transport.Close()
}

// AddRoomSecret records a secret room membership. It reports false if
// the secret was already present.
func (p *Peer) AddRoomSecret(secret string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if slices.Contains(p.roomSecrets, secret) {
		return false
	}
	p.roomSecrets = append(p.roomSecrets, secret)
	return true
}

func (p *Peer) RemoveRoomSecret(secret string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := slices.Index(p.roomSecrets, secret)
	if i < 0 {
		return false
	}
	p.roomSecrets = slices.Delete(p.roomSecrets, i, i+1)
	return true
}

func (p *Peer) HasRoomSecret(secret string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Contains(p.roomSecrets, secret)
}

// RoomSecrets returns a copy of the peer's secret room memberships.
func (p *Peer) RoomSecrets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.roomSecrets)
}

func (p *Peer) PairKey() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pairKey
}

// SetPairKey stores key and returns the previously held one.
func (p *Peer) SetPairKey(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.pairKey
	p.pairKey = key
	return old
}

// ClearPairKey forgets key if it is the one the peer currently holds.
func (p *Peer) ClearPairKey(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if key == "" || p.pairKey != key {
		return false
	}
	p.pairKey = ""
	return true
}

// TryPairAttempt counts a redemption attempt unless limit attempts are
// already in flight.
func (p *Peer) TryPairAttempt(limit int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pairAttempts >= limit {
		return false
	}
	p.pairAttempts++
	return true
}

func (p *Peer) ReleasePairAttempt() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pairAttempts > 0 {
		p.pairAttempts--
	}
}

func (p *Peer) PairAttempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pairAttempts
}

func (p *Peer) Beat(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastBeat = at
}

func (p *Peer) LastBeat() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastBeat
}

// MarkClosed flags the peer as torn down. Only the first call returns true.
func (p *Peer) MarkClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.closed = true
	return true
}

func (p *Peer) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
