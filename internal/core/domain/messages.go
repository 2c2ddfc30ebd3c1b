package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"pairlink/pkg/optimize"
)

// Inbound message types.
const (
	TypeDisconnect           = "disconnect"
	TypePong                 = "pong"
	TypeJoinIPRoom           = "join-ip-room"
	TypeRoomSecrets          = "room-secrets"
	TypeRoomSecretsDeleted   = "room-secrets-deleted"
	TypePairDeviceInitiate   = "pair-device-initiate"
	TypePairDeviceJoin       = "pair-device-join"
	TypePairDeviceCancel     = "pair-device-cancel"
	TypeRegenerateRoomSecret = "regenerate-room-secret"
	TypeResendPeers          = "resend-peers"
	TypeSignal               = "signal"
)

// Outbound message types.
const (
	TypeRTCConfig                  = "rtc-config"
	TypeDisplayName                = "display-name"
	TypePing                       = "ping"
	TypePeers                      = "peers"
	TypePeerJoined                 = "peer-joined"
	TypePeerLeft                   = "peer-left"
	TypeSecretRoomDeleted          = "secret-room-deleted"
	TypePairDeviceInitiated        = "pair-device-initiated"
	TypePairDeviceJoined           = "pair-device-joined"
	TypePairDeviceCanceled         = "pair-device-canceled"
	TypePairDeviceJoinKeyInvalid   = "pair-device-join-key-invalid"
	TypePairDeviceJoinKeyRateLimit = "pair-device-join-key-rate-limit"
	TypeRoomSecretRegenerated      = "room-secret-regenerated"
)

// InboundMessage is one decoded client frame. The set of implementations
// is closed; handlers switch over the concrete types.
type InboundMessage interface {
	inbound()
}

type (
	Disconnect         struct{}
	Pong               struct{}
	JoinIPRoom         struct{}
	PairDeviceInitiate struct{}
	PairDeviceCancel   struct{}
	ResendPeers        struct{}

	RoomSecrets struct {
		RoomSecrets []string
	}

	RoomSecretsDeleted struct {
		RoomSecrets []string
	}

	PairDeviceJoin struct {
		RoomKey string
	}

	RegenerateRoomSecret struct {
		RoomSecret string
	}

	// Relay is any frame forwarded to another peer. Fields holds the
	// original JSON members so they can be re-emitted untouched.
	Relay struct {
		Type       string
		To         string
		RoomType   RoomType
		RoomSecret string
		Fields     map[string]json.RawMessage
	}
)

func (Disconnect) inbound()           {}
func (Pong) inbound()                 {}
func (JoinIPRoom) inbound()           {}
func (RoomSecrets) inbound()          {}
func (RoomSecretsDeleted) inbound()   {}
func (PairDeviceInitiate) inbound()   {}
func (PairDeviceJoin) inbound()       {}
func (PairDeviceCancel) inbound()     {}
func (RegenerateRoomSecret) inbound() {}
func (ResendPeers) inbound()          {}
func (Relay) inbound()                {}

// DecodeInbound parses a client frame. Frames that are not a JSON object
// yield ErrMalformedMessage; unknown types decode as Relay.
func DecodeInbound(frame []byte) (InboundMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if fields == nil {
		return nil, ErrMalformedMessage
	}

	msgType := stringField(fields, "type")

	switch msgType {
	case TypeDisconnect:
		return Disconnect{}, nil
	case TypePong:
		return Pong{}, nil
	case TypeJoinIPRoom:
		return JoinIPRoom{}, nil
	case TypeRoomSecrets:
		secrets, err := stringList(fields, "roomSecrets")
		if err != nil {
			return nil, err
		}
		return RoomSecrets{RoomSecrets: secrets}, nil
	case TypeRoomSecretsDeleted:
		secrets, err := stringList(fields, "roomSecrets")
		if err != nil {
			return nil, err
		}
		return RoomSecretsDeleted{RoomSecrets: secrets}, nil
	case TypePairDeviceInitiate:
		return PairDeviceInitiate{}, nil
	case TypePairDeviceJoin:
		return PairDeviceJoin{RoomKey: stringField(fields, "roomKey")}, nil
	case TypePairDeviceCancel:
		return PairDeviceCancel{}, nil
	case TypeRegenerateRoomSecret:
		return RegenerateRoomSecret{RoomSecret: stringField(fields, "roomSecret")}, nil
	case TypeResendPeers:
		return ResendPeers{}, nil
	default:
		return Relay{
			Type:       msgType,
			To:         stringField(fields, "to"),
			RoomType:   RoomType(stringField(fields, "roomType")),
			RoomSecret: stringField(fields, "roomSecret"),
			Fields:     fields,
		}, nil
	}
}

// Room resolves the room a relay targets for the given sender.
func (m Relay) Room(sender *Peer) RoomKey {
	if m.RoomType == RoomTypeIP {
		return sender.AddressRoom()
	}
	return SecretRoom(m.RoomSecret)
}

var stampBuffers = optimize.NewBufferPool(512, 64*1024)

// Stamp re-encodes the relay without its "to" member and with the
// sender's identity attached. All other members keep their raw bytes.
func (m Relay) Stamp(sender PeerID, rtcSupported bool) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Fields)+1)
	for k, v := range m.Fields {
		if k == "to" {
			continue
		}
		out[k] = v
	}

	stamp, err := json.Marshal(Sender{ID: sender, RTCSupported: rtcSupported})
	if err != nil {
		return nil, err
	}
	out["sender"] = stamp

	buf := stampBuffers.Get()
	defer stampBuffers.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}

	frame := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return bytes.Clone(frame), nil
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// stringList decodes an array member, keeping only its string elements.
// A missing or null member yields nil.
func stringList(fields map[string]json.RawMessage, name string) ([]string, error) {
	raw, ok := fields[name]
	if !ok {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, name, err)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

type Sender struct {
	ID           PeerID `json:"id"`
	RTCSupported bool   `json:"rtcSupported"`
}

type RTCConfigMessage struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

type DisplayName struct {
	DisplayName string `json:"displayName"`
	DeviceName  string `json:"deviceName"`
	PeerID      PeerID `json:"peerId"`
	PeerIDHash  string `json:"peerIdHash"`
}

type DisplayNameMessage struct {
	Type    string      `json:"type"`
	Message DisplayName `json:"message"`
}

// SignalMessage is an outbound message that carries only its type.
type SignalMessage struct {
	Type string `json:"type"`
}

type PeersMessage struct {
	Type       string     `json:"type"`
	Peers      []PeerInfo `json:"peers"`
	RoomType   RoomType   `json:"roomType"`
	RoomSecret string     `json:"roomSecret"`
}

type PeerJoinedMessage struct {
	Type       string   `json:"type"`
	Peer       PeerInfo `json:"peer"`
	RoomType   RoomType `json:"roomType"`
	RoomSecret string   `json:"roomSecret"`
}

type PeerLeftMessage struct {
	Type       string   `json:"type"`
	PeerID     PeerID   `json:"peerId"`
	RoomType   RoomType `json:"roomType"`
	RoomSecret string   `json:"roomSecret"`
	Disconnect bool     `json:"disconnect"`
}

type SecretRoomDeletedMessage struct {
	Type       string `json:"type"`
	RoomSecret string `json:"roomSecret"`
}

type PairDeviceInitiatedMessage struct {
	Type       string `json:"type"`
	RoomSecret string `json:"roomSecret"`
	RoomKey    string `json:"roomKey"`
}

type PairDeviceJoinedMessage struct {
	Type       string `json:"type"`
	RoomSecret string `json:"roomSecret"`
	PeerID     PeerID `json:"peerId"`
}

type PairDeviceCanceledMessage struct {
	Type    string `json:"type"`
	RoomKey string `json:"roomKey"`
}

type RoomSecretRegeneratedMessage struct {
	Type          string `json:"type"`
	OldRoomSecret string `json:"oldRoomSecret"`
	NewRoomSecret string `json:"newRoomSecret"`
}

func NewRTCConfigMessage(config json.RawMessage) RTCConfigMessage {
	return RTCConfigMessage{Type: TypeRTCConfig, Config: config}
}

func NewDisplayNameMessage(peer *Peer) DisplayNameMessage {
	return DisplayNameMessage{
		Type: TypeDisplayName,
		Message: DisplayName{
			DisplayName: peer.Name.DisplayName,
			DeviceName:  peer.Name.DeviceName,
			PeerID:      peer.ID,
			PeerIDHash:  peer.IDHash,
		},
	}
}

func NewSignalMessage(msgType string) SignalMessage {
	return SignalMessage{Type: msgType}
}

func NewPeersMessage(peers []PeerInfo, key RoomKey) PeersMessage {
	if peers == nil {
		peers = []PeerInfo{}
	}
	return PeersMessage{Type: TypePeers, Peers: peers, RoomType: key.Type, RoomSecret: key.Secret()}
}

func NewPeerJoinedMessage(peer PeerInfo, key RoomKey) PeerJoinedMessage {
	return PeerJoinedMessage{Type: TypePeerJoined, Peer: peer, RoomType: key.Type, RoomSecret: key.Secret()}
}

func NewPeerLeftMessage(id PeerID, key RoomKey, disconnect bool) PeerLeftMessage {
	return PeerLeftMessage{
		Type:       TypePeerLeft,
		PeerID:     id,
		RoomType:   key.Type,
		RoomSecret: key.Secret(),
		Disconnect: disconnect,
	}
}

func NewSecretRoomDeletedMessage(secret string) SecretRoomDeletedMessage {
	return SecretRoomDeletedMessage{Type: TypeSecretRoomDeleted, RoomSecret: secret}
}

func NewPairDeviceInitiatedMessage(secret, key string) PairDeviceInitiatedMessage {
	return PairDeviceInitiatedMessage{Type: TypePairDeviceInitiated, RoomSecret: secret, RoomKey: key}
}

func NewPairDeviceJoinedMessage(secret string, peer PeerID) PairDeviceJoinedMessage {
	return PairDeviceJoinedMessage{Type: TypePairDeviceJoined, RoomSecret: secret, PeerID: peer}
}

func NewPairDeviceCanceledMessage(key string) PairDeviceCanceledMessage {
	return PairDeviceCanceledMessage{Type: TypePairDeviceCanceled, RoomKey: key}
}

func NewRoomSecretRegeneratedMessage(oldSecret, newSecret string) RoomSecretRegeneratedMessage {
	return RoomSecretRegeneratedMessage{
		Type:          TypeRoomSecretRegenerated,
		OldRoomSecret: oldSecret,
		NewRoomSecret: newSecret,
	}
}
