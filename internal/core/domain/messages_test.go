package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound_KnownTypes(t *testing.T) {
	tests := []struct {
		frame string
		want  InboundMessage
	}{
		{`{"type":"disconnect"}`, Disconnect{}},
		{`{"type":"pong"}`, Pong{}},
		{`{"type":"join-ip-room"}`, JoinIPRoom{}},
		{`{"type":"pair-device-initiate"}`, PairDeviceInitiate{}},
		{`{"type":"pair-device-join","roomKey":"012345"}`, PairDeviceJoin{RoomKey: "012345"}},
		{`{"type":"pair-device-join","roomKey":12345}`, PairDeviceJoin{}},
		{`{"type":"pair-device-cancel"}`, PairDeviceCancel{}},
		{`{"type":"regenerate-room-secret","roomSecret":"abc"}`, RegenerateRoomSecret{RoomSecret: "abc"}},
		{`{"type":"resend-peers"}`, ResendPeers{}},
		{`{"type":"room-secrets","roomSecrets":["a",1,"b"]}`, RoomSecrets{RoomSecrets: []string{"a", "b"}}},
		{`{"type":"room-secrets"}`, RoomSecrets{}},
		{`{"type":"room-secrets-deleted","roomSecrets":["x"]}`, RoomSecretsDeleted{RoomSecrets: []string{"x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInbound_Malformed(t *testing.T) {
	for _, frame := range []string{``, `not json`, `[1,2]`, `null`, `"signal"`, `{"type":"room-secrets","roomSecrets":"abc"}`} {
		_, err := DecodeInbound([]byte(frame))
		assert.ErrorIs(t, err, ErrMalformedMessage, frame)
	}
}

func TestDecodeInbound_Relay(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"offer","to":"peer-b","roomType":"secret","roomSecret":"s3cr3t","sdp":{"a":1}}`))
	require.NoError(t, err)

	relay, ok := msg.(Relay)
	require.True(t, ok)
	assert.Equal(t, "offer", relay.Type)
	assert.Equal(t, "peer-b", relay.To)
	assert.Equal(t, RoomTypeSecret, relay.RoomType)
	assert.Equal(t, "s3cr3t", relay.RoomSecret)

	// missing type still relays
	msg, err = DecodeInbound([]byte(`{"to":"x"}`))
	require.NoError(t, err)
	assert.IsType(t, Relay{}, msg)
}

func TestRelay_Room(t *testing.T) {
	sender := NewPeer("a", "203.0.113.5", nil)

	assert.Equal(t, IPRoom("203.0.113.5"), Relay{RoomType: RoomTypeIP, RoomSecret: "ignored"}.Room(sender))
	assert.Equal(t, SecretRoom("abc"), Relay{RoomType: RoomTypeSecret, RoomSecret: "abc"}.Room(sender))
	assert.Equal(t, SecretRoom("abc"), Relay{RoomSecret: "abc"}.Room(sender))
}

func TestRelay_Stamp(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"signal","to":"b","roomType":"ip","sdp":{"type":"offer","sdp":"v=0\r\n"},"n":1.50}`))
	require.NoError(t, err)

	out, err := msg.(Relay).Stamp("a", true)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &fields))

	assert.NotContains(t, fields, "to")
	assert.JSONEq(t, `{"id":"a","rtcSupported":true}`, string(fields["sender"]))
	assert.Equal(t, `{"type":"offer","sdp":"v=0\r\n"}`, string(fields["sdp"]))
	assert.Equal(t, `1.50`, string(fields["n"]))
	assert.Equal(t, `"signal"`, string(fields["type"]))
}

func TestOutboundMessages_Shape(t *testing.T) {
	data, err := json.Marshal(NewPeersMessage(nil, IPRoom("127.0.0.1")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"peers","peers":[],"roomType":"ip","roomSecret":""}`, string(data))

	data, err = json.Marshal(NewPeerLeftMessage("a", SecretRoom("s"), true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"peer-left","peerId":"a","roomType":"secret","roomSecret":"s","disconnect":true}`, string(data))

	peer := NewPeer("a", "127.0.0.1", nil)
	peer.IDHash = "h"
	peer.Name = PeerName{OS: "Linux", DeviceName: "Linux Firefox", DisplayName: "Blue Fox"}
	data, err = json.Marshal(NewDisplayNameMessage(peer))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"display-name","message":{"displayName":"Blue Fox","deviceName":"Linux Firefox","peerId":"a","peerIdHash":"h"}}`, string(data))

	data, err = json.Marshal(NewRTCConfigMessage(json.RawMessage(`{"iceServers":[]}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"rtc-config","config":{"iceServers":[]}}`, string(data))
}

func TestRelay_StampKeepsMarkup(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"signal","to":"b","note":"<a&b>"}`))
	require.NoError(t, err)

	out, err := msg.(Relay).Stamp("a", false)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"note":"<a&b>"`)
}
