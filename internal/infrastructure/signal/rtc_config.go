package signal

import (
	"encoding/json"
	"fmt"
	"os"

	"pairlink/pkg/config"

	"github.com/pion/webrtc/v3"
)

const defaultSTUNServer = "stun:stun.l.google.com:19302"

// rtcConfiguration is the subset of RTCConfiguration sent to browsers.
type rtcConfiguration struct {
	SDPSemantics string             `json:"sdpSemantics"`
	ICEServers   []webrtc.ICEServer `json:"iceServers"`
}

// LoadRTCConfig returns the rtc-config payload. A JSON file named by
// signal.rtc_config_file is sent verbatim; otherwise the payload is built
// from the webrtc section.
func LoadRTCConfig(cfg *config.Config) (json.RawMessage, error) {
	if path := cfg.Signal.RTCConfigFile; path != "" {
		return readRTCConfigFile(path)
	}
	return BuildRTCConfig(cfg.WebRTC.SDPSemantics, cfg.WebRTC.ICEServers)
}

func readRTCConfigFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rtc config %s: %w", path, err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("rtc config %s is not a JSON object: %w", path, err)
	}

	// compact so the payload fits in one frame without extra whitespace
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BuildRTCConfig encodes an RTCConfiguration from the given SDP semantics
// and ICE servers. No servers means the public STUN default.
func BuildRTCConfig(semantics string, servers []config.ICEServer) (json.RawMessage, error) {
	sdp, err := parseSDPSemantics(semantics)
	if err != nil {
		return nil, err
	}

	ice := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		server := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		ice = append(ice, server)
	}
	if len(ice) == 0 {
		ice = append(ice, webrtc.ICEServer{URLs: []string{defaultSTUNServer}})
	}

	return json.Marshal(rtcConfiguration{
		SDPSemantics: sdp.String(),
		ICEServers:   ice,
	})
}

func parseSDPSemantics(s string) (webrtc.SDPSemantics, error) {
	switch s {
	case "", "unified-plan":
		return webrtc.SDPSemanticsUnifiedPlan, nil
	case "plan-b":
		return webrtc.SDPSemanticsPlanB, nil
	case "unified-plan-with-fallback":
		return webrtc.SDPSemanticsUnifiedPlanWithFallback, nil
	default:
		return 0, fmt.Errorf("unsupported sdp semantics %q", s)
	}
}
