package validation

import (
	"fmt"
	"net/url"
	"regexp"
)

const (
	MinRoomSecretLength = 64
	MaxRoomSecretLength = 256

	MinIPv6Localize = 1
	MaxIPv6Localize = 7
)

var (
	// PeerIDRegex matches the lowercase 8-4-4-4-12 hex form of a UUID
	PeerIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-([0-9a-f]{4}-){3}[0-9a-f]{12}$`)

	// PairKeyRegex matches a 6-digit pairing key
	PairKeyRegex = regexp.MustCompile(`^[0-9]{6}$`)

	// RoomSecretRegex matches 64 to 256 ASCII characters
	RoomSecretRegex = regexp.MustCompile(`^[\x00-\x7F]{64,256}$`)
)

// ValidatePeerID validates peer ID
func ValidatePeerID(peerID string) error {
	if peerID == "" {
		return fmt.Errorf("peer ID is required")
	}
	if !PeerIDRegex.MatchString(peerID) {
		return fmt.Errorf("invalid peer ID format")
	}
	return nil
}

// ValidateRoomSecret validates a secret room key sent by a client
func ValidateRoomSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("room secret is required")
	}
	if len(secret) < MinRoomSecretLength {
		return fmt.Errorf("room secret is too short (min %d characters)", MinRoomSecretLength)
	}
	if len(secret) > MaxRoomSecretLength {
		return fmt.Errorf("room secret is too long (max %d characters)", MaxRoomSecretLength)
	}
	if !RoomSecretRegex.MatchString(secret) {
		return fmt.Errorf("room secret contains non-ASCII characters")
	}
	return nil
}

// ValidatePairKey validates pairing key
func ValidatePairKey(key string) error {
	if key == "" {
		return fmt.Errorf("pair key is required")
	}
	if !PairKeyRegex.MatchString(key) {
		return fmt.Errorf("pair key must be 6 digits")
	}
	return nil
}

// ValidateIPv6Localize validates the number of kept IPv6 segments; 0 disables localization
func ValidateIPv6Localize(segments int) error {
	if segments == 0 {
		return nil
	}
	if segments < MinIPv6Localize || segments > MaxIPv6Localize {
		return fmt.Errorf("ipv6 localize must be an integer between %d and %d", MinIPv6Localize, MaxIPv6Localize)
	}
	return nil
}

// ValidateICEServerURL validates a STUN/TURN server URL
func ValidateICEServerURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("ICE server URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid ICE server URL format: %w", err)
	}
	switch u.Scheme {
	case "stun", "stuns", "turn", "turns":
	default:
		return fmt.Errorf("invalid ICE server URL scheme (must be stun, stuns, turn, or turns)")
	}
	if u.Opaque == "" && u.Host == "" {
		return fmt.Errorf("ICE server URL must have a host")
	}
	return nil
}
