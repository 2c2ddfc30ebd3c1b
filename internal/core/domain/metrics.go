package domain

import "time"

// RegistryStats is a point-in-time snapshot of the signaling tables.
type RegistryStats struct {
	Rooms       int       `json:"rooms"`
	IPRooms     int       `json:"ip_rooms"`
	SecretRooms int       `json:"secret_rooms"`
	Peers       int       `json:"peers"`
	PairKeys    int       `json:"pair_keys"`
	Timestamp   time.Time `json:"timestamp"`
}

// Disconnect reasons.
const (
	DisconnectClient    = "client"
	DisconnectTimeout   = "timeout"
	DisconnectTransport = "transport_closed"
	DisconnectShutdown  = "shutdown"
)
