package domain

import "time"

// PairKey is an outstanding pairing code mapped to its secret room.
type PairKey struct {
	Key        string
	RoomSecret string
	Creator    *Peer
	CreatedAt  time.Time
}
