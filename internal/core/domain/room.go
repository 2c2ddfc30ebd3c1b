package domain

type RoomType string

const (
	RoomTypeIP     RoomType = "ip"
	RoomTypeSecret RoomType = "secret"
)

// RoomKey identifies a room. Address rooms and secret rooms live in
// separate namespaces even if an address and a secret share a spelling.
type RoomKey struct {
	Type RoomType
	ID   string
}

func IPRoom(address string) RoomKey {
	return RoomKey{Type: RoomTypeIP, ID: address}
}

func SecretRoom(secret string) RoomKey {
	return RoomKey{Type: RoomTypeSecret, ID: secret}
}

// Secret is the value carried in the roomSecret field of room messages.
// Address rooms report an empty secret.
func (k RoomKey) Secret() string {
	if k.Type == RoomTypeSecret {
		return k.ID
	}
	return ""
}

func (k RoomKey) String() string {
	return string(k.Type) + ":" + k.ID
}
