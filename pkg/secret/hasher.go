package secret

import (
	"crypto/subtle"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/sha3"
)

const passwordLength = 128

// Hasher produces salted SHA3-512 digests keyed by a password that lives only
// for the lifetime of the process. Hashes issued before a restart never
// verify afterwards.
type Hasher struct {
	once     sync.Once
	password string
}

// NewHasher creates a hasher. The password is generated on first use.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash returns hex(SHA3-512(password || hex(SHA3-512(value)))).
func (h *Hasher) Hash(value string) string {
	h.once.Do(func() {
		h.password = RandomString(passwordLength)
	})

	inner := sha3.Sum512([]byte(value))

	outer := sha3.New512()
	outer.Write([]byte(h.password))
	outer.Write([]byte(hex.EncodeToString(inner[:])))
	return hex.EncodeToString(outer.Sum(nil))
}

// Verify reports whether hash was produced by Hash(value) on this hasher.
func (h *Hasher) Verify(value, hash string) bool {
	if hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(h.Hash(value)), []byte(hash)) == 1
}
