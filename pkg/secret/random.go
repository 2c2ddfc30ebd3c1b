package secret

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
)

// PairKeyLength is the number of digits in a pairing key.
const PairKeyLength = 6

var pairKeySpace = big.NewInt(1_000_000)

// RandomString returns a string of the given length drawn from
// [-0-9A-Za-z] using crypto/rand.
//
// Each random 16-bit value is reduced modulo 128 and rejected unless it
// falls on an allowed character, so every accepted character is equally
// likely.
func RandomString(length int) string {
	if length <= 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(length)

	buf := make([]byte, 2*length)
	for sb.Len() < length {
		// crypto/rand.Read never returns an error
		_, _ = rand.Read(buf)
		for i := 0; i+1 < len(buf) && sb.Len() < length; i += 2 {
			c := byte(binary.BigEndian.Uint16(buf[i:]) % 128)
			if isAllowed(c) {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

func isAllowed(c byte) bool {
	return c == '-' ||
		(c >= '0' && c <= '9') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z')
}

// RandomPairKey returns a uniformly distributed 6-digit numeric code.
// Leading zeros are kept.
func RandomPairKey() (string, error) {
	n, err := rand.Int(rand.Reader, pairKeySpace)
	if err != nil {
		return "", fmt.Errorf("failed to draw pair key: %w", err)
	}
	return fmt.Sprintf("%0*d", PairKeyLength, n.Int64()), nil
}
