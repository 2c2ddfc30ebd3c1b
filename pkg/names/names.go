// Package names derives friendly two-word display names for peers.
package names

import (
	"math/rand/v2"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Separator joins the color and the animal.
const Separator = " "

// FromID returns the display name for a peer id. The same id always yields
// the same name.
func FromID(id string) string {
	return Generate(xxhash.Sum64String(id))
}

// Generate picks a color and an animal with a PRNG seeded by seed.
func Generate(seed uint64) string {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	color := colors[rng.IntN(len(colors))]
	animal := animals[rng.IntN(len(animals))]
	return capitalize(color) + Separator + capitalize(animal)
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}
