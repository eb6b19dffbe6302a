package brackets

import (
	"math/rand/v2"
	"time"
)

// Shuffler is the random source used to seed round 1. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// NewRandomShuffler returns a time-seeded PCG source for production use.
func NewRandomShuffler() Shuffler {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// Shuffle permutes items in place. A nil rng leaves the order untouched.
func Shuffle[T any](rng Shuffler, items []T) {
	if rng == nil {
		return
	}
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
