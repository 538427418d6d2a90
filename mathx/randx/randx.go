package randx

import (
	"math/rand/v2"

	"github.com/sw965/omw/mathx/randx"
)

// NewRand returns a PCG generator seeded from seed. seed == 0 draws the seed from the global source.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return randx.NewPCGFromGlobalSeed()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
