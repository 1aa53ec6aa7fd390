package pointcloud

import (
	"math/rand"
	"sync"

	"github.com/golang/geo/r3"
)

// rng is the backend's single, process-wide PRNG for random subsampling (§5:
// "The PRNG for random subsampling is single-instance, not thread-safe, and
// used only from the backend thread"). It is seeded once, lazily, the first
// time it is needed: a Subsample call with a rate that actually samples, or an
// AdaptiveBaseResolution call on a cloud of more than 256 points. This gives
// the "deterministic PRNG seeded once per process" of C2 step 4.
var (
	rngOnce sync.Once
	rng     *rand.Rand
	rngSeed int64 = 42
)

// SeedSubsamplingRNG fixes the seed used by the lazily-initialized process RNG.
// Must be called before the RNG's first use (see rng above) to take effect; intended for
// tests that need reproducible subsampling.
func SeedSubsamplingRNG(seed int64) {
	rngSeed = seed
}

func sharedRNG() *rand.Rand {
	rngOnce.Do(func() {
		rng = rand.New(rand.NewSource(rngSeed))
	})
	return rng
}

// Subsample returns a derivative cloud containing a random subset of c's
// points, approximately a `rate` fraction of the total. A rate >= 0.99 is
// treated as identity (no copy, no sampling) per C2 step 4: the result is the
// same underlying point slice as c, so the two clouds are pointer-equal in
// semantics.
func Subsample(c *Cloud, rate float64) *Cloud {
	if rate >= 0.99 {
		return NewFromPoints(c.points)
	}
	if rate <= 0 {
		return New()
	}
	r := sharedRNG()
	kept := make([]r3.Vector, 0, int(float64(len(c.points))*rate)+1)
	for _, p := range c.points {
		if r.Float64() < rate {
			kept = append(kept, p)
		}
	}
	return NewFromPoints(kept)
}
