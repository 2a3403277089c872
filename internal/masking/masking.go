// Package masking implements the corruption scheme for masked-symbol
// pretraining: a Bernoulli position mask plus the three-way
// mask-token / random-token / keep policy applied to the masked positions.
//
// Every stochastic call site takes an explicit *rand.Rand so tests can inject
// a seeded generator.
package masking

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// RandomMask draws an independent Bernoulli(p1) variable per position and
// returns a 0/1 vector of the given length.
func RandomMask(rng *rand.Rand, length int, p1 float64) []int64 {
	mask := make([]int64, length)
	for i := range mask {
		if rng.Float64() < p1 {
			mask[i] = 1
		}
	}

	return mask
}

// Apply returns a corrupted copy of sequence. Among positions where mask is 1,
// a shuffled index set is partitioned into three slices: the first
// floor(n*p2) positions are overwritten with maskTokenID, the next
// floor(n*p3) with an independently drawn uniform token id in [0, vocabSize),
// and the remainder is kept unchanged.
//
// Callers owning a sequence-terminator convention must clear the final mask
// entry before calling Apply; the terminator must survive intact.
func Apply(rng *rand.Rand, sequence []int64, vocabSize int, maskTokenID int64, mask []int64, p2, p3 float64) ([]int64, error) {
	if len(mask) != len(sequence) {
		return nil, fmt.Errorf("masking: mask length %d does not match sequence length %d", len(mask), len(sequence))
	}

	if vocabSize < 1 {
		return nil, fmt.Errorf("masking: vocab size must be >= 1, got %d", vocabSize)
	}

	if p2 < 0 || p3 < 0 || p2+p3 > 1 {
		return nil, fmt.Errorf("masking: fractions must be non-negative and sum to at most 1, got %v and %v", p2, p3)
	}

	out := append([]int64(nil), sequence...)

	var masked []int
	for i, m := range mask {
		if m == 1 {
			masked = append(masked, i)
		}
	}

	rng.Shuffle(len(masked), func(i, j int) {
		masked[i], masked[j] = masked[j], masked[i]
	})

	n := len(masked)
	numMask := int(math.Floor(float64(n) * p2))
	numRand := int(math.Floor(float64(n) * p3))

	for _, idx := range masked[:numMask] {
		out[idx] = maskTokenID
	}

	for _, idx := range masked[numMask : numMask+numRand] {
		out[idx] = int64(rng.IntN(vocabSize))
	}

	// Remaining masked positions keep their original symbol.

	return out, nil
}
