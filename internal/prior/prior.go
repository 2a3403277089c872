// Package prior computes beta-binomial alignment priors used to seed a soft
// alignment mechanism when no explicit phoneme durations are available.
package prior

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/combin"
)

// DefaultCacheSize bounds the shape-keyed memo.
const DefaultCacheSize = 256

// BetaBinomial returns an M x P matrix where row i-1 (for frame i in [1, M])
// holds the beta-binomial pmf over phoneme positions [0, P) with shape
// parameters a = scale*i and b = scale*(M+1-i). The trial count is P-1 so the
// support covers exactly the P phoneme positions and each row sums to 1.
func BetaBinomial(phonemeCount, melCount int, scale float64) ([][]float32, error) {
	if phonemeCount < 1 {
		return nil, fmt.Errorf("prior: phoneme count must be >= 1, got %d", phonemeCount)
	}

	if melCount < 1 {
		return nil, fmt.Errorf("prior: mel count must be >= 1, got %d", melCount)
	}

	if scale <= 0 {
		return nil, fmt.Errorf("prior: scale must be > 0, got %v", scale)
	}

	n := float64(phonemeCount - 1)
	out := make([][]float32, melCount)

	for i := 1; i <= melCount; i++ {
		a := scale * float64(i)
		b := scale * float64(melCount+1-i)
		lbetaAB := mathext.Lbeta(a, b)

		row := make([]float32, phonemeCount)
		for k := 0; k < phonemeCount; k++ {
			row[k] = float32(betaBinomialPMF(n, float64(k), a, b, lbetaAB))
		}

		out[i-1] = row
	}

	return out, nil
}

// betaBinomialPMF evaluates the pmf in log space:
// C(n, k) * B(k+a, n-k+b) / B(a, b).
func betaBinomialPMF(n, k, a, b, lbetaAB float64) float64 {
	if n == 0 {
		return 1
	}

	logPMF := combin.LogGeneralizedBinomial(n, k) + mathext.Lbeta(k+a, n-k+b) - lbetaAB

	return math.Exp(logPMF)
}

type cacheKey struct {
	phonemes int
	frames   int
	scale    float64
}

// Cache memoizes BetaBinomial results behind a bounded LRU keyed by
// (phoneme count, frame count, scale). The matrix is a pure function of its
// key, so entries are shared across callers of equal shape: callers must not
// mutate a returned matrix in place.
type Cache struct {
	lru *lru.Cache[cacheKey, [][]float32]
}

// NewCache creates a Cache holding up to size entries. Size must be positive;
// use DefaultCacheSize when unsure.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[cacheKey, [][]float32](size)
	if err != nil {
		return nil, fmt.Errorf("prior: create cache: %w", err)
	}

	return &Cache{lru: c}, nil
}

// Get returns the memoized prior matrix for the given shape, computing and
// inserting it on first use.
func (c *Cache) Get(phonemeCount, melCount int, scale float64) ([][]float32, error) {
	key := cacheKey{phonemes: phonemeCount, frames: melCount, scale: scale}

	if m, ok := c.lru.Get(key); ok {
		return m, nil
	}

	m, err := BetaBinomial(phonemeCount, melCount, scale)
	if err != nil {
		return nil, err
	}

	c.lru.Add(key, m)

	return m, nil
}

// Len reports the number of memoized matrices currently held.
func (c *Cache) Len() int {
	return c.lru.Len()
}
