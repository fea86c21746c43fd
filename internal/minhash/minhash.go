// Package minhash reduces token sets to fixed-size signatures whose
// positional agreement estimates Jaccard similarity.
package minhash

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// mersennePrime is the modulus for the universal hash family. Keeping
// inputs below 2^31 lets a*x+b stay within uint64 without overflow.
const mersennePrime uint64 = 2147483647 // 2^31 - 1

// sentinel is the signature value reserved for empty token sets. It is
// outside the hash family's range, so a sentinel position can never
// equal a real hash value.
const sentinel uint64 = math.MaxUint64

// Signature is a fixed-length MinHash signature: one minimum per hash
// function. Two signatures are comparable only if they were produced by
// the same Generator (same k, same seed).
type Signature []uint64

// IsEmpty reports whether the signature is the empty-set sentinel.
func (s Signature) IsEmpty() bool {
	return len(s) > 0 && s[0] == sentinel
}

// Generator holds a fixed family of k universal hash functions
// h_i(x) = (a_i*x + b_i) mod p. The family is drawn once from a seeded
// source, so every document in a run (and every rerun with the same
// seed) sees identical hash functions. Safe for concurrent use.
type Generator struct {
	k int
	a []uint64
	b []uint64
}

// NewGenerator creates a Generator with k hash functions drawn from seed.
func NewGenerator(k int, seed int64) *Generator {
	rng := rand.New(rand.NewSource(seed))
	g := &Generator{
		k: k,
		a: make([]uint64, k),
		b: make([]uint64, k),
	}
	for i := 0; i < k; i++ {
		// a must be non-zero or h_i collapses to a constant
		g.a[i] = uint64(rng.Int63n(int64(mersennePrime)-1)) + 1
		g.b[i] = uint64(rng.Int63n(int64(mersennePrime)))
	}
	return g
}

// K returns the signature length.
func (g *Generator) K() int {
	return g.k
}

// Sign computes the MinHash signature of a token set: signature[i] is
// the minimum of h_i over all tokens. An empty set produces the
// sentinel signature, which never matches any other signature, so
// documents with no tokens are never merged with anything.
func (g *Generator) Sign(tokens map[string]struct{}) Signature {
	sig := make(Signature, g.k)
	if len(tokens) == 0 {
		for i := range sig {
			sig[i] = sentinel
		}
		return sig
	}

	for i := range sig {
		sig[i] = mersennePrime // max possible hash value
	}
	for token := range tokens {
		x := hashToken(token)
		for i := 0; i < g.k; i++ {
			h := (g.a[i]*x + g.b[i]) % mersennePrime
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// hashToken reduces a token string into the hash family's input domain.
func hashToken(token string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	return h.Sum64() % mersennePrime
}

// Similarity estimates Jaccard similarity as the fraction of signature
// positions that agree. Sentinel signatures never match: similarity
// involving an empty document is 0, including empty-vs-empty.
func Similarity(x, y Signature) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0.0
	}
	if x.IsEmpty() || y.IsEmpty() {
		return 0.0
	}
	matches := 0
	for i := range x {
		if x[i] == y[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(x))
}
