package similarity

import (
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
)

const defaultPermutations = 128

// Index is a MinHash shortlist of previously seen documents, keyed by
// submission id. It trades recall for throughput on large peer sets: Query
// returns the ids whose estimated Jaccard similarity clears the cutoff, and
// only those go through the exact cosine comparison.
type Index struct {
	mu         sync.RWMutex
	numPerm    int
	seedsA     []uint64
	seedsB     []uint64
	signatures map[uint][]uint64
}

// NewIndex builds an index with the given number of hash permutations.
func NewIndex(numPerm int) *Index {
	if numPerm <= 0 {
		numPerm = defaultPermutations
	}

	// Fixed seed keeps signatures reproducible across process restarts.
	rng := rand.New(rand.NewSource(42))
	seedsA := make([]uint64, numPerm)
	seedsB := make([]uint64, numPerm)
	for i := range seedsA {
		seedsA[i] = rng.Uint64() | 1
		seedsB[i] = rng.Uint64()
	}

	return &Index{
		numPerm:    numPerm,
		seedsA:     seedsA,
		seedsB:     seedsB,
		signatures: make(map[uint][]uint64),
	}
}

// Add registers the preprocessed document text under the submission id.
// Re-adding an id overwrites its signature.
func (x *Index) Add(id uint, text string) {
	signature := x.signature(text)

	x.mu.Lock()
	x.signatures[id] = signature
	x.mu.Unlock()
}

// Query estimates the Jaccard similarity between the text and every indexed
// document, returning the ids at or above the cutoff.
func (x *Index) Query(text string, cutoff float64) map[uint]struct{} {
	needle := x.signature(text)

	x.mu.RLock()
	defer x.mu.RUnlock()

	matches := make(map[uint]struct{})
	for id, signature := range x.signatures {
		equal := 0
		for i := range needle {
			if needle[i] == signature[i] {
				equal++
			}
		}
		if float64(equal)/float64(x.numPerm) >= cutoff {
			matches[id] = struct{}{}
		}
	}

	return matches
}

func (x *Index) signature(text string) []uint64 {
	signature := make([]uint64, x.numPerm)
	for i := range signature {
		signature[i] = ^uint64(0)
	}

	for _, word := range strings.Fields(text) {
		hasher := fnv.New64a()
		hasher.Write([]byte(word))
		base := hasher.Sum64()

		for i := 0; i < x.numPerm; i++ {
			permuted := base*x.seedsA[i] + x.seedsB[i]
			if permuted < signature[i] {
				signature[i] = permuted
			}
		}
	}

	return signature
}
