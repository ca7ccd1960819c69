package revocation

import (
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// bloomFilter is a probabilistic set over jti strings: false positives
// are possible, false negatives are not. API shape (NewFilter/Add/
// Contains) follows storj's pkg/bloomfilter, which ships only a test
// file in this pack (its filter.go wasn't retrieved) — reimplemented
// here against murmur3, the hashing library that filter relies on.
type bloomFilter struct {
	bits   []uint64
	size   uint64
	hashes int
}

// newBloomFilter sizes a filter for n expected entries at the given
// target false-positive probability, using the standard optimal-size
// and optimal-hash-count formulas.
func newBloomFilter(n int, falsePositiveProbability float64) *bloomFilter {
	if n < 1 {
		n = 1
	}
	m := optimalBits(n, falsePositiveProbability)
	k := optimalHashCount(m, n)

	words := (m + 63) / 64
	return &bloomFilter{
		bits:   make([]uint64, words),
		size:   uint64(m),
		hashes: k,
	}
}

func optimalBits(n int, p float64) int {
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	m := -1 * float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	if m < 64 {
		return 64
	}
	return int(math.Ceil(m))
}

func optimalHashCount(m, n int) int {
	k := int(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		return 1
	}
	if k > 20 {
		return 20
	}
	return k
}

// Add sets the bit positions for item across all hash rounds.
func (f *bloomFilter) Add(item string) {
	h1, h2 := splitHash(item)
	for i := 0; i < f.hashes; i++ {
		pos := (h1 + uint64(i)*h2) % f.size
		f.bits[pos/64] |= 1 << (pos % 64)
	}
}

// Contains reports whether item is possibly a member. A false return
// means item is definitely absent; a true return means "maybe".
func (f *bloomFilter) Contains(item string) bool {
	h1, h2 := splitHash(item)
	for i := 0; i < f.hashes; i++ {
		pos := (h1 + uint64(i)*h2) % f.size
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// splitHash derives two independent 64-bit hashes from a single
// murmur3 pass (Kirsch-Mitzenmacher double hashing), avoiding k
// separate hash computations per Add/Contains call.
func splitHash(item string) (uint64, uint64) {
	h1, h2 := murmur3.Sum128([]byte(item))
	return h1, h2
}

// syncFilter wraps bloomFilter with copy-on-write rebuild semantics:
// readers (Contains) never block on a concurrent Rebuild.
type syncFilter struct {
	mu     sync.RWMutex
	filter *bloomFilter
}

func newSyncFilter(expectedEntries int, targetFP float64) *syncFilter {
	return &syncFilter{filter: newBloomFilter(expectedEntries, targetFP)}
}

func (s *syncFilter) Contains(item string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter.Contains(item)
}

// Rebuild atomically swaps in a freshly built filter populated with
// items, so concurrent Contains calls always see a fully-built filter.
func (s *syncFilter) Rebuild(items []string, expectedEntries int, targetFP float64) {
	n := expectedEntries
	if len(items) > n {
		n = len(items)
	}
	next := newBloomFilter(n, targetFP)
	for _, item := range items {
		next.Add(item)
	}

	s.mu.Lock()
	s.filter = next
	s.mu.Unlock()
}

// Add inserts item into the live filter immediately, so a just-revoked
// token is caught without waiting for the next periodic rebuild.
func (s *syncFilter) Add(item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Add(item)
}
