package revocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBloomFilter_NoFalseNegatives(t *testing.T) {
	f := newBloomFilter(1000, 0.01)
	members := make([]string, 0, 500)
	for i := 0; i < 500; i++ {
		item := randishID(i)
		members = append(members, item)
		f.Add(item)
	}

	for _, item := range members {
		assert.True(t, f.Contains(item), "every added item must test positive")
	}
}

func TestBloomFilter_AbsentItemsMostlyTestNegative(t *testing.T) {
	f := newBloomFilter(1000, 0.01)
	for i := 0; i < 500; i++ {
		f.Add(randishID(i))
	}

	falsePositives := 0
	const probes = 2000
	for i := 500; i < 500+probes; i++ {
		if f.Contains(randishID(i)) {
			falsePositives++
		}
	}
	// Configured for a 1% target FP rate; allow generous headroom so
	// the test isn't flaky against the probabilistic structure.
	assert.Less(t, falsePositives, probes/10, "false positive rate should stay well under 10%%")
}

func TestSyncFilter_AddIsVisibleImmediately(t *testing.T) {
	sf := newSyncFilter(100, 0.01)
	assert.False(t, sf.Contains("jti-1"))
	sf.Add("jti-1")
	assert.True(t, sf.Contains("jti-1"))
}

func TestSyncFilter_RebuildReplacesContents(t *testing.T) {
	sf := newSyncFilter(100, 0.01)
	sf.Add("stale-jti")
	assert.True(t, sf.Contains("stale-jti"))

	sf.Rebuild([]string{"fresh-jti"}, 100, 0.01)
	assert.True(t, sf.Contains("fresh-jti"))
	assert.False(t, sf.Contains("stale-jti"), "rebuild must fully replace the prior filter contents")
}

func randishID(i int) string {
	const alphabet = "0123456789abcdef"
	b := make([]byte, 16)
	n := i + 1
	for j := range b {
		b[j] = alphabet[n%16]
		n = n/16 + j + 7
	}
	return string(b)
}
