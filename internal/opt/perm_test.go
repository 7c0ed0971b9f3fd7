package opt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermutationsAreCompleteAndUnique(t *testing.T) {
	fact := 1
	for n := 1; n <= MaxPathLength; n++ {
		fact *= n
		perms := Permutations(n)
		require.Len(t, perms, fact, "n=%d", n)
		seen := make(map[string]bool, fact)
		for _, p := range perms {
			require.Len(t, p, n)
			var used uint16
			for _, v := range p {
				require.Less(t, int(v), n)
				used |= 1 << v
			}
			require.Equal(t, uint16(1<<n-1), used, "not a permutation: %v", p)
			seen[string(p)] = true
		}
		require.Len(t, seen, fact, "duplicates for n=%d", n)
	}
}

func TestPermutationsAreCached(t *testing.T) {
	a := Permutations(5)
	b := Permutations(5)
	require.Same(t, &a[0][0], &b[0][0])
	require.Nil(t, Permutations(0))
	require.Nil(t, Permutations(MaxPathLength+1))
}
