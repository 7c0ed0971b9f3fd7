package opt

import "sync"

// MaxPathLength is the longest shipment the engine builds.
const MaxPathLength = 8

var permTables [MaxPathLength + 1]struct {
	once sync.Once
	t    [][]uint8
}

// Permutations returns every ordering of 0..n-1 for 1 <= n <= MaxPathLength.
// Tables are built on first use and shared; callers must not modify them.
func Permutations(n int) [][]uint8 {
	if n < 1 || n > MaxPathLength {
		return nil
	}
	p := &permTables[n]
	p.once.Do(func() { p.t = heapPermutations(n) })
	return p.t
}

// heapPermutations generates permutations with the iterative form of Heap's
// algorithm.
func heapPermutations(n int) [][]uint8 {
	a := make([]uint8, n)
	for i := range a {
		a[i] = uint8(i)
	}
	total := 1
	for i := 2; i <= n; i++ {
		total *= i
	}
	out := make([][]uint8, 0, total)
	flat := make([]uint8, 0, total*n)
	emit := func() {
		flat = append(flat, a...)
		out = append(out, flat[len(flat)-n:len(flat):len(flat)])
	}
	emit()
	c := make([]int, n)
	for i := 1; i < n; {
		if c[i] < i {
			if i%2 == 0 {
				a[0], a[i] = a[i], a[0]
			} else {
				a[c[i]], a[i] = a[i], a[c[i]]
			}
			emit()
			c[i]++
			i = 1
		} else {
			c[i] = 0
			i++
		}
	}
	return out
}
