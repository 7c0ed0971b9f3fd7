package opt

import (
	"errors"
	"fmt"
	"math/bits"
)

// MaxOrders is the largest shop batch a Key can address. Larger batches must
// be split upstream.
const MaxOrders = 128

var ErrTooManyOrders = errors.New("too many orders for one shop batch")

// Key is the order-independent identity of a set of order indices. It is a
// comparable value and can key maps directly.
type Key struct {
	lo, hi uint64
}

// KeyOf builds the key of the given indices. Duplicates are ignored.
func KeyOf(idx ...int) Key {
	var k Key
	for _, i := range idx {
		k = k.With(i)
	}
	return k
}

// With returns k with index i added.
func (k Key) With(i int) Key {
	if i < 64 {
		k.lo |= 1 << uint(i)
	} else {
		k.hi |= 1 << uint(i-64)
	}
	return k
}

// Without returns k with index i removed.
func (k Key) Without(i int) Key {
	if i < 64 {
		k.lo &^= 1 << uint(i)
	} else {
		k.hi &^= 1 << uint(i-64)
	}
	return k
}

// Has reports whether index i is in k.
func (k Key) Has(i int) bool {
	if i < 64 {
		return k.lo&(1<<uint(i)) != 0
	}
	return k.hi&(1<<uint(i-64)) != 0
}

func (k Key) Len() int { return bits.OnesCount64(k.lo) + bits.OnesCount64(k.hi) }

func (k Key) IsZero() bool { return k.lo == 0 && k.hi == 0 }

func (k Key) Union(o Key) Key { return Key{lo: k.lo | o.lo, hi: k.hi | o.hi} }

func (k Key) Intersect(o Key) Key { return Key{lo: k.lo & o.lo, hi: k.hi & o.hi} }

// Overlaps reports whether k and o share an index.
func (k Key) Overlaps(o Key) bool { return k.lo&o.lo != 0 || k.hi&o.hi != 0 }

// SubsetOf reports k ⊆ o.
func (k Key) SubsetOf(o Key) bool { return k.lo&^o.lo == 0 && k.hi&^o.hi == 0 }

// ProperSubsetOf reports k ⊂ o.
func (k Key) ProperSubsetOf(o Key) bool { return k != o && k.SubsetOf(o) }

// Indices returns the members of k in ascending order.
func (k Key) Indices() []int {
	out := make([]int, 0, k.Len())
	for w, word := range [2]uint64{k.lo, k.hi} {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			out = append(out, w*64+b)
			word &= word - 1
		}
	}
	return out
}

func (k Key) String() string { return fmt.Sprintf("%016x%016x", k.hi, k.lo) }

func checkCapacity(n int) error {
	if n > MaxOrders {
		return fmt.Errorf("%w: %d > %d", ErrTooManyOrders, n, MaxOrders)
	}
	return nil
}
