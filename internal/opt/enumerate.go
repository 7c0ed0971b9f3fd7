package opt

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidLength    = errors.New("shipment length out of range")
	ErrInvalidPartition = errors.New("invalid work partition")
	ErrUnexpected       = errors.New("unexpected failure")
)

const (
	// Long shipments index their best ordering by a candidate mask. Up to
	// denseMaskLimit candidates the index is a flat 1<<n table.
	denseMaskLimit = 20
	maxLongOrders  = 24
)

// Enumerator builds, for a fixed length, the cheapest feasible ordering of
// every combination of open orders in a context.
type Enumerator struct {
	ctx  *Context
	cand []int
}

func NewEnumerator(ctx *Context) *Enumerator {
	e := &Enumerator{ctx: ctx}
	if ctx != nil {
		e.cand = ctx.OpenIndices()
	}
	return e
}

// BuildEx enumerates shipments of exactly length orders whose first
// candidate position is start, start+step, start+2*step and so on. Each
// combination reached contributes its cheapest feasible permutation.
func (e *Enumerator) BuildEx(length, start, step int) (out []*Shipment, err error) {
	if e == nil || e.ctx == nil {
		return nil, ErrNilContext
	}
	if length < 1 || length > MaxPathLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	if start < 0 || step < 1 {
		return nil, fmt.Errorf("%w: start=%d step=%d", ErrInvalidPartition, start, step)
	}
	if length >= 6 && len(e.cand) > maxLongOrders {
		return nil, fmt.Errorf("enumerate length %d: %w: %d candidates", length, ErrTooManyOrders, len(e.cand))
	}
	if length > len(e.cand) || length > e.ctx.Type.MaxOrderCount {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("enumerate length %d: %w: %v", length, ErrUnexpected, r)
		}
	}()

	switch length {
	case 1:
		out = e.build1(start, step)
	case 2:
		out = e.build2(start, step)
	case 3:
		out = e.build3(start, step)
	case 4, 5:
		out = e.buildCombos(length, start, step)
	default:
		out = e.buildLong(length, start, step)
	}
	return compact(out), nil
}

// BuildUpTo unions every length from 1 to maxLen. Lengths the batch is too
// large to enumerate are skipped.
func (e *Enumerator) BuildUpTo(maxLen int) ([]*Shipment, error) {
	if maxLen > MaxPathLength {
		maxLen = MaxPathLength
	}
	var all []*Shipment
	for l := 1; l <= maxLen; l++ {
		part, err := e.BuildEx(l, 0, 1)
		if errors.Is(err, ErrTooManyOrders) {
			break
		}
		if err != nil {
			return nil, err
		}
		all = append(all, part...)
	}
	return all, nil
}

// Parallel runs BuildEx over workers disjoint partitions and merges the
// results by order set.
func (e *Enumerator) Parallel(ctx context.Context, length, workers int) ([]*Shipment, error) {
	if workers < 1 {
		workers = 1
	}
	parts := make([][]*Shipment, workers)
	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			out, err := e.BuildEx(length, w, workers)
			parts[w] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeByKey(parts...), nil
}

func (e *Enumerator) build1(start, step int) []*Shipment {
	n := len(e.cand)
	out := make([]*Shipment, 0, n/step+1)
	var seq [1]int
	for p := start; p < n; p += step {
		seq[0] = e.cand[p]
		s, _ := e.ctx.Check(seq[:])
		out = append(out, s)
	}
	return out
}

func (e *Enumerator) build2(start, step int) []*Shipment {
	n := len(e.cand)
	out := make([]*Shipment, 0, n*(n-1)/(2*step)+1)
	var ab, ba [2]int
	for p := start; p < n; p += step {
		for q := p + 1; q < n; q++ {
			ab[0], ab[1] = e.cand[p], e.cand[q]
			ba[0], ba[1] = e.cand[q], e.cand[p]
			s1, _ := e.ctx.Check(ab[:])
			s2, _ := e.ctx.Check(ba[:])
			if cheaper(s2, s1) {
				s1 = s2
			}
			out = append(out, s1)
		}
	}
	return out
}

func (e *Enumerator) build3(start, step int) []*Shipment {
	n := len(e.cand)
	perms := Permutations(3)
	out := make([]*Shipment, 0, binomial(n, 3)/step+1)
	var tri, seq [3]int
	for p := start; p < n; p += step {
		tri[0] = e.cand[p]
		for q := p + 1; q < n; q++ {
			tri[1] = e.cand[q]
			for r := q + 1; r < n; r++ {
				tri[2] = e.cand[r]
				var best *Shipment
				for _, pm := range perms {
					seq[0], seq[1], seq[2] = tri[pm[0]], tri[pm[1]], tri[pm[2]]
					if s, ok := e.ctx.Check(seq[:]); ok && cheaper(s, best) {
						best = s
					}
				}
				out = append(out, best)
			}
		}
	}
	return out
}

// buildCombos walks combinations in lexicographic order of candidate
// positions with the first position fixed by the partition.
func (e *Enumerator) buildCombos(length, start, step int) []*Shipment {
	n := len(e.cand)
	perms := Permutations(length)
	out := make([]*Shipment, 0, binomial(n, length)/step+1)
	pos := make([]int, length)
	var combo, seq [MaxPathLength]int
	for p := start; p <= n-length; p += step {
		pos[0] = p
		for i := 1; i < length; i++ {
			pos[i] = p + i
		}
		for {
			for i := 0; i < length; i++ {
				combo[i] = e.cand[pos[i]]
			}
			out = append(out, e.bestOrdering(combo[:length], perms, seq[:length]))

			i := length - 1
			for i >= 1 && pos[i] == n-length+i {
				i--
			}
			if i < 1 {
				break
			}
			pos[i]++
			for j := i + 1; j < length; j++ {
				pos[j] = pos[j-1] + 1
			}
		}
	}
	return out
}

func (e *Enumerator) bestOrdering(combo []int, perms [][]uint8, seq []int) *Shipment {
	var best *Shipment
	for _, pm := range perms {
		for k, j := range pm {
			seq[k] = combo[j]
		}
		if s, ok := e.ctx.Check(seq); ok && cheaper(s, best) {
			best = s
		}
	}
	return best
}

// buildLong extends ordered prefixes depth first. A prefix that fails the
// open-ended check cannot be completed, so its subtree is skipped.
func (e *Enumerator) buildLong(length, start, step int) []*Shipment {
	n := len(e.cand)
	var dense []int32
	var sparse map[uint32]int32
	if n <= denseMaskLimit {
		dense = make([]int32, 1<<uint(n))
		for i := range dense {
			dense[i] = -1
		}
	} else {
		sparse = map[uint32]int32{}
	}
	slotOf := func(mask uint32) int32 {
		if dense != nil {
			return dense[mask]
		}
		if v, ok := sparse[mask]; ok {
			return v
		}
		return -1
	}
	setSlot := func(mask uint32, v int32) {
		if dense != nil {
			dense[mask] = v
		} else {
			sparse[mask] = v
		}
	}

	var out []*Shipment
	seq := make([]int, 0, length)
	var walk func(mask uint32)
	walk = func(mask uint32) {
		if len(seq) == length {
			s, ok := e.ctx.Check(seq)
			if !ok {
				return
			}
			if slot := slotOf(mask); slot < 0 {
				setSlot(mask, int32(len(out)))
				out = append(out, s)
			} else if cheaper(s, out[slot]) {
				out[slot] = s
			}
			return
		}
		for q := 0; q < n; q++ {
			bit := uint32(1) << uint(q)
			if mask&bit != 0 {
				continue
			}
			seq = append(seq, e.cand[q])
			if len(seq) == length || e.prefixFeasible(seq) {
				walk(mask | bit)
			}
			seq = seq[:len(seq)-1]
		}
	}
	for p := start; p < n; p += step {
		seq = append(seq[:0], e.cand[p])
		if e.prefixFeasible(seq) {
			walk(uint32(1) << uint(p))
		}
	}
	return out
}

func (e *Enumerator) prefixFeasible(seq []int) bool {
	_, ok := e.ctx.check(seq, false)
	return ok
}

func compact(in []*Shipment) []*Shipment {
	out := in[:0]
	for _, s := range in {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// mergeByKey keeps the cheapest shipment per order set, in first-seen order.
func mergeByKey(parts ...[]*Shipment) []*Shipment {
	idx := map[Key]int{}
	var out []*Shipment
	for _, part := range parts {
		for _, s := range part {
			if i, ok := idx[s.Key]; ok {
				if cheaper(s, out[i]) {
					out[i] = s
				}
				continue
			}
			idx[s.Key] = len(out)
			out = append(out, s)
		}
	}
	return out
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	r := 1
	for i := 1; i <= k; i++ {
		r = r * (n - k + i) / i
	}
	return r
}
