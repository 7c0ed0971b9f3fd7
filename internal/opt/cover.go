package opt

import (
	"fmt"
	"math"
	"sort"
)

// Cover is a set of disjoint shipments over one shop batch.
type Cover struct {
	Shipments []*Shipment
	Unshipped []*Order
	Stats     GrowStats
}

// Cost is the sum of shipment costs.
func (c *Cover) Cost() float64 {
	total := 0.0
	for _, s := range c.Shipments {
		total += s.Cost
	}
	return total
}

// CoverBuilder covers a shop batch with shipments for one courier type by
// repeatedly taking the best per-order candidate among open anchors.
type CoverBuilder struct {
	ctx       *Context
	grower    *Grower
	maxCompat int
}

// NewCoverBuilder returns a builder that considers at most maxCompat
// companions per anchor order.
func NewCoverBuilder(ctx *Context, maxCompat, maxLen int) *CoverBuilder {
	if maxCompat <= 0 {
		maxCompat = 12
	}
	return &CoverBuilder{ctx: ctx, grower: NewGrower(ctx, maxLen), maxCompat: maxCompat}
}

// Grower exposes the builder's memo for reuse.
func (b *CoverBuilder) Grower() *Grower { return b.grower }

// Build computes the cover. The context's orders are not modified.
func (b *CoverBuilder) Build() (cov *Cover, err error) {
	if b == nil || b.ctx == nil {
		return nil, ErrNilContext
	}
	defer func() {
		if r := recover(); r != nil {
			cov = nil
			err = fmt.Errorf("cover shop %s: %w: %v", b.ctx.Shop.ID, ErrUnexpected, r)
		}
	}()

	cov = &Cover{}
	sorted, rejected := b.anchors()
	for _, i := range rejected {
		cov.Unshipped = append(cov.Unshipped, b.ctx.Orders[i])
	}

	shipped := Key{}
	for {
		var best *Shipment
		for a := len(sorted) - 1; a >= 0; a-- {
			idx := sorted[a]
			if shipped.Has(idx) {
				continue
			}
			compat := b.compatible(idx, sorted, shipped)
			fr := b.grower.GrowAnchored(idx, compat, shipped)
			for _, s := range fr.All {
				if cheaperPerOrder(s, best) {
					best = s
				}
			}
		}
		if best == nil {
			break
		}
		cov.Shipments = append(cov.Shipments, best)
		shipped = shipped.Union(best.Key)
	}

	sort.SliceStable(cov.Shipments, func(i, j int) bool {
		return cov.Shipments[i].StartDelivery < cov.Shipments[j].StartDelivery
	})
	cov.Stats = b.grower.Stats
	return cov, nil
}

// Candidates grows every open order once as an anchor over its capped
// companion list and returns the best shipment found for each order set.
// Unlike Build it commits nothing, so the result is a candidate pool.
func (b *CoverBuilder) Candidates() (out []*Shipment, err error) {
	if b == nil || b.ctx == nil {
		return nil, ErrNilContext
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("candidates shop %s: %w: %v", b.ctx.Shop.ID, ErrUnexpected, r)
		}
	}()

	sorted, _ := b.anchors()
	var keys []Key
	seen := map[Key]bool{}
	for _, idx := range sorted {
		fr := b.grower.GrowAnchored(idx, b.compatible(idx, sorted, Key{}), Key{})
		for _, s := range fr.All {
			if !seen[s.Key] {
				seen[s.Key] = true
				keys = append(keys, s.Key)
			}
		}
	}
	out = make([]*Shipment, 0, len(keys))
	for _, k := range keys {
		if s, _ := b.grower.Known(k); s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// anchors returns the open orders that ship alone, by interval start, and
// those that cannot ship at all.
func (b *CoverBuilder) anchors() (sorted, rejected []int) {
	type anchor struct {
		idx   int
		start float64
	}
	var as []anchor
	for _, i := range b.ctx.OpenIndices() {
		s := b.grower.Single(i)
		if s == nil {
			rejected = append(rejected, i)
			continue
		}
		as = append(as, anchor{idx: i, start: s.StartDeliveryInterval})
	}
	sort.SliceStable(as, func(i, j int) bool {
		if as[i].start != as[j].start {
			return as[i].start < as[j].start
		}
		return as[i].idx < as[j].idx
	})
	sorted = make([]int, len(as))
	for i, a := range as {
		sorted[i] = a.idx
	}
	return sorted, rejected
}

// compatible lists open orders whose window overlaps the anchor's and that
// form a feasible pair with it, nearest interval start first.
func (b *CoverBuilder) compatible(anchor int, sorted []int, shipped Key) []int {
	ao := b.ctx.Orders[anchor]
	as := b.grower.Single(anchor)
	type cand struct {
		idx  int
		dist float64
	}
	var cs []cand
	for _, i := range sorted {
		if i == anchor || shipped.Has(i) {
			continue
		}
		if !ao.Overlaps(b.ctx.Orders[i]) {
			continue
		}
		if b.grower.Pair(anchor, i) == nil {
			continue
		}
		s := b.grower.Single(i)
		cs = append(cs, cand{idx: i, dist: math.Abs(s.StartDeliveryInterval - as.StartDeliveryInterval)})
	}
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].dist < cs[j].dist })
	if len(cs) > b.maxCompat {
		cs = cs[:b.maxCompat]
	}
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.idx
	}
	sort.Ints(out)
	return out
}
