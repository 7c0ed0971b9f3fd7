package opt

// GrowStats counts the work done by a Grower.
type GrowStats struct {
	Extended   int // order sets evaluated
	Pruned     int // rejected by the coverage precondition
	Inserted   int // solved by inserting into the parent ordering
	Permuted   int // solved by the full permutation fallback
	MemoHits   int
	Infeasible int
}

// Frontier is the result of one growth run.
type Frontier struct {
	// All holds every feasible shipment reached, smallest sets first.
	All []*Shipment
	// Final holds the shipments that could not be extended further.
	Final []*Shipment
}

// Grower extends feasible shipments one order at a time. The best shipment
// for every order set it evaluates is memoized, so repeated runs over the
// same context reuse earlier work. A Grower is not safe for concurrent use.
type Grower struct {
	ctx    *Context
	maxLen int
	memo   map[Key]*Shipment // nil value: known infeasible
	Stats  GrowStats
}

// NewGrower returns a grower bounded to maxLen orders per shipment.
func NewGrower(ctx *Context, maxLen int) *Grower {
	if maxLen <= 0 || maxLen > MaxPathLength {
		maxLen = MaxPathLength
	}
	if ctx != nil && ctx.Type.MaxOrderCount < maxLen {
		maxLen = ctx.Type.MaxOrderCount
	}
	return &Grower{ctx: ctx, maxLen: maxLen, memo: map[Key]*Shipment{}}
}

// Known returns the memoized shipment for k. known is false when k was never
// evaluated.
func (g *Grower) Known(k Key) (s *Shipment, known bool) {
	s, known = g.memo[k]
	return s, known
}

// Single returns the single-order shipment for order i, or nil.
func (g *Grower) Single(i int) *Shipment {
	k := KeyOf(i)
	if s, ok := g.memo[k]; ok {
		g.Stats.MemoHits++
		return s
	}
	s, _ := g.ctx.Check([]int{i})
	g.store(k, s)
	return s
}

// Pair returns the cheaper feasible ordering of orders i and j, or nil.
func (g *Grower) Pair(i, j int) *Shipment {
	k := KeyOf(i, j)
	if s, ok := g.memo[k]; ok {
		g.Stats.MemoHits++
		return s
	}
	a, _ := g.ctx.Check([]int{i, j})
	b, _ := g.ctx.Check([]int{j, i})
	if cheaper(b, a) {
		a = b
	}
	g.store(k, a)
	return a
}

// Grow builds the frontier over candidates, skipping orders in shipped.
func (g *Grower) Grow(candidates []int, shipped Key) *Frontier {
	cands := g.filter(candidates, shipped, -1)
	var level []*Shipment
	for _, i := range cands {
		if s := g.Single(i); s != nil {
			level = append(level, s)
		}
	}
	return g.run(level, cands, -1)
}

// GrowAnchored builds the frontier of shipments that contain anchor.
func (g *Grower) GrowAnchored(anchor int, candidates []int, shipped Key) *Frontier {
	if shipped.Has(anchor) {
		return &Frontier{}
	}
	s := g.Single(anchor)
	if s == nil {
		return &Frontier{}
	}
	cands := g.filter(candidates, shipped, anchor)
	return g.run([]*Shipment{s}, cands, anchor)
}

func (g *Grower) filter(candidates []int, shipped Key, anchor int) []int {
	out := make([]int, 0, len(candidates))
	seen := Key{}
	for _, i := range candidates {
		if i == anchor || shipped.Has(i) || seen.Has(i) || !g.ctx.open.Has(i) {
			continue
		}
		seen = seen.With(i)
		out = append(out, i)
	}
	return out
}

func (g *Grower) run(level []*Shipment, cands []int, anchor int) *Frontier {
	f := &Frontier{All: append([]*Shipment(nil), level...)}
	for size := 1; len(level) > 0; size++ {
		if size >= g.maxLen {
			f.Final = append(f.Final, level...)
			break
		}
		seen := map[Key]*Shipment{}
		var next []*Shipment
		for _, s := range level {
			extended := false
			for _, o := range cands {
				if s.Key.Has(o) {
					continue
				}
				nk := s.Key.With(o)
				if ns, ok := seen[nk]; ok {
					if ns != nil {
						extended = true
					}
					continue
				}
				ns := g.extend(s, o, nk, anchor)
				seen[nk] = ns
				if ns != nil {
					extended = true
					next = append(next, ns)
				}
			}
			if !extended {
				f.Final = append(f.Final, s)
			}
		}
		f.All = append(f.All, next...)
		level = next
	}
	return f
}

// extend evaluates parent ∪ {o}. Every same-size subset that swaps o in
// for a parent member must already be known feasible; otherwise the set is
// pruned without a check.
func (g *Grower) extend(parent *Shipment, o int, nk Key, anchor int) *Shipment {
	if s, ok := g.memo[nk]; ok {
		g.Stats.MemoHits++
		return s
	}
	for _, e := range parent.Index {
		if e == anchor {
			continue
		}
		sub := nk.Without(e)
		if sub.Len() == 1 {
			if g.Single(o) == nil {
				g.Stats.Pruned++
				return nil
			}
			continue
		}
		if s, ok := g.memo[sub]; !ok || s == nil {
			g.Stats.Pruned++
			return nil
		}
	}
	g.Stats.Extended++

	best := g.insert(parent, o)
	if best != nil {
		g.Stats.Inserted++
	} else if best = g.ctx.SolveSalesman(nk.Indices()); best != nil {
		g.Stats.Permuted++
	}
	g.store(nk, best)
	return best
}

// insert tries o at every position of the parent's ordering.
func (g *Grower) insert(parent *Shipment, o int) *Shipment {
	n := len(parent.Index)
	var buf [MaxPathLength]int
	seq := buf[:n+1]
	var best *Shipment
	for pos := 0; pos <= n; pos++ {
		copy(seq, parent.Index[:pos])
		seq[pos] = o
		copy(seq[pos+1:], parent.Index[pos:])
		if s, ok := g.ctx.Check(seq); ok && cheaper(s, best) {
			best = s
		}
	}
	return best
}

func (g *Grower) store(k Key, s *Shipment) {
	if s == nil {
		g.Stats.Infeasible++
	}
	if old, ok := g.memo[k]; ok && !cheaper(s, old) {
		return
	}
	g.memo[k] = s
}
