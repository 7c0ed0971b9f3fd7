package opt

import "sort"

// FilterDominated drops every shipment whose order set is a proper subset
// of another candidate's, and keeps the cheaper of shipments with equal
// sets. The result is ordered largest sets first.
func FilterDominated(in []*Shipment) []*Shipment {
	uniq := mergeByKey(in)
	sort.SliceStable(uniq, func(i, j int) bool {
		return uniq[i].Key.Len() > uniq[j].Key.Len()
	})
	out := make([]*Shipment, 0, len(uniq))
	for _, s := range uniq {
		dominated := false
		for _, k := range out {
			if s.Key.ProperSubsetOf(k.Key) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, s)
		}
	}
	return out
}
