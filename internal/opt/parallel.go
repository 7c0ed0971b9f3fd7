package opt

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/logger"
	"courierdispatch/internal/metrics"
)

// Pool holds the candidate shipments of one courier type, per shop index,
// cheapest per order first.
type Pool struct {
	Type  *courier.Type
	Shops [][]*Shipment
}

// Size is the total number of candidates.
func (p *Pool) Size() int {
	n := 0
	for _, s := range p.Shops {
		n += len(s)
	}
	return n
}

// forEachShop calls fn for every index in [0,n) with indices partitioned by
// stride over workers, then waits for all of them.
func forEachShop(ctx context.Context, n, workers int, fn func(i int) error) error {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < n; i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// BuildPools builds the candidate pool of t for every shop concurrently.
// A shop that fails contributes an empty pool; only cancellation aborts.
func BuildPools(ctx context.Context, shops []*Shop, t *courier.Type, modelTime float64, tun Tuning) (*Pool, error) {
	p := &Pool{Type: t, Shops: make([][]*Shipment, len(shops))}
	err := forEachShop(ctx, len(shops), tun.Workers, func(i int) error {
		out, source, err := buildShopPool(shops[i], t, modelTime, tun)
		if err != nil {
			metrics.ShopFailures.WithLabelValues("pool").Inc()
			logger.Warnw("shop pool failed", "shop", shops[i].ID, "vehicle", t.Vehicle.String(), "error", err)
			return nil
		}
		sort.SliceStable(out, func(a, b int) bool { return cheaperPerOrder(out[a], out[b]) })
		p.Shops[i] = out
		if len(out) > 0 {
			metrics.PoolShipments.WithLabelValues(t.Vehicle.String(), source).Add(float64(len(out)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build pools for %s: %w", t.Vehicle, err)
	}
	return p, nil
}

func buildShopPool(shop *Shop, t *courier.Type, modelTime float64, tun Tuning) (out []*Shipment, source string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("shop %s: %w: %v", shop.ID, ErrUnexpected, r)
		}
	}()
	c, err := NewContext(shop, t, modelTime)
	if err != nil {
		return nil, "", err
	}
	open := c.Open().Len()
	if open == 0 {
		return nil, "", nil
	}
	maxLen := tun.MaxPathLength
	if t.MaxOrderCount < maxLen {
		maxLen = t.MaxOrderCount
	}
	if open <= tun.MaxOrdersForOptimalSolution {
		out, err = NewEnumerator(c).BuildUpTo(maxLen)
		return out, "enumerate", err
	}
	out, err = NewCoverBuilder(c, tun.MaxOrdersForCoverSolution, maxLen).Candidates()
	return out, "cover", err
}
