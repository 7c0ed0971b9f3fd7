package opt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
)

// carType is an hourly car billed one unit per minute with no handling time.
func carType(t *testing.T, mut func(p *courier.Profile)) *courier.Type {
	t.Helper()
	p := courier.Profile{ID: 3, Name: "Car", Vehicle: "car", Method: "hourly", Geo: "driving", MaxOrderCount: 8, HourlyRate: 60}
	if mut != nil {
		mut(&p)
	}
	ct, err := courier.NewType(p, 1)
	require.NoError(t, err)
	return ct
}

func taxiType(t *testing.T) *courier.Type {
	t.Helper()
	ct, err := courier.NewType(courier.Profile{
		ID: 14, Name: "Yandex", Vehicle: "yandex", Method: "taxi", Geo: "driving", MaxOrderCount: 3,
		FirstPay: 199, SecondPay: 50, FirstDistanceKm: 5, AdditionalKmCost: 15, StartDelay: 15,
	}, 1)
	require.NoError(t, err)
	return ct
}

func newShop(orders []*Order, leg func(i, j int) geo.Point) *Shop {
	n := len(orders)
	m := geo.NewMatrix(n)
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			if i == j {
				m.Set(i, j, geo.Point{})
				continue
			}
			m.Set(i, j, leg(i, j))
		}
	}
	for i, o := range orders {
		if o.ID == "" {
			o.ID = fmt.Sprintf("o%d", i)
		}
		o.ShopID = "s1"
	}
	sh := &Shop{ID: "s1", Orders: orders, Geo: map[geo.Kind]*geo.Matrix{geo.Driving: m}}
	sh.Renumber()
	return sh
}

// lineShop puts order i at i+1 km from the shop along a straight road
// driven at 30 km/h. Every order shares the window [from, to).
func lineShop(n int, from, to float64) *Shop {
	orders := make([]*Order, n)
	for i := range orders {
		orders[i] = &Order{Weight: 1, TimeFrom: from, TimeTo: to}
	}
	return newShop(orders, func(i, j int) geo.Point {
		pos := func(k int) int {
			if k == n {
				return 0
			}
			return k + 1
		}
		d := pos(i) - pos(j)
		if d < 0 {
			d = -d
		}
		return geo.Point{Distance: d * 1000, Duration: d * 120}
	})
}

func mustContext(t *testing.T, sh *Shop, ct *courier.Type, modelTime float64) *Context {
	t.Helper()
	c, err := NewContext(sh, ct, modelTime)
	require.NoError(t, err)
	return c
}

func keysOf(ss []*Shipment) map[Key]*Shipment {
	out := map[Key]*Shipment{}
	for _, s := range ss {
		out[s.Key] = s
	}
	return out
}
