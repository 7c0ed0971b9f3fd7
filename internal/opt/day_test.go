package opt

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
)

func dayCar(t *testing.T) *courier.Type {
	return carType(t, func(p *courier.Profile) {
		p.HourlyRate = 450
		p.ReturnToShop = true
		p.WorkStart, p.WorkEnd = "09:00", "21:00"
	})
}

func requireShippedOnce(t *testing.T, plan *DayPlan) map[*Order]int {
	t.Helper()
	seen := map[*Order]int{}
	for _, s := range plan.Shipments {
		for _, o := range s.Orders {
			seen[o]++
			require.Equal(t, 1, seen[o], "order %s shipped twice", o.ID)
			require.True(t, o.Completed)
		}
	}
	return seen
}

func TestDaySchedulerExKeepsShortShifts(t *testing.T) {
	resetRuns()
	tun := DefaultTuning()
	tun.Variant = VariantEx
	sh := lineShop(6, 600, 720)

	plan, err := NewDayScheduler(tun).Build(context.Background(), DayInput{
		ServiceID: 7, PlanDate: "2026-10-16", ModelTime: 480,
		Shops:   []*Shop{sh},
		Classes: []*courier.Type{dayCar(t)},
		Taxis:   []*courier.Type{taxiType(t)},
	})
	require.NoError(t, err)
	require.True(t, plan.IsCreated)
	require.Equal(t, CodeOK, plan.Code)
	require.NotEmpty(t, plan.ID)

	seen := requireShippedOnce(t, plan)
	require.Len(t, seen, 6)
	require.Empty(t, plan.Unshipped)
	require.Len(t, plan.Couriers, 1)
	require.Len(t, plan.Shipments, 1)

	s := plan.Shipments[0]
	require.Equal(t, plan.Couriers[0], s.Courier)
	require.Equal(t, 598.0, s.StartDelivery)
	require.Equal(t, 24.0, s.ExecutionTime)
	require.NotEmpty(t, s.ID)
	require.Equal(t, "450", plan.TotalCost.String())
	require.Equal(t, "180", plan.ShipmentCost.String())

	runs := GetRuns("7", "2026-10-16")
	require.Len(t, runs, 1)
	require.Equal(t, "ex", runs[0].Variant)
	require.Equal(t, 1, runs[0].Stats.Shipments)
	require.Equal(t, 6, runs[0].Stats.Orders)
}

func TestDaySchedulerSimpleRollsBackShortShift(t *testing.T) {
	tun := DefaultTuning()
	sh := lineShop(6, 600, 720)

	plan, err := NewDayScheduler(tun).Build(context.Background(), DayInput{
		ModelTime: 480,
		Shops:     []*Shop{sh},
		Classes:   []*courier.Type{dayCar(t)},
		Taxis:     []*courier.Type{taxiType(t)},
	})
	require.NoError(t, err)
	require.True(t, plan.IsCreated)
	require.Equal(t, 1, plan.Stats.RolledBack)

	seen := requireShippedOnce(t, plan)
	require.Len(t, seen, 6)
	for _, s := range plan.Shipments {
		require.True(t, s.Type.IsTaxi())
		require.LessOrEqual(t, s.OrderCount(), 3)
	}
	require.Len(t, plan.Couriers, 1)
	require.Equal(t, plan.Stats.Taxi, len(plan.Shipments))
}

func TestDaySchedulerLeavesUnreachableOrders(t *testing.T) {
	sh := lineShop(3, 600, 720)
	sh.Orders[2].TimeFrom, sh.Orders[2].TimeTo = 300, 400
	sh.Orders[1].Completed = true

	tun := DefaultTuning()
	tun.Variant = VariantEx
	plan, err := NewDayScheduler(tun).Build(context.Background(), DayInput{
		ModelTime: 480,
		Shops:     []*Shop{sh},
		Classes:   []*courier.Type{dayCar(t)},
	})
	require.NoError(t, err)
	require.Len(t, requireShippedOnce(t, plan), 1)
	require.Equal(t, []*Order{sh.Orders[2]}, plan.Unshipped)
	require.Equal(t, 3, plan.Stats.Orders)
}

func TestDaySchedulerManyCouriers(t *testing.T) {
	sh := lineShop(10, 600, 720)
	car := carType(t, func(p *courier.Profile) {
		p.MaxOrderCount = 2
		p.ReturnToShop = true
		p.WorkStart, p.WorkEnd = "09:00", "11:00"
	})
	tun := DefaultTuning()
	tun.Variant = VariantEx
	tun.MaxOrdersForOptimalSolution = 4

	plan, err := NewDayScheduler(tun).Build(context.Background(), DayInput{
		ModelTime: 480,
		Shops:     []*Shop{sh},
		Classes:   []*courier.Type{car},
	})
	require.NoError(t, err)
	seen := requireShippedOnce(t, plan)
	require.Len(t, seen, 10)
	require.Greater(t, len(plan.Couriers), 1)
	for _, c := range plan.Couriers {
		require.LessOrEqual(t, c.LastEnd, c.Shift.End)
	}
}

func TestDaySchedulerInvalidInput(t *testing.T) {
	sh := lineShop(2, 600, 720)
	plan, err := NewDayScheduler(DefaultTuning()).Build(context.Background(), DayInput{Shops: []*Shop{sh}})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.False(t, plan.IsCreated)
	require.Equal(t, CodeInvalidInput, plan.Code)

	_, err = NewDayScheduler(DefaultTuning()).Build(context.Background(), DayInput{
		Shops:   []*Shop{sh},
		Classes: []*courier.Type{dayCar(t)},
		Taxis:   []*courier.Type{dayCar(t)},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDaySchedulerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sh := lineShop(3, 600, 720)
	plan, err := NewDayScheduler(DefaultTuning()).Build(ctx, DayInput{
		ModelTime: 480,
		Shops:     []*Shop{sh},
		Classes:   []*courier.Type{dayCar(t)},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, CodeInternal, plan.Code)
	for _, o := range sh.Orders {
		require.False(t, o.Completed)
	}
}

func TestFitCourier(t *testing.T) {
	ct := dayCar(t)
	s := &Shipment{Type: ct, StartDeliveryInterval: 600, EndDeliveryInterval: 700, ExecutionTime: 30}
	sh := courier.Shift{Start: 540, End: 1260, LunchStart: 780, LunchEnd: 810}

	start, ok := fitCourier(s, 550, sh)
	require.True(t, ok)
	require.Equal(t, 600.0, start)

	start, ok = fitCourier(s, 650, sh)
	require.True(t, ok)
	require.Equal(t, 650.0, start)

	_, ok = fitCourier(s, 701, sh)
	require.False(t, ok)

	s.EndDeliveryInterval = 900
	start, ok = fitCourier(s, 790, sh)
	require.True(t, ok)
	require.Equal(t, 810.0, start)

	_, ok = fitCourier(s, 800, courier.Shift{Start: 540, End: 820})
	require.False(t, ok)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("EX")
	require.NoError(t, err)
	require.Equal(t, VariantEx, v)
	v, err = ParseVariant("")
	require.NoError(t, err)
	require.Equal(t, VariantSimple, v)
	_, err = ParseVariant("greedy")
	require.Error(t, err)
}

func TestBuildPoolsUsesCoverCandidatesForLargeShops(t *testing.T) {
	tun := DefaultTuning()
	tun.MaxOrdersForOptimalSolution = 2
	shops := []*Shop{lineShop(4, 600, 720), lineShop(1, 600, 720), {ID: "empty"}}
	shops[2].Geo = lineShop(0, 0, 0).Geo

	p, err := BuildPools(context.Background(), shops, carType(t, nil), 480, tun)
	require.NoError(t, err)
	require.Len(t, p.Shops[0], 15)
	require.Len(t, p.Shops[1], 1)
	require.Empty(t, p.Shops[2])
	require.Equal(t, 16, p.Size())
	for i := 1; i < len(p.Shops[0]); i++ {
		require.False(t, cheaperPerOrder(p.Shops[0][i], p.Shops[0][i-1]))
	}
}

func TestBuildPoolsBoundsLargeShop(t *testing.T) {
	const n = 40
	tun := DefaultTuning()
	sh := lineShop(n, 600, 900)

	p, err := BuildPools(context.Background(), []*Shop{sh}, carType(t, nil), 480, tun)
	require.NoError(t, err)

	// Each candidate holds its anchor plus at most MaxOrdersForCoverSolution
	// companions, so a pool never exceeds n anchored subsets of that size.
	perAnchor := 0
	for k := 0; k < tun.MaxPathLength; k++ {
		perAnchor += binomial(tun.MaxOrdersForCoverSolution, k)
	}
	pool := p.Shops[0]
	require.NotEmpty(t, pool)
	require.LessOrEqual(t, len(pool), n*perAnchor)

	var covered Key
	seen := map[Key]bool{}
	for _, s := range pool {
		require.LessOrEqual(t, s.OrderCount(), tun.MaxPathLength)
		require.False(t, seen[s.Key], "duplicate candidate %s", s.Key)
		seen[s.Key] = true
		covered = covered.Union(s.Key)
	}
	require.Equal(t, n, covered.Len())
}

func TestCoverCandidatesMatchFullGrowthOnSmallShop(t *testing.T) {
	c := mustContext(t, lineShop(5, 600, 720), carType(t, nil), 480)
	got, err := NewCoverBuilder(c, 12, 0).Candidates()
	require.NoError(t, err)
	want := NewGrower(mustContext(t, lineShop(5, 600, 720), carType(t, nil), 480), 0).Grow([]int{0, 1, 2, 3, 4}, Key{})

	gk, wk := keysOf(got), keysOf(want.All)
	require.Len(t, gk, len(wk))
	for k := range wk {
		require.Contains(t, gk, k)
	}

	var b *CoverBuilder
	_, err = b.Candidates()
	require.ErrorIs(t, err, ErrNilContext)
}

// farShops places shop i at the given latitude with two orders sharing
// the window [from, to).
func farShops(lats []float64, from, to float64) []*Shop {
	shops := make([]*Shop, len(lats))
	for i, lat := range lats {
		sh := lineShop(2, from, to)
		sh.ID = fmt.Sprintf("s%d", i)
		sh.Location = geo.LatLng{Lat: lat}
		for _, o := range sh.Orders {
			o.ShopID = sh.ID
			o.ID = sh.ID + "-" + o.ID
		}
		shops[i] = sh
	}
	return shops
}

func TestReachableShops(t *testing.T) {
	// About 1.4, 2.9 and 145 km of road from shop 0.
	shops := farShops([]float64{0, 0.01, 0.02, 1}, 600, 720)
	ct := dayCar(t)

	cases := []struct {
		name    string
		maxKm   float64
		minNear int
		at      geo.LatLng
		want    []int
	}{
		{name: "near shops only", maxKm: 5, minNear: 2, at: shops[0].Location, want: []int{0, 1, 2}},
		{name: "falls back to nearest", maxKm: 2, minNear: 3, at: shops[0].Location, want: []int{0, 1, 2}},
		{name: "fallback ordered by distance", maxKm: 0.1, minNear: 2, at: shops[3].Location, want: []int{3, 2}},
		{name: "nothing near ends shift", maxKm: 5, minNear: 0, at: geo.LatLng{Lat: 5}, want: []int{}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tun := DefaultTuning()
			tun.MaxDistanceToAvailableShop = tc.maxKm
			tun.MinAvailableShopCount = tc.minNear
			r := &dayRun{d: NewDayScheduler(tun), in: DayInput{Shops: shops}}

			c := courier.New("c", ct)
			require.Len(t, r.reachable(c), len(shops), "a fresh courier may start anywhere")

			c.Location, c.HasLocation = tc.at, true
			got := r.reachable(c)
			if len(tc.want) == 0 {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDaySchedulerKeepsCourierNearShop(t *testing.T) {
	run := func(minNear int) *DayPlan {
		shops := farShops([]float64{0, 1}, 600, 1200)
		tun := DefaultTuning()
		tun.Variant = VariantEx
		tun.MaxDistanceToAvailableShop = 5
		tun.MinAvailableShopCount = minNear
		plan, err := NewDayScheduler(tun).Build(context.Background(), DayInput{
			ModelTime: 480,
			Shops:     shops,
			Classes:   []*courier.Type{dayCar(t)},
		})
		require.NoError(t, err)
		require.Len(t, requireShippedOnce(t, plan), 4)
		return plan
	}

	// The far shop is out of range, so a second courier serves it.
	plan := run(1)
	require.Len(t, plan.Couriers, 2)
	for _, c := range plan.Couriers {
		require.Equal(t, 1, c.Shipments)
	}

	// Too few shops nearby: the courier may drive to the nearest others.
	plan = run(2)
	require.Len(t, plan.Couriers, 1)
	require.Equal(t, 2, plan.Couriers[0].Shipments)
	require.NotEqual(t, plan.Shipments[0].Shop.ID, plan.Shipments[1].Shop.ID)
}

func TestDaySchedulerRollbackClosesOnlyItsClass(t *testing.T) {
	bike := carType(t, func(p *courier.Profile) {
		p.ID, p.Name, p.Vehicle, p.Geo = 2, "Bicycle", "bicycle", "cycling"
		p.HourlyRate = 300
		p.ReturnToShop = true
		p.WorkStart, p.WorkEnd = "09:00", "21:00"
	})
	plan, err := NewDayScheduler(DefaultTuning()).Build(context.Background(), DayInput{
		ModelTime: 480,
		Shops:     []*Shop{lineShop(6, 600, 720)},
		Classes:   []*courier.Type{dayCar(t), bike},
		Taxis:     []*courier.Type{taxiType(t)},
	})
	require.NoError(t, err)
	// The car rollback does not keep the bicycle class from opening.
	require.Equal(t, 2, plan.Stats.RolledBack)
	require.Len(t, requireShippedOnce(t, plan), 6)
	for _, s := range plan.Shipments {
		require.True(t, s.Type.IsTaxi())
	}
}
