package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"courierdispatch/internal/courier"
)

func TestEnumeratorThreeOrdersEndToEnd(t *testing.T) {
	c := mustContext(t, lineShop(3, 600, 720), carType(t, nil), 480)

	all, err := NewEnumerator(c).BuildUpTo(3)
	require.NoError(t, err)
	require.Len(t, all, 7)

	kept := FilterDominated(all)
	require.Len(t, kept, 1)
	require.Equal(t, KeyOf(0, 1, 2), kept[0].Key)

	best := -1.0
	for _, p := range Permutations(3) {
		s, ok := c.Check([]int{int(p[0]), int(p[1]), int(p[2])})
		require.True(t, ok)
		if best < 0 || s.Cost < best {
			best = s.Cost
		}
	}
	require.InDelta(t, best, kept[0].Cost, 1e-9)
}

func TestBuildExCounts(t *testing.T) {
	e := NewEnumerator(mustContext(t, lineShop(7, 600, 720), carType(t, nil), 480))
	for l := 1; l <= 6; l++ {
		out, err := e.BuildEx(l, 0, 1)
		require.NoError(t, err)
		require.Len(t, out, binomial(7, l), "length %d", l)
		for _, s := range out {
			require.Equal(t, l, s.Key.Len())
		}
	}
}

func TestBuildExPartitionsMatchSerial(t *testing.T) {
	e := NewEnumerator(mustContext(t, lineShop(7, 600, 720), carType(t, nil), 480))
	for l := 1; l <= 7; l++ {
		serial, err := e.BuildEx(l, 0, 1)
		require.NoError(t, err)

		var parts [][]*Shipment
		for w := 0; w < 3; w++ {
			p, err := e.BuildEx(l, w, 3)
			require.NoError(t, err)
			parts = append(parts, p)
		}
		merged := keysOf(mergeByKey(parts...))
		want := keysOf(serial)
		require.Len(t, merged, len(want), "length %d", l)
		for k, s := range want {
			require.Contains(t, merged, k)
			require.InDelta(t, s.Cost, merged[k].Cost, 1e-9)
		}
	}
}

func TestLongShipmentsAreOptimal(t *testing.T) {
	sh := lineShop(7, 600, 720)
	sh.Orders[2].TimeFrom, sh.Orders[2].TimeTo = 620, 640
	c := mustContext(t, sh, carType(t, nil), 480)

	out, err := NewEnumerator(c).BuildEx(6, 0, 1)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, s := range out {
		want := c.SolveSalesman(s.Key.Indices())
		require.NotNil(t, want)
		require.InDelta(t, want.Cost, s.Cost, 1e-9, "set %v", s.Key.Indices())
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	e := NewEnumerator(mustContext(t, lineShop(8, 600, 720), carType(t, nil), 480))
	for _, l := range []int{4, 6} {
		serial, err := e.BuildEx(l, 0, 1)
		require.NoError(t, err)
		par, err := e.Parallel(context.Background(), l, 4)
		require.NoError(t, err)

		got, want := keysOf(par), keysOf(serial)
		require.Len(t, got, len(want))
		for k, s := range want {
			require.InDelta(t, s.Cost, got[k].Cost, 1e-9)
		}
	}
}

func TestBuildExStructuralErrors(t *testing.T) {
	e := NewEnumerator(mustContext(t, lineShop(3, 600, 720), carType(t, nil), 480))

	_, err := e.BuildEx(0, 0, 1)
	require.ErrorIs(t, err, ErrInvalidLength)
	_, err = e.BuildEx(MaxPathLength+1, 0, 1)
	require.ErrorIs(t, err, ErrInvalidLength)
	_, err = e.BuildEx(2, 0, 0)
	require.ErrorIs(t, err, ErrInvalidPartition)
	_, err = e.BuildEx(2, -1, 1)
	require.ErrorIs(t, err, ErrInvalidPartition)

	var nilEnum *Enumerator
	_, err = nilEnum.BuildEx(1, 0, 1)
	require.ErrorIs(t, err, ErrNilContext)

	out, err := e.BuildEx(4, 0, 1)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestBuildExRespectsLimits(t *testing.T) {
	e := NewEnumerator(mustContext(t, lineShop(4, 600, 720), carType(t, func(p *courier.Profile) { p.MaxOrderCount = 2 }), 480))
	out, err := e.BuildEx(3, 0, 1)
	require.NoError(t, err)
	require.Empty(t, out)

	all, err := e.BuildUpTo(MaxPathLength)
	require.NoError(t, err)
	require.Len(t, all, 4+6)

	big := NewEnumerator(mustContext(t, lineShop(maxLongOrders+1, 600, 720), carType(t, nil), 480))
	_, err = big.BuildEx(6, 0, 1)
	require.ErrorIs(t, err, ErrTooManyOrders)
}

func TestBuildExSkipsInfeasible(t *testing.T) {
	sh := lineShop(4, 600, 720)
	sh.Orders[3].TimeFrom, sh.Orders[3].TimeTo = 900, 960
	sh.Orders[1].Completed = true
	e := NewEnumerator(mustContext(t, sh, carType(t, nil), 480))

	pairs, err := e.BuildEx(2, 0, 1)
	require.NoError(t, err)
	got := keysOf(pairs)
	require.Len(t, got, 1)
	require.Contains(t, got, KeyOf(0, 2))
}
