package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"courierdispatch/internal/courier"
)

func TestCoverBuilderPartitionsOrders(t *testing.T) {
	sh := lineShop(7, 600, 660)
	for _, i := range []int{3, 4, 5} {
		sh.Orders[i].TimeFrom, sh.Orders[i].TimeTo = 900, 960
	}
	sh.Orders[6].Vehicles = courier.NewVehicleSet(courier.OnFoot)
	c := mustContext(t, sh, carType(t, nil), 480)

	cov, err := NewCoverBuilder(c, 0, 0).Build()
	require.NoError(t, err)

	var union Key
	for _, s := range cov.Shipments {
		require.False(t, union.Overlaps(s.Key), "order shipped twice")
		union = union.Union(s.Key)
	}
	require.Equal(t, KeyOf(0, 1, 2, 3, 4, 5), union)
	require.Len(t, cov.Shipments, 2)
	require.Less(t, cov.Shipments[0].StartDelivery, cov.Shipments[1].StartDelivery)
	require.Len(t, cov.Unshipped, 1)
	require.Equal(t, sh.Orders[6], cov.Unshipped[0])
	require.InDelta(t, cov.Shipments[0].Cost+cov.Shipments[1].Cost, cov.Cost(), 1e-9)

	for _, o := range sh.Orders {
		require.False(t, o.Completed)
	}
}

func TestCoverBuilderCapsCompanions(t *testing.T) {
	c := mustContext(t, lineShop(6, 600, 720), carType(t, func(p *courier.Profile) { p.MaxOrderCount = 2 }), 480)
	b := NewCoverBuilder(c, 1, 0)

	cov, err := b.Build()
	require.NoError(t, err)
	require.Len(t, cov.Shipments, 3)
	for _, s := range cov.Shipments {
		require.Equal(t, 2, s.OrderCount())
	}
	require.Empty(t, cov.Unshipped)
	require.NotNil(t, b.Grower())
}

func TestCoverBuilderNil(t *testing.T) {
	var b *CoverBuilder
	_, err := b.Build()
	require.ErrorIs(t, err, ErrNilContext)
}
