// Package fleet tracks the live state of couriers and the per-order cost
// seen in recent plans.
package fleet

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
	"courierdispatch/internal/opt"
)

var ErrInvalidStatus = errors.New("invalid courier status")

// Status is one courier's reported state.
type Status struct {
	CourierID string          `json:"courierId"`
	Vehicle   courier.Vehicle `json:"vehicle"`
	ShopID    string          `json:"shopId,omitempty"`
	Status    courier.Status  `json:"status"`
	Location  geo.LatLng      `json:"location"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type costKey struct {
	shop    string
	vehicle courier.Vehicle
}

type mean struct {
	sum float64
	n   int
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	couriers map[string]Status
	costs    map[costKey]*mean
	now      func() time.Time
}

func New() *Registry {
	return &Registry{
		couriers: map[string]Status{},
		costs:    map[costKey]*mean{},
		now:      time.Now,
	}
}

// Refresh applies status updates. Updates older than the stored state are
// ignored. It returns how many updates were applied; an invalid update
// aborts the batch before anything is applied.
func (r *Registry) Refresh(updates ...Status) (int, error) {
	for _, u := range updates {
		if u.CourierID == "" {
			return 0, fmt.Errorf("%w: missing courier id", ErrInvalidStatus)
		}
		if !u.Status.Valid() {
			return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, u.Status)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	applied := 0
	for _, u := range updates {
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = r.now().UTC()
		}
		if old, ok := r.couriers[u.CourierID]; ok && u.UpdatedAt.Before(old.UpdatedAt) {
			continue
		}
		r.couriers[u.CourierID] = u
		applied++
	}
	return applied, nil
}

func (r *Registry) Get(id string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.couriers[id]
	return s, ok
}

// List returns couriers ordered by id. An empty filter matches every status.
func (r *Registry) List(filter courier.Status) []Status {
	r.mu.Lock()
	out := make([]Status, 0, len(r.couriers))
	for _, s := range r.couriers {
		if filter == "" || s.Status == filter {
			out = append(out, s)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CourierID < out[j].CourierID })
	return out
}

// RecordPlan feeds the per-order cost of every planned shipment into the
// average cost index.
func (r *Registry) RecordPlan(plan *opt.DayPlan) {
	if plan == nil || !plan.IsCreated {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range plan.Shipments {
		if s.Shop == nil || s.Type == nil {
			continue
		}
		for _, k := range []costKey{{shop: s.Shop.ID, vehicle: s.Type.Vehicle}, {vehicle: s.Type.Vehicle}} {
			m := r.costs[k]
			if m == nil {
				m = &mean{}
				r.costs[k] = m
			}
			m.sum += s.Cost
			m.n += s.OrderCount()
		}
	}
}

// AverageCost returns the mean per-order cost for a shop and vehicle and the
// number of orders behind it. A shop without history falls back to the
// vehicle's overall mean.
func (r *Registry) AverageCost(shopID string, v courier.Vehicle) (float64, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.costs[costKey{shop: shopID, vehicle: v}]
	if m == nil || m.n == 0 {
		m = r.costs[costKey{vehicle: v}]
	}
	if m == nil || m.n == 0 {
		return 0, 0, false
	}
	return m.sum / float64(m.n), m.n, true
}
