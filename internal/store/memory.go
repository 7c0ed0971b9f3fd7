package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/model"
	"courierdispatch/internal/opt"
)

type batchKey struct {
	service int
	date    string
}

type runKey struct {
	service, date, variant string
}

// Memory is a simple in-memory store used when no database DSN is set.
type Memory struct {
	mu      sync.Mutex
	batches map[batchKey][]model.ShopIn
	types   map[int]courier.Profile
	plans   map[string]model.Plan
	order   []string // plan ids in insertion order
	runs    map[runKey]opt.RunRecord
}

func NewMemory() *Memory {
	return &Memory{
		batches: map[batchKey][]model.ShopIn{},
		types:   map[int]courier.Profile{},
		plans:   map[string]model.Plan{},
		runs:    map[runKey]opt.RunRecord{},
	}
}

func (m *Memory) SaveShops(ctx context.Context, serviceID int, planDate string, shops []model.ShopIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batchKey{serviceID, planDate}] = cloneShops(shops)
	return nil
}

func (m *Memory) LoadShops(ctx context.Context, serviceID int, planDate string) ([]model.ShopIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shops, ok := m.batches[batchKey{serviceID, planDate}]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneShops(shops), nil
}

func (m *Memory) MarkShipped(ctx context.Context, serviceID int, planDate string, orderIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	shops, ok := m.batches[batchKey{serviceID, planDate}]
	if !ok {
		return ErrNotFound
	}
	ids := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		ids[id] = true
	}
	for i := range shops {
		for j := range shops[i].Orders {
			if ids[shops[i].Orders[j].ID] {
				shops[i].Orders[j].Completed = true
			}
		}
	}
	return nil
}

func (m *Memory) SaveCourierTypes(ctx context.Context, profiles []courier.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range profiles {
		m.types[p.ID] = p
	}
	return nil
}

func (m *Memory) ListCourierTypes(ctx context.Context) ([]courier.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]courier.Profile, 0, len(m.types))
	for _, p := range m.types {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SavePlan(ctx context.Context, plan model.Plan) error {
	if plan.ID == "" {
		return fmt.Errorf("save plan: missing id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[plan.ID]; !ok {
		m.order = append(m.order, plan.ID)
	}
	m.plans[plan.ID] = plan
	return nil
}

func (m *Memory) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, serviceID int, planDate string) ([]model.PlanSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PlanSummary{}
	for i := len(m.order) - 1; i >= 0; i-- {
		p := m.plans[m.order[i]]
		if p.ServiceID != serviceID || (planDate != "" && p.PlanDate != planDate) {
			continue
		}
		out = append(out, p.Summary())
	}
	return out, nil
}

func (m *Memory) SaveRun(ctx context.Context, run opt.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runKey{run.Service, run.PlanDate, run.Variant}] = run
	return nil
}

func (m *Memory) ListRuns(ctx context.Context, service, planDate string) ([]opt.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []opt.RunRecord{}
	for k, r := range m.runs {
		if k.service == service && (planDate == "" || k.date == planDate) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlanDate != out[j].PlanDate {
			return out[i].PlanDate < out[j].PlanDate
		}
		return out[i].Variant < out[j].Variant
	})
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func cloneShops(in []model.ShopIn) []model.ShopIn {
	out := make([]model.ShopIn, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Orders = append([]model.OrderIn(nil), s.Orders...)
	}
	return out
}
