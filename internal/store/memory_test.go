package store

import (
	"context"
	"errors"
	"testing"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/model"
	"courierdispatch/internal/opt"
)

func TestMemoryShopsRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	shops := []model.ShopIn{{ID: "s1", Orders: []model.OrderIn{{ID: "a"}, {ID: "b"}}}}
	if err := m.SaveShops(ctx, 1, "2026-10-16", shops); err != nil {
		t.Fatalf("SaveShops: %v", err)
	}
	shops[0].Orders[0].ID = "mutated"

	got, err := m.LoadShops(ctx, 1, "2026-10-16")
	if err != nil {
		t.Fatalf("LoadShops: %v", err)
	}
	if got[0].Orders[0].ID != "a" {
		t.Fatalf("stored batch aliased caller slice: %+v", got[0].Orders)
	}
	if err := m.MarkShipped(ctx, 1, "2026-10-16", []string{"b"}); err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}
	got, _ = m.LoadShops(ctx, 1, "2026-10-16")
	if got[0].Orders[0].Completed || !got[0].Orders[1].Completed {
		t.Fatalf("unexpected completion flags: %+v", got[0].Orders)
	}
	if _, err := m.LoadShops(ctx, 2, "2026-10-16"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryPlans(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, p := range []model.Plan{
		{ID: "p1", ServiceID: 1, PlanDate: "2026-10-15"},
		{ID: "p2", ServiceID: 1, PlanDate: "2026-10-16"},
		{ID: "p3", ServiceID: 2, PlanDate: "2026-10-16"},
	} {
		if err := m.SavePlan(ctx, p); err != nil {
			t.Fatalf("SavePlan: %v", err)
		}
	}
	if err := m.SavePlan(ctx, model.Plan{}); err == nil {
		t.Fatalf("plan without id accepted")
	}
	got, err := m.GetPlan(ctx, "p2")
	if err != nil || got.PlanDate != "2026-10-16" {
		t.Fatalf("GetPlan: %+v %v", got, err)
	}
	if _, err := m.GetPlan(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	list, _ := m.ListPlans(ctx, 1, "")
	if len(list) != 2 || list[0].ID != "p2" {
		t.Fatalf("ListPlans newest first: %+v", list)
	}
	list, _ = m.ListPlans(ctx, 1, "2026-10-15")
	if len(list) != 1 || list[0].ID != "p1" {
		t.Fatalf("ListPlans by date: %+v", list)
	}
}

func TestMemoryCourierTypesAndRuns(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.SaveCourierTypes(ctx, courier.DefaultProfiles()); err != nil {
		t.Fatalf("SaveCourierTypes: %v", err)
	}
	types, _ := m.ListCourierTypes(ctx)
	if len(types) != 5 || types[0].ID != 1 || types[4].ID != 14 {
		t.Fatalf("ListCourierTypes: %+v", types)
	}

	_ = m.SaveRun(ctx, opt.RunRecord{Service: "1", PlanDate: "2026-10-16", Variant: "simple"})
	_ = m.SaveRun(ctx, opt.RunRecord{Service: "1", PlanDate: "2026-10-16", Variant: "ex"})
	runs, _ := m.ListRuns(ctx, "1", "2026-10-16")
	if len(runs) != 2 || runs[0].Variant != "ex" {
		t.Fatalf("ListRuns: %+v", runs)
	}
}
