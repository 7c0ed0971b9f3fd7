//go:build postgres_integration

package store

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"courierdispatch/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	ctx := t.Context()
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	shops := []model.ShopIn{{
		ID: "s1", Location: model.GeoPoint{Lat: 55.75, Lng: 37.61},
		Orders: []model.OrderIn{{
			ID: "o1", Location: model.GeoPoint{Lat: 55.76, Lng: 37.62}, Weight: 2,
			Window:   model.TimeWindow{Start: "2026-10-16T10:00:00Z", End: "2026-10-16T12:00:00Z"},
			Vehicles: []string{"car"},
		}},
	}}
	if err := p.SaveShops(ctx, 9001, "2026-10-16", shops); err != nil {
		t.Fatalf("SaveShops: %v", err)
	}
	if err := p.MarkShipped(ctx, 9001, "2026-10-16", []string{"o1"}); err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}
	got, err := p.LoadShops(ctx, 9001, "2026-10-16")
	if err != nil || len(got) != 1 || len(got[0].Orders) != 1 || !got[0].Orders[0].Completed {
		t.Fatalf("LoadShops: %+v %v", got, err)
	}

	plan := model.Plan{ID: uuid.NewString(), ServiceID: 9001, PlanDate: "2026-10-16", Variant: "simple", CreatedAt: time.Now().UTC(), TotalCost: decimal.NewFromInt(450)}
	if err := p.SavePlan(ctx, plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	back, err := p.GetPlan(ctx, plan.ID)
	if err != nil || !back.TotalCost.Equal(plan.TotalCost) {
		t.Fatalf("GetPlan: %+v %v", back, err)
	}
	if _, err := p.ListPlans(ctx, 9001, "2026-10-16"); err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
}
