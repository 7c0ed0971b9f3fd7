package store

import (
	"context"
	"errors"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/model"
	"courierdispatch/internal/opt"
)

// Store is the persistence interface used by the API server and the
// planner.
type Store interface {
	// Day batches: shops with their orders for one service and date.
	SaveShops(ctx context.Context, serviceID int, planDate string, shops []model.ShopIn) error
	LoadShops(ctx context.Context, serviceID int, planDate string) ([]model.ShopIn, error)
	MarkShipped(ctx context.Context, serviceID int, planDate string, orderIDs []string) error

	// Courier type catalogue
	SaveCourierTypes(ctx context.Context, profiles []courier.Profile) error
	ListCourierTypes(ctx context.Context) ([]courier.Profile, error)

	// Plans
	SavePlan(ctx context.Context, plan model.Plan) error
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	ListPlans(ctx context.Context, serviceID int, planDate string) ([]model.PlanSummary, error)

	// Engine run metrics
	SaveRun(ctx context.Context, run opt.RunRecord) error
	ListRuns(ctx context.Context, service, planDate string) ([]opt.RunRecord, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")
