// Package dispatch runs the engine for the HTTP server and the planner
// command: input conversion, persistence and result rendering.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"courierdispatch/internal/config"
	"courierdispatch/internal/courier"
	"courierdispatch/internal/fleet"
	"courierdispatch/internal/geo"
	"courierdispatch/internal/logger"
	"courierdispatch/internal/metrics"
	"courierdispatch/internal/model"
	"courierdispatch/internal/opt"
	"courierdispatch/internal/store"
)

var (
	ErrLoad       = errors.New("load day batch")
	ErrNotCreated = errors.New("plan not created")
	ErrSave       = errors.New("save plan")
)

type Service struct {
	Store     store.Store
	Catalogue *courier.Catalogue
	Scheduler *opt.DayScheduler
	Providers map[geo.Kind]geo.Provider
	Classes   []*courier.Type
	Taxis     []*courier.Type
	// Fleet receives built plans for the average cost index; may be nil.
	Fleet *fleet.Registry
	Now   func() time.Time
}

// New wires a service from configuration.
func New(cfg *config.Config, st store.Store, reg *fleet.Registry) (*Service, error) {
	tun, err := cfg.Tuning.ToTuning()
	if err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	cat, err := cfg.Catalogue()
	if err != nil {
		return nil, err
	}
	classes, err := cat.Resolve(cfg.Couriers.Classes)
	if err != nil {
		return nil, fmt.Errorf("courier classes: %w", err)
	}
	taxis, err := cat.Resolve(cfg.Couriers.Taxis)
	if err != nil {
		return nil, fmt.Errorf("taxis: %w", err)
	}
	return &Service{
		Store:     st,
		Catalogue: cat,
		Scheduler: opt.NewDayScheduler(tun),
		Providers: cfg.Geo.Providers(),
		Classes:   classes,
		Taxis:     taxis,
		Fleet:     reg,
		Now:       time.Now,
	}, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// CheckDelivery checks or optimizes one shipment. Failures are reported
// through the response code, never as an error.
func (s *Service) CheckDelivery(ctx context.Context, req model.DeliveryCheckRequest) (resp model.DeliveryCheckResponse) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("delivery check panicked", "error", r)
			resp = model.DeliveryCheckResponse{Code: opt.CodeInternal, Message: fmt.Sprint(r)}
		}
		metrics.DeliveryChecks.WithLabelValues(resultLabel(resp.Code)).Inc()
	}()

	invalid := func(err error) model.DeliveryCheckResponse {
		return model.DeliveryCheckResponse{Code: opt.CodeInvalidInput, Message: err.Error()}
	}
	t, ok := s.Catalogue.ByID(req.ServiceID)
	if !ok {
		return invalid(fmt.Errorf("unknown courier type %d", req.ServiceID))
	}
	calc, err := model.ParseCalcTime(req.CalcTime)
	if err != nil {
		return invalid(err)
	}
	clock := model.DayOf(calc)
	orders := req.Orders
	if orders == nil {
		orders = req.Shop.Orders
	}
	if len(orders) == 0 || len(orders) > opt.MaxPathLength {
		return invalid(fmt.Errorf("need 1..%d orders, got %d", opt.MaxPathLength, len(orders)))
	}
	shop, err := req.Shop.ToShop(clock, orders)
	if err != nil {
		return invalid(err)
	}
	shop.BuildGeo(s.Providers)
	c, err := opt.NewContext(shop, t, clock.Minutes(calc))
	if err != nil {
		return invalid(err)
	}
	if req.IsLoop != nil {
		c.Loop = *req.IsLoop
	}
	idx := make([]int, len(shop.Orders))
	for i := range idx {
		idx[i] = i
	}
	var sh *opt.Shipment
	if req.Optimized {
		sh = c.SolveSalesman(idx)
	} else {
		sh, _ = c.Check(idx)
	}
	if sh == nil {
		return model.DeliveryCheckResponse{Code: opt.CodeInfeasible, Message: "delivery is not feasible"}
	}
	return model.DeliveryCheckResponse{Delivery: model.DeliveryFrom(sh, clock), Code: opt.CodeOK}
}

func resultLabel(code int) string {
	switch code {
	case opt.CodeOK:
		return "ok"
	case opt.CodeInfeasible:
		return "infeasible"
	case opt.CodeInvalidInput:
		return "invalid"
	}
	return "internal"
}

// BuildPlan plans one service day. Shops come from the request when given,
// otherwise from the store, in which case placed orders are marked shipped
// there. The plan, its run stats and the fleet cost index are updated.
func (s *Service) BuildPlan(ctx context.Context, req model.PlanRequest) (model.Plan, *opt.DayPlan, error) {
	clock, err := model.ParseDay(req.PlanDate, time.UTC)
	if err != nil {
		return model.Plan{}, nil, fmt.Errorf("%w: %w", opt.ErrInvalidInput, err)
	}
	var modelTime float64
	if req.CalcTime != "" {
		if modelTime, err = clock.ParseTime(req.CalcTime); err != nil {
			return model.Plan{}, nil, fmt.Errorf("%w: %w", opt.ErrInvalidInput, err)
		}
	}
	sched := s.Scheduler
	if req.Variant != "" {
		v, err := opt.ParseVariant(req.Variant)
		if err != nil {
			return model.Plan{}, nil, fmt.Errorf("%w: %w", opt.ErrInvalidInput, err)
		}
		tun := sched.Tuning()
		tun.Variant = v
		sched = opt.NewDayScheduler(tun)
	}

	shopsIn := req.Shops
	fromStore := len(shopsIn) == 0
	if fromStore {
		if shopsIn, err = s.Store.LoadShops(ctx, req.ServiceID, req.PlanDate); err != nil {
			return model.Plan{}, nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
	}
	shops := make([]*opt.Shop, 0, len(shopsIn))
	for _, in := range shopsIn {
		sh, err := in.ToShop(clock, nil)
		if err != nil {
			return model.Plan{}, nil, fmt.Errorf("%w: %w", opt.ErrInvalidInput, err)
		}
		shops = append(shops, sh)
	}

	day, err := sched.Build(ctx, opt.DayInput{
		ServiceID: req.ServiceID,
		PlanDate:  req.PlanDate,
		ModelTime: modelTime,
		Shops:     shops,
		Classes:   s.Classes,
		Taxis:     s.Taxis,
		Providers: s.Providers,
	})
	if err != nil {
		return model.Plan{}, day, err
	}
	if !day.IsCreated {
		return model.Plan{}, day, fmt.Errorf("%w: code %d: %v", ErrNotCreated, day.Code, day.Err)
	}

	now := s.now()
	out := model.PlanFrom(day, clock, now)
	if err := s.Store.SavePlan(ctx, out); err != nil {
		return out, day, fmt.Errorf("%w: %w", ErrSave, err)
	}
	if fromStore {
		var shipped []string
		for _, sh := range day.Shipments {
			for _, o := range sh.Orders {
				shipped = append(shipped, o.ID)
			}
		}
		if err := s.Store.MarkShipped(ctx, req.ServiceID, req.PlanDate, shipped); err != nil {
			return out, day, fmt.Errorf("%w: mark shipped: %w", ErrSave, err)
		}
	}
	run := opt.RunRecord{
		Service:    strconv.Itoa(req.ServiceID),
		PlanDate:   req.PlanDate,
		Variant:    out.Variant,
		Stats:      day.Stats,
		RecordedAt: now.UTC(),
	}
	if err := s.Store.SaveRun(ctx, run); err != nil {
		logger.Warnw("save run stats failed", "plan", out.ID, "error", err)
	}
	if s.Fleet != nil {
		s.Fleet.RecordPlan(day)
	}
	return out, day, nil
}

// Cover covers one shop batch with shipments of one courier type.
func (s *Service) Cover(ctx context.Context, req model.CoverRequest) (model.CoverResponse, error) {
	t, ok := s.Catalogue.ByID(req.ServiceID)
	if !ok {
		return model.CoverResponse{Code: opt.CodeInvalidInput}, fmt.Errorf("%w: unknown courier type %d", opt.ErrInvalidInput, req.ServiceID)
	}
	calc, err := model.ParseCalcTime(req.CalcTime)
	if err != nil {
		return model.CoverResponse{Code: opt.CodeInvalidInput}, fmt.Errorf("%w: %w", opt.ErrInvalidInput, err)
	}
	clock := model.DayOf(calc)
	shop, err := req.Shop.ToShop(clock, nil)
	if err != nil {
		return model.CoverResponse{Code: opt.CodeInvalidInput}, fmt.Errorf("%w: %w", opt.ErrInvalidInput, err)
	}
	shop.BuildGeo(s.Providers)
	c, err := opt.NewContext(shop, t, clock.Minutes(calc))
	if err != nil {
		return model.CoverResponse{Code: opt.CodeInvalidInput}, fmt.Errorf("%w: %w", opt.ErrInvalidInput, err)
	}
	if err := ctx.Err(); err != nil {
		return model.CoverResponse{Code: opt.CodeInternal}, err
	}

	tun := s.Scheduler.Tuning()
	companions := req.MaxCompanions
	if companions <= 0 {
		companions = tun.MaxOrdersForCoverSolution
	}
	maxLen := tun.MaxPathLength
	if t.MaxOrderCount < maxLen {
		maxLen = t.MaxOrderCount
	}
	cov, err := opt.NewCoverBuilder(c, companions, maxLen).Build()
	if err != nil {
		return model.CoverResponse{Code: opt.CodeInternal}, err
	}

	resp := model.CoverResponse{Shipments: []model.ShipmentOut{}, Unshipped: []string{}, Cost: decimal.Zero, Code: opt.CodeOK}
	for _, sh := range cov.Shipments {
		out := model.ShipmentFrom(sh, clock)
		resp.Shipments = append(resp.Shipments, out)
		resp.Cost = resp.Cost.Add(out.Cost)
	}
	for _, o := range cov.Unshipped {
		resp.Unshipped = append(resp.Unshipped, o.ID)
	}
	return resp, nil
}
