package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
	"courierdispatch/internal/logger"
	"courierdispatch/internal/metrics"
)

// Status codes carried by plans and wire responses.
const (
	CodeOK           = 0
	CodeInfeasible   = 1
	CodeInvalidInput = 2
	CodeInternal     = 3
)

var ErrInvalidInput = errors.New("invalid input")

// Variant selects the shift acceptance rule of the day scheduler.
type Variant int

const (
	// VariantSimple discards a courier whose shift is shorter than the
	// minimum work time and stops opening couriers of that class.
	VariantSimple Variant = iota
	// VariantEx keeps short shifts.
	VariantEx
)

func (v Variant) String() string {
	if v == VariantEx {
		return "ex"
	}
	return "simple"
}

// ParseVariant maps "simple" or "ex" to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple":
		return VariantSimple, nil
	case "ex":
		return VariantEx, nil
	}
	return 0, fmt.Errorf("unknown variant %q", s)
}

// Tuning holds the global scheduling constants. Distances are kilometers
// and times minutes.
type Tuning struct {
	MaxDistanceToAvailableShop  float64
	MinAvailableShopCount       int
	CourierWorkTimeLimit        float64
	CourierMinWorkTime          float64
	MaxOrdersForOptimalSolution int
	MaxOrdersForCoverSolution   int
	MaxPathLength               int
	Workers                     int
	MaxCouriersPerClass         int
	Variant                     Variant
}

// DefaultTuning returns the production defaults.
func DefaultTuning() Tuning {
	return Tuning{
		MaxDistanceToAvailableShop:  5,
		MinAvailableShopCount:       3,
		CourierWorkTimeLimit:        12 * 60,
		CourierMinWorkTime:          4 * 60,
		MaxOrdersForOptimalSolution: 14,
		MaxOrdersForCoverSolution:   12,
		MaxPathLength:               MaxPathLength,
		Workers:                     4,
		MaxCouriersPerClass:         500,
		Variant:                     VariantSimple,
	}
}

func (t Tuning) normalized() Tuning {
	def := DefaultTuning()
	if t.MaxPathLength <= 0 || t.MaxPathLength > MaxPathLength {
		t.MaxPathLength = def.MaxPathLength
	}
	if t.Workers <= 0 {
		t.Workers = def.Workers
	}
	if t.CourierWorkTimeLimit <= 0 {
		t.CourierWorkTimeLimit = def.CourierWorkTimeLimit
	}
	if t.MinAvailableShopCount < 0 {
		t.MinAvailableShopCount = 0
	}
	return t
}

// DayInput is everything one day plan needs.
type DayInput struct {
	ServiceID int
	PlanDate  string
	ModelTime float64
	Shops     []*Shop
	// Classes are hourly courier types in priority order.
	Classes []*courier.Type
	// Taxis are the metered services offered the leftovers.
	Taxis []*courier.Type
	// Providers estimate courier legs between shops and fill missing shop
	// matrices.
	Providers map[geo.Kind]geo.Provider
}

// RunStats summarizes one plan build.
type RunStats struct {
	PoolSize   int     `json:"poolSize"`
	Orders     int     `json:"orders"`
	Shipments  int     `json:"shipments"`
	Couriers   int     `json:"couriers"`
	Taxi       int     `json:"taxiShipments"`
	Unshipped  int     `json:"unshipped"`
	RolledBack int     `json:"rolledBack"`
	Cost       float64 `json:"cost"`
	DurationMs int64   `json:"durationMs"`
}

// DayPlan is the result of a day build. When IsCreated is false the other
// fields must not be used.
type DayPlan struct {
	ID           string
	ServiceID    int
	PlanDate     string
	Variant      Variant
	Shipments    []*Shipment
	Couriers     []*courier.Courier
	Unshipped    []*Order
	ShipmentCost decimal.Decimal
	TotalCost    decimal.Decimal
	IsCreated    bool
	Code         int
	Err          error
	Stats        RunStats
}

// DayScheduler assigns a day's orders to couriers greedily by per-order
// cost.
type DayScheduler struct {
	tuning Tuning
}

func NewDayScheduler(t Tuning) *DayScheduler {
	return &DayScheduler{tuning: t.normalized()}
}

// Tuning returns the effective constants.
func (d *DayScheduler) Tuning() Tuning { return d.tuning }

type dayRun struct {
	d      *DayScheduler
	in     DayInput
	plan   *DayPlan
	marked []*Order
}

// Build plans the day. Orders of placed shipments are marked Completed; on
// failure every mark made by this call is undone.
func (d *DayScheduler) Build(ctx context.Context, in DayInput) (plan *DayPlan, err error) {
	started := time.Now()
	r := &dayRun{d: d, in: in}
	r.plan = &DayPlan{ID: uuid.NewString(), ServiceID: in.ServiceID, PlanDate: in.PlanDate, Variant: d.tuning.Variant}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("day plan: %w: %v", ErrUnexpected, rec)
			r.fail(CodeInternal, err)
		}
		status := "ok"
		if !r.plan.IsCreated {
			status = "failed"
		}
		metrics.PlanRuns.WithLabelValues(d.tuning.Variant.String(), status).Inc()
		metrics.PlanDuration.WithLabelValues(d.tuning.Variant.String()).Observe(time.Since(started).Seconds())
		r.plan.Stats.DurationMs = time.Since(started).Milliseconds()
		plan = r.plan
	}()

	if err := d.validate(in); err != nil {
		r.fail(CodeInvalidInput, err)
		return r.plan, err
	}
	for _, sh := range in.Shops {
		sh.Renumber()
		if len(in.Providers) > 0 {
			sh.BuildGeo(in.Providers)
		}
	}

	classPools, err := d.pools(ctx, in, in.Classes)
	if err != nil {
		r.fail(CodeInternal, err)
		return r.plan, err
	}
	taxiPools, err := d.pools(ctx, in, in.Taxis)
	if err != nil {
		r.fail(CodeInternal, err)
		return r.plan, err
	}
	for _, p := range append(append([]*Pool(nil), classPools...), taxiPools...) {
		r.plan.Stats.PoolSize += p.Size()
	}

	for _, p := range classPools {
		r.runClass(p)
	}
	r.runTaxis(taxiPools)
	r.finish()
	RecordRun(strconv.Itoa(in.ServiceID), in.PlanDate, d.tuning.Variant.String(), r.plan.Stats)
	logger.Infow("day plan built",
		"plan", r.plan.ID, "service", in.ServiceID, "date", in.PlanDate,
		"shipments", r.plan.Stats.Shipments, "couriers", r.plan.Stats.Couriers,
		"unshipped", r.plan.Stats.Unshipped, "cost", r.plan.TotalCost.String())
	return r.plan, nil
}

func (d *DayScheduler) validate(in DayInput) error {
	if len(in.Classes)+len(in.Taxis) == 0 {
		return fmt.Errorf("%w: no courier types", ErrInvalidInput)
	}
	for _, t := range append(append([]*courier.Type(nil), in.Classes...), in.Taxis...) {
		if t == nil {
			return fmt.Errorf("%w: nil courier type", ErrInvalidInput)
		}
	}
	for _, t := range in.Taxis {
		if !t.IsTaxi() {
			return fmt.Errorf("%w: %s is not a taxi", ErrInvalidInput, t.Vehicle)
		}
	}
	for i, sh := range in.Shops {
		if sh == nil {
			return fmt.Errorf("%w: nil shop at %d", ErrInvalidInput, i)
		}
		if err := checkCapacity(len(sh.Orders)); err != nil {
			return fmt.Errorf("shop %s: %w", sh.ID, err)
		}
	}
	return nil
}

func (d *DayScheduler) pools(ctx context.Context, in DayInput, types []*courier.Type) ([]*Pool, error) {
	out := make([]*Pool, 0, len(types))
	for _, t := range types {
		p, err := BuildPools(ctx, in.Shops, t, in.ModelTime, d.tuning)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *dayRun) fail(code int, err error) {
	for _, o := range r.marked {
		o.Completed = false
	}
	r.marked = nil
	r.plan.Shipments = nil
	r.plan.Couriers = nil
	r.plan.Unshipped = nil
	r.plan.IsCreated = false
	r.plan.Code = code
	r.plan.Err = err
}

func (r *dayRun) mark(s *Shipment) {
	for _, o := range s.Orders {
		o.Completed = true
		r.marked = append(r.marked, o)
	}
}

func (r *dayRun) unmark(ss []*Shipment) {
	for _, s := range ss {
		for _, o := range s.Orders {
			o.Completed = false
		}
	}
}

// runClass opens couriers of one class until a courier finds no work or a
// short shift closes the class.
func (r *dayRun) runClass(p *Pool) {
	tun := r.d.tuning
	for n := 1; tun.MaxCouriersPerClass <= 0 || n <= tun.MaxCouriersPerClass; n++ {
		c := courier.New(fmt.Sprintf("%s-%d", p.Type.Vehicle, n), p.Type)
		assigned := r.runShift(c, p)
		c.Status = courier.StatusOffDuty
		if len(assigned) == 0 {
			return
		}
		if tun.Variant == VariantSimple && c.WorkSpan() < tun.CourierMinWorkTime {
			r.unmark(assigned)
			r.plan.Stats.RolledBack += len(assigned)
			logger.Debugw("short shift rolled back", "courier", c.ID, "span", c.WorkSpan())
			return
		}
		r.plan.Couriers = append(r.plan.Couriers, c)
		r.plan.Shipments = append(r.plan.Shipments, assigned...)
	}
}

func (r *dayRun) runShift(c *courier.Courier, p *Pool) []*Shipment {
	var out []*Shipment
	for {
		best, start := r.pickNext(c, p)
		if best == nil {
			break
		}
		placed := best.Placed(start, c)
		placed.ID = uuid.NewString()
		r.mark(placed)
		out = append(out, placed)
		c.Advance(placed.LastStop(), start, placed.EndDelivery(), placed.OrderCount(), placed.Cost)
		if c.Elapsed() > r.d.tuning.CourierWorkTimeLimit {
			break
		}
	}
	return out
}

// pickNext returns the cheapest per-order shipment the courier can still
// start, with its start time.
func (r *dayRun) pickNext(c *courier.Courier, p *Pool) (*Shipment, float64) {
	var best *Shipment
	var bestStart float64
	for _, si := range r.reachable(c) {
		shop := r.in.Shops[si]
		arrive := c.Time
		if c.HasLocation {
			arrive += r.leg(c.Type.Kind, c.Location, shop.Location).Minutes()
		}
		for _, s := range p.Shops[si] {
			if s.anyCompleted() {
				continue
			}
			start, ok := fitCourier(s, arrive, c.Shift)
			if !ok {
				continue
			}
			if cheaperPerOrder(s, best) {
				best, bestStart = s, start
			}
			break
		}
	}
	return best, bestStart
}

// fitCourier moves a shipment's start to when the courier can begin it.
func fitCourier(s *Shipment, arrive float64, sh courier.Shift) (float64, bool) {
	start := math.Max(arrive, s.StartDeliveryInterval)
	if !s.Type.IsTaxi() {
		start = math.Max(start, sh.Start)
		if sh.InLunch(start) {
			start = sh.LunchEnd
		}
		if start+s.ExecutionTime > sh.End {
			return 0, false
		}
	}
	if start > s.EndDeliveryInterval {
		return 0, false
	}
	return start, true
}

// reachable lists the shops a courier may take work from. A fresh courier
// may start anywhere.
func (r *dayRun) reachable(c *courier.Courier) []int {
	n := len(r.in.Shops)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	if !c.HasLocation {
		return all
	}
	tun := r.d.tuning
	dist := make([]float64, n)
	var near []int
	for i, sh := range r.in.Shops {
		dist[i] = float64(r.leg(c.Type.Kind, c.Location, sh.Location).Distance) / 1000
		if dist[i] <= tun.MaxDistanceToAvailableShop {
			near = append(near, i)
		}
	}
	if len(near) >= tun.MinAvailableShopCount {
		return near
	}
	sort.SliceStable(all, func(a, b int) bool { return dist[all[a]] < dist[all[b]] })
	k := tun.MinAvailableShopCount
	if k > n {
		k = n
	}
	return all[:k]
}

func (r *dayRun) leg(kind geo.Kind, a, b geo.LatLng) geo.Point {
	if p, ok := r.in.Providers[kind]; ok {
		return p.Between(a, b)
	}
	return geo.NewHaversine(kind, 0, 0).Between(a, b)
}

// runTaxis offers every shop's leftovers to the taxi services, cheapest per
// order first, until nothing fits.
func (r *dayRun) runTaxis(pools []*Pool) {
	if len(pools) == 0 {
		return
	}
	taxis := make([]*courier.Courier, len(pools))
	for i, p := range pools {
		taxis[i] = courier.New(fmt.Sprintf("%s-1", p.Type.Vehicle), p.Type)
	}
	for si := range r.in.Shops {
		for {
			var best *Shipment
			var bestStart float64
			bestTaxi := -1
			for ti, p := range pools {
				for _, s := range p.Shops[si] {
					if s.anyCompleted() {
						continue
					}
					start, ok := fitCourier(s, r.in.ModelTime, taxis[ti].Shift)
					if !ok {
						continue
					}
					if cheaperPerOrder(s, best) {
						best, bestStart, bestTaxi = s, start, ti
					}
					break
				}
			}
			if best == nil {
				break
			}
			c := taxis[bestTaxi]
			placed := best.Placed(bestStart, c)
			placed.ID = uuid.NewString()
			r.mark(placed)
			r.plan.Shipments = append(r.plan.Shipments, placed)
			r.plan.Stats.Taxi++
			c.Advance(placed.LastStop(), bestStart, placed.EndDelivery(), placed.OrderCount(), placed.Cost)
		}
	}
	for _, c := range taxis {
		if c.Shipments > 0 {
			r.plan.Couriers = append(r.plan.Couriers, c)
		}
	}
}

func (r *dayRun) finish() {
	p := r.plan
	for _, sh := range r.in.Shops {
		p.Stats.Orders += len(sh.Orders)
		for _, o := range sh.Orders {
			if !o.Completed {
				p.Unshipped = append(p.Unshipped, o)
			}
		}
	}
	ship := decimal.Zero
	for _, s := range p.Shipments {
		ship = ship.Add(decimal.NewFromFloat(s.Cost))
	}
	total := decimal.Zero
	for _, c := range p.Couriers {
		total = total.Add(decimal.NewFromFloat(c.PayrollCost()))
	}
	p.ShipmentCost = ship.Round(2)
	p.TotalCost = total.Round(2)
	p.IsCreated = true
	p.Code = CodeOK
	p.Stats.Shipments = len(p.Shipments)
	p.Stats.Couriers = len(p.Couriers)
	p.Stats.Unshipped = len(p.Unshipped)
	p.Stats.Cost, _ = p.TotalCost.Float64()
}
