package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlanRuns counts day plan builds by variant and outcome
	PlanRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_plan_runs_total", Help: "Day plan builds by variant and outcome."},
		[]string{"variant", "status"},
	)
	// PlanDuration tracks day plan build time in seconds
	PlanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "dispatch_plan_duration_seconds", Help: "Day plan build duration in seconds.", Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}},
		[]string{"variant"},
	)
	// PoolShipments counts candidate shipments built per vehicle
	PoolShipments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_pool_shipments_total", Help: "Candidate shipments built per vehicle."},
		[]string{"vehicle", "source"},
	)
	// ShopFailures counts shops whose candidate build failed
	ShopFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_shop_failures_total", Help: "Shops whose candidate build failed."},
		[]string{"stage"},
	)
	// DeliveryChecks counts single delivery checks by result
	DeliveryChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_delivery_checks_total", Help: "Delivery checks by result."},
		[]string{"result"},
	)
	// CourierUpdates counts live courier status updates
	CourierUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_courier_updates_total", Help: "Courier status updates by source."},
		[]string{"source"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PlanRuns)
		Registry.MustRegister(PlanDuration)
		Registry.MustRegister(PoolShipments)
		Registry.MustRegister(ShopFailures)
		Registry.MustRegister(DeliveryChecks)
		Registry.MustRegister(CourierUpdates)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
