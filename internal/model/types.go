package model

import (
	"time"

	"github.com/shopspring/decimal"

	"courierdispatch/internal/opt"
)

// Wire types for the HTTP API and the store.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TimeWindow holds RFC3339 timestamps.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type OrderIn struct {
	ID        string     `json:"id"`
	Location  GeoPoint   `json:"location"`
	Weight    float64    `json:"weight"`
	Assembled string     `json:"assembled,omitempty"`
	Window    TimeWindow `json:"window"`
	Vehicles  []string   `json:"vehicles,omitempty"`
	Completed bool       `json:"completed,omitempty"`
}

type ShopIn struct {
	ID       string   `json:"id"`
	Location GeoPoint `json:"location"`
	// HH:MM, optional
	WorkStart string    `json:"workStart,omitempty"`
	WorkEnd   string    `json:"workEnd,omitempty"`
	Orders    []OrderIn `json:"orders,omitempty"`
}

// DeliveryCheckRequest is the single-shipment check. Field names follow the
// dispatch wire contract.
type DeliveryCheckRequest struct {
	Shop      ShopIn    `json:"shop"`
	Orders    []OrderIn `json:"orders"`
	ServiceID int       `json:"service_id"`
	CalcTime  string    `json:"calc_time"`
	Optimized bool      `json:"optimized"`
	IsLoop    *bool     `json:"is_loop,omitempty"`
}

type NodeInfo struct {
	Distance int `json:"distance"` // meters
	Duration int `json:"duration"` // seconds
}

type DeliveryInfo struct {
	Orders                []string        `json:"orders"`
	NodeInfo              []NodeInfo      `json:"node_info"`
	NodeDeliveryTime      []float64       `json:"node_delivery_time"`
	StartDeliveryInterval string          `json:"start_delivery_interval"`
	EndDeliveryInterval   string          `json:"end_delivery_interval"`
	Weight                float64         `json:"weight"`
	IsLoop                bool            `json:"is_loop"`
	ReserveTime           float64         `json:"reserve_time"`
	DeliveryTime          float64         `json:"delivery_time"`
	ExecutionTime         float64         `json:"execution_time"`
	Cost                  decimal.Decimal `json:"cost"`
}

type DeliveryCheckResponse struct {
	Delivery *DeliveryInfo `json:"delivery,omitempty"`
	Code     int           `json:"code"`
	Message  string        `json:"message,omitempty"`
}

type PlanRequest struct {
	ServiceID int    `json:"serviceId"`
	PlanDate  string `json:"planDate"` // YYYY-MM-DD
	CalcTime  string `json:"calcTime,omitempty"`
	Variant   string `json:"variant,omitempty"`
	// Shops overrides the stored batch when present.
	Shops []ShopIn `json:"shops,omitempty"`
}

type ShipmentOut struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shopId"`
	CourierID string          `json:"courierId,omitempty"`
	Vehicle   string          `json:"vehicle"`
	Orders    []string        `json:"orders"`
	Arrivals  []string        `json:"arrivals"`
	Start     string          `json:"start"`
	End       string          `json:"end"`
	Cost      decimal.Decimal `json:"cost"`
	Distance  int             `json:"distance"`
	IsLoop    bool            `json:"isLoop"`
}

type CourierOut struct {
	ID         string          `json:"id"`
	Vehicle    string          `json:"vehicle"`
	FirstStart string          `json:"firstStart,omitempty"`
	LastEnd    string          `json:"lastEnd,omitempty"`
	Shipments  int             `json:"shipments"`
	Orders     int             `json:"orders"`
	Cost       decimal.Decimal `json:"cost"`
}

type Plan struct {
	ID           string          `json:"id"`
	ServiceID    int             `json:"serviceId"`
	PlanDate     string          `json:"planDate"`
	Variant      string          `json:"variant"`
	Code         int             `json:"code"`
	CreatedAt    time.Time       `json:"createdAt"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	ShipmentCost decimal.Decimal `json:"shipmentCost"`
	Shipments    []ShipmentOut   `json:"shipments"`
	Couriers     []CourierOut    `json:"couriers"`
	Unshipped    []string        `json:"unshipped"`
	Stats        opt.RunStats    `json:"stats"`
}

// PlanSummary is a list entry.
type PlanSummary struct {
	ID        string          `json:"id"`
	ServiceID int             `json:"serviceId"`
	PlanDate  string          `json:"planDate"`
	Variant   string          `json:"variant"`
	TotalCost decimal.Decimal `json:"totalCost"`
	CreatedAt time.Time       `json:"createdAt"`
}

type CoverRequest struct {
	// ServiceID is the courier type id.
	ServiceID     int    `json:"serviceId"`
	CalcTime      string `json:"calcTime"`
	Shop          ShopIn `json:"shop"`
	MaxCompanions int    `json:"maxCompanions,omitempty"`
}

type CoverResponse struct {
	Shipments []ShipmentOut   `json:"shipments"`
	Unshipped []string        `json:"unshipped"`
	Cost      decimal.Decimal `json:"cost"`
	Code      int             `json:"code"`
}

type CourierStatusIn struct {
	CourierID string   `json:"courierId"`
	Vehicle   string   `json:"vehicle"`
	ShopID    string   `json:"shopId,omitempty"`
	Status    string   `json:"status"`
	Location  GeoPoint `json:"location"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

type AverageCostOut struct {
	ShopID  string          `json:"shopId"`
	Vehicle string          `json:"vehicle"`
	Average decimal.Decimal `json:"average"`
	Orders  int             `json:"orders"`
	Known   bool            `json:"known"`
}
