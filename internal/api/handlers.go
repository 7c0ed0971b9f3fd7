package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/dispatch"
	"courierdispatch/internal/fleet"
	"courierdispatch/internal/logger"
	"courierdispatch/internal/metrics"
	"courierdispatch/internal/model"
	"courierdispatch/internal/opt"
	"courierdispatch/internal/store"
)

// DeliveryCheckHandler handles POST /v1/delivery/check. The outcome is
// carried by the response code; only a malformed body is an HTTP error.
func (s *Server) DeliveryCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.DeliveryCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.DeliveryCheckResponse{Code: opt.CodeInvalidInput, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.Dispatch.CheckDelivery(r.Context(), req))
}

// PlansHandler handles POST/GET /v1/plans
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.PlanRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validatePlanRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
			return
		}
		plan, _, err := s.Dispatch.BuildPlan(r.Context(), req)
		if err != nil {
			s.planError(w, r, err)
			return
		}
		s.Broker.Publish(ChannelPlans, Event{Type: "plan.created", Data: map[string]any{
			"id":        plan.ID,
			"serviceId": plan.ServiceID,
			"planDate":  plan.PlanDate,
			"variant":   plan.Variant,
			"totalCost": plan.TotalCost.String(),
			"shipments": len(plan.Shipments),
			"unshipped": len(plan.Unshipped),
		}})
		writeJSON(w, http.StatusCreated, plan)
	case http.MethodGet:
		q := r.URL.Query()
		serviceID, err := strconv.Atoi(q.Get("service_id"))
		if err != nil || serviceID <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid query", "service_id must be a positive integer", r.URL.Path)
			return
		}
		items, err := s.Store.ListPlans(r.Context(), serviceID, q.Get("date"))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) planError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, opt.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
	case errors.Is(err, dispatch.ErrLoad) && errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "No orders for service day", err.Error(), r.URL.Path)
	case errors.Is(err, dispatch.ErrNotCreated):
		writeProblem(w, http.StatusUnprocessableEntity, "Plan not created", err.Error(), r.URL.Path)
	default:
		logger.Errorw("plan failed", "path", r.URL.Path, "error", err)
		writeProblem(w, http.StatusInternalServerError, "Plan failed", err.Error(), r.URL.Path)
	}
}

// PlanByIDHandler handles GET /v1/plans/{id}
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/plans/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	plan, err := s.Store.GetPlan(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Plan not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// CoverHandler handles POST /v1/cover
func (s *Server) CoverHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.CoverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateCoverRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid cover request", err.Error(), r.URL.Path)
		return
	}
	resp, err := s.Dispatch.Cover(r.Context(), req)
	if errors.Is(err, opt.ErrInvalidInput) {
		writeProblem(w, http.StatusBadRequest, "Invalid cover request", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Cover failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CourierTypesHandler lists the stored courier type catalogue.
func (s *Server) CourierTypesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.Store.ListCourierTypes(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List courier types failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// CouriersHandler handles GET /v1/couriers?status=
func (s *Server) CouriersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	filter := courier.Status(r.URL.Query().Get("status"))
	if filter != "" && !filter.Valid() {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "unknown status "+string(filter), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Fleet.List(filter)})
}

// CourierStatusHandler handles POST /v1/couriers/status with one update or
// an array of updates.
func (s *Server) CourierStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	var ins []model.CourierStatusIn
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &ins); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
	} else {
		var one model.CourierStatusIn
		if err := json.Unmarshal(raw, &one); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		ins = append(ins, one)
	}
	applied, err := s.applyStatus("http", ins)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid courier status", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

// applyStatus refreshes the fleet registry and republishes the updates.
func (s *Server) applyStatus(source string, ins []model.CourierStatusIn) (int, error) {
	updates := make([]fleet.Status, 0, len(ins))
	for _, in := range ins {
		st, err := toStatus(in)
		if err != nil {
			return 0, err
		}
		updates = append(updates, st)
	}
	applied, err := s.Fleet.Refresh(updates...)
	if err != nil {
		return 0, err
	}
	metrics.CourierUpdates.WithLabelValues(source).Add(float64(applied))
	for _, u := range updates {
		cur, ok := s.Fleet.Get(u.CourierID)
		if !ok {
			continue
		}
		s.Broker.Publish(ChannelCouriers, Event{Type: "courier.status", Data: map[string]any{
			"courierId": cur.CourierID,
			"vehicle":   cur.Vehicle.String(),
			"shopId":    cur.ShopID,
			"status":    string(cur.Status),
			"location":  map[string]float64{"lat": cur.Location.Lat, "lng": cur.Location.Lng},
			"updatedAt": cur.UpdatedAt.Format(time.RFC3339),
		}})
	}
	return applied, nil
}

// AverageCostHandler handles GET /v1/couriers/average-cost?shop=&vehicle=
func (s *Server) AverageCostHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	v, err := courier.ParseVehicle(q.Get("vehicle"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error(), r.URL.Path)
		return
	}
	avg, n, ok := s.Fleet.AverageCost(q.Get("shop"), v)
	writeJSON(w, http.StatusOK, model.AverageCostOut{
		ShopID:  q.Get("shop"),
		Vehicle: v.String(),
		Average: decimal.NewFromFloat(avg).Round(2),
		Orders:  n,
		Known:   ok,
	})
}

// RunsHandler handles GET /v1/admin/runs?service=&date=
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	service, date := q.Get("service"), q.Get("date")
	if service == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "service is required", r.URL.Path)
		return
	}
	items, err := s.Store.ListRuns(r.Context(), service, date)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "recent": opt.GetRuns(service, date)})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports whether the store answers.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
