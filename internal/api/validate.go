package api

import (
	"fmt"
	"strings"
	"time"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/fleet"
	"courierdispatch/internal/geo"
	"courierdispatch/internal/model"
	"courierdispatch/internal/opt"
)

func validatePlanRequest(req *model.PlanRequest) error {
	if req.ServiceID <= 0 {
		return fmt.Errorf("serviceId must be > 0")
	}
	if strings.TrimSpace(req.PlanDate) == "" {
		return fmt.Errorf("planDate is required")
	}
	if req.Variant != "" {
		if _, err := opt.ParseVariant(req.Variant); err != nil {
			return err
		}
	}
	for _, sh := range req.Shops {
		if sh.ID == "" {
			return fmt.Errorf("shop id is required")
		}
	}
	return nil
}

func validateCoverRequest(req *model.CoverRequest) error {
	if req.ServiceID <= 0 {
		return fmt.Errorf("serviceId must be > 0")
	}
	if req.CalcTime == "" {
		return fmt.Errorf("calcTime is required")
	}
	if req.Shop.ID == "" {
		return fmt.Errorf("shop id is required")
	}
	if len(req.Shop.Orders) == 0 {
		return fmt.Errorf("shop has no orders")
	}
	if req.MaxCompanions < 0 {
		return fmt.Errorf("maxCompanions must be >= 0")
	}
	return nil
}

// toStatus validates a feed update and converts it for the fleet registry.
func toStatus(in model.CourierStatusIn) (fleet.Status, error) {
	if in.CourierID == "" {
		return fleet.Status{}, fmt.Errorf("%w: courierId is required", fleet.ErrInvalidStatus)
	}
	v, err := courier.ParseVehicle(in.Vehicle)
	if err != nil {
		return fleet.Status{}, fmt.Errorf("%w: %w", fleet.ErrInvalidStatus, err)
	}
	st := courier.Status(strings.ToLower(strings.TrimSpace(in.Status)))
	if !st.Valid() {
		return fleet.Status{}, fmt.Errorf("%w: status %q", fleet.ErrInvalidStatus, in.Status)
	}
	out := fleet.Status{
		CourierID: in.CourierID,
		Vehicle:   v,
		ShopID:    in.ShopID,
		Status:    st,
		Location:  geo.LatLng{Lat: in.Location.Lat, Lng: in.Location.Lng},
	}
	if in.UpdatedAt != "" {
		ts, err := time.Parse(time.RFC3339, in.UpdatedAt)
		if err != nil {
			return fleet.Status{}, fmt.Errorf("%w: updatedAt %q", fleet.ErrInvalidStatus, in.UpdatedAt)
		}
		out.UpdatedAt = ts.UTC()
	}
	return out, nil
}
