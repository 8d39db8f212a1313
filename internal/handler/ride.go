package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"ryde/internal/domain"
	"ryde/internal/geo"
	"ryde/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	PickupLat      float64 `json:"pickup_latitude"`
	PickupLng      float64 `json:"pickup_longitude"`
	DropoffLat     float64 `json:"dropoff_latitude"`
	DropoffLng     float64 `json:"dropoff_longitude"`
	PickupAddress  string  `json:"pickup_address,omitempty"`
	DropoffAddress string  `json:"dropoff_address,omitempty"`
	ServiceType    string  `json:"service_type,omitempty"`
	Fare           float64 `json:"fare,omitempty"`
}

// UpdateStatusRequest is the HTTP request body for a status change.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID             string   `json:"id"`
	CustomerID     string   `json:"customer_id"`
	DriverID       string   `json:"driver_id,omitempty"`
	Status         string   `json:"status"`
	PickupLat      float64  `json:"pickup_latitude"`
	PickupLng      float64  `json:"pickup_longitude"`
	DropoffLat     float64  `json:"dropoff_latitude"`
	DropoffLng     float64  `json:"dropoff_longitude"`
	PickupAddress  string   `json:"pickup_address,omitempty"`
	DropoffAddress string   `json:"dropoff_address,omitempty"`
	ServiceType    string   `json:"service_type"`
	Fare           float64  `json:"fare"`
	DistanceKm     *float64 `json:"distance_km,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
	PickedUpAt     string   `json:"picked_up_at,omitempty"`
	DroppedOffAt   string   `json:"dropped_off_at,omitempty"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:             r.ID,
		CustomerID:     r.CustomerID,
		DriverID:       r.DriverID,
		Status:         string(r.Status),
		PickupLat:      r.PickupLat,
		PickupLng:      r.PickupLng,
		DropoffLat:     r.DropoffLat,
		DropoffLng:     r.DropoffLng,
		PickupAddress:  r.PickupAddress,
		DropoffAddress: r.DropoffAddress,
		ServiceType:    string(r.ServiceType),
		Fare:           r.Fare,
		CreatedAt:      formatTime(r.CreatedAt),
		UpdatedAt:      formatTime(r.UpdatedAt),
		PickedUpAt:     formatTime(r.PickedUpAt),
		DroppedOffAt:   formatTime(r.DroppedOffAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		CustomerID:     actor.ID,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		DropoffLat:     req.DropoffLat,
		DropoffLng:     req.DropoffLng,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		ServiceType:    domain.VehicleType(req.ServiceType),
		Fare:           req.Fare,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// GetAll handles GET /v1/rides
func (h *RideHandler) GetAll(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	rides, err := h.rideService.ListRides(c.Request.Context(), actor, cast.ToInt(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, toRideResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}

// Available handles GET /v1/rides/available
func (h *RideHandler) Available(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var from *geo.Point
	if c.Query("lat") != "" || c.Query("lng") != "" {
		lat, errLat := cast.ToFloat64E(c.Query("lat"))
		lng, errLng := cast.ToFloat64E(c.Query("lng"))
		if errLat != nil || errLng != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng must be numbers"})
			return
		}
		from = &geo.Point{Lat: lat, Lng: lng}
	}

	rides, err := h.rideService.AvailableRides(c.Request.Context(), actor, from, cast.ToInt(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		item := toRideResponse(r.Ride)
		item.DistanceKm = r.DistanceKm
		response = append(response, item)
	}
	respondJSON(c, http.StatusOK, response)
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	ride, err := h.rideService.AcceptRide(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// DeclineRide handles POST /v1/rides/:id/decline
func (h *RideHandler) DeclineRide(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.rideService.DeclineRide(c.Request.Context(), c.Param("id"), actor); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"ride_id": c.Param("id"), "declined": true})
}

// UpdateStatus handles POST /v1/rides/:id/status
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.UpdateStatus(c.Request.Context(), c.Param("id"), actor, domain.RideStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}
