package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"ryde/internal/service"
)

// DriverHandler handles HTTP requests for driver presence.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
// Online defaults to true when omitted.
type UpdateLocationRequest struct {
	Lat    float64 `json:"latitude"`
	Lng    float64 `json:"longitude"`
	Online *bool   `json:"is_online,omitempty"`
}

// LocationResponse is the HTTP response for a stored driver location.
type LocationResponse struct {
	DriverID  string  `json:"driver_id"`
	Lat       float64 `json:"latitude"`
	Lng       float64 `json:"longitude"`
	IsOnline  bool    `json:"is_online"`
	UpdatedAt string  `json:"updated_at"`
}

// NearbyDriverResponse is one entry of GET /v1/drivers/nearby.
type NearbyDriverResponse struct {
	DriverID   string  `json:"driver_id"`
	Lat        float64 `json:"latitude"`
	Lng        float64 `json:"longitude"`
	DistanceKm float64 `json:"distance_km"`
}

// UpdateLocation handles POST /v1/drivers/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	online := true
	if req.Online != nil {
		online = *req.Online
	}

	loc, err := h.driverService.UpdateLocation(c.Request.Context(), actor, service.UpdateLocationRequest{
		Lat:    req.Lat,
		Lng:    req.Lng,
		Online: online,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, LocationResponse{
		DriverID:  loc.DriverID,
		Lat:       loc.Lat,
		Lng:       loc.Lng,
		IsOnline:  loc.IsOnline,
		UpdatedAt: formatTime(loc.UpdatedAt),
	})
}

// Nearby handles GET /v1/drivers/nearby?lat=&lng=&radius=
func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, errLat := cast.ToFloat64E(c.Query("lat"))
	lng, errLng := cast.ToFloat64E(c.Query("lng"))
	if c.Query("lat") == "" || c.Query("lng") == "" || errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required numbers"})
		return
	}
	radius, err := cast.ToFloat64E(c.DefaultQuery("radius", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "radius must be a number"})
		return
	}

	drivers, err := h.driverService.FindNearby(c.Request.Context(), lat, lng, radius, cast.ToInt(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NearbyDriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, NearbyDriverResponse{
			DriverID:   d.DriverID,
			Lat:        d.Lat,
			Lng:        d.Lng,
			DistanceKm: d.DistanceKm,
		})
	}
	respondJSON(c, http.StatusOK, response)
}
