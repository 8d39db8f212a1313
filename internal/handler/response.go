package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ryde/internal/domain"
	"ryde/internal/middleware"
	"ryde/internal/repository"
	"ryde/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Unmapped errors are attached to the gin context and hidden from the client.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDropoffLocation),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidServiceType),
		errors.Is(err, service.ErrInvalidFare),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidRadius):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrRideAlreadyTaken),
		errors.Is(err, service.ErrRideNotOpen),
		errors.Is(err, service.ErrConcurrentUpdate),
		errors.Is(err, repository.ErrStatusConflict):
		return http.StatusConflict

	// Forbidden
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden

	default:
		return http.StatusInternalServerError
	}
}

// currentActor returns the authenticated caller. Routes using it sit behind
// middleware.RequireActor, so a missing actor is a wiring error.
func currentActor(c *gin.Context) (*domain.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return nil, false
	}
	return actor, true
}
