package handler

import (
	"errors"
	"net/http"

	"cell-broadcast/internal/transport/httpdto"
	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/gin-gonic/gin"
)

// fail writes a domain error with its machine-readable kind and the HTTP
// status the kind implies.
func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), httpdto.NewErrorResponse(err.Error(), broadcast_errors.Kind(err)))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, broadcast_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, broadcast_errors.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, broadcast_errors.ErrInvalidTransition),
		errors.Is(err, broadcast_errors.ErrInvalidState),
		errors.Is(err, broadcast_errors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, broadcast_errors.ErrInvalidInput),
		errors.Is(err, broadcast_errors.ErrReasonRequired),
		errors.Is(err, broadcast_errors.ErrContentTooLong):
		return http.StatusBadRequest
	case errors.Is(err, broadcast_errors.ErrMissingPriorDelivery):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
