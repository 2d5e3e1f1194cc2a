package handler

import (
	"errors"
	"net/http"

	"cell-broadcast/internal/domain/provider"
	"cell-broadcast/internal/services"
	"cell-broadcast/internal/transport/httpdto"
	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProviderHandler struct {
	dispatch *services.DispatchService
}

func NewProviderHandler(dispatch *services.DispatchService) *ProviderHandler {
	return &ProviderHandler{dispatch: dispatch}
}

// Callback records a provider's delivery verdict. A duplicate callback for
// an already-terminal record is acknowledged with 200 so the provider stops
// retrying; the dispatch service has already logged it.
func (h *ProviderHandler) Callback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid provider message id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	err = h.dispatch.ApplyCallback(c.Request.Context(), id, provider.DeliveryStatus(req.Status))
	if err != nil && !errors.Is(err, broadcast_errors.ErrDuplicateCallback) {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
