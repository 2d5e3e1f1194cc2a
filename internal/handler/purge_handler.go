package handler

import (
	"net/http"
	"strconv"
	"time"

	"cell-broadcast/internal/services"
	"cell-broadcast/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PurgeHandler struct {
	purge *services.PurgeService
}

func NewPurgeHandler(purge *services.PurgeService) *PurgeHandler {
	return &PurgeHandler{purge: purge}
}

func (h *PurgeHandler) Purge(c *gin.Context) {
	serviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid service id", "INVALID_REQUEST"))
		return
	}
	olderThanDays, err := strconv.Atoi(c.DefaultQuery("older_than_days", "90"))
	if err != nil || olderThanDays < 0 {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid older_than_days", "INVALID_REQUEST"))
		return
	}
	dryRun := c.DefaultQuery("dry_run", "false") == "true"

	counts, err := h.purge.Purge(c.Request.Context(), serviceID, time.Duration(olderThanDays)*24*time.Hour, dryRun)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(counts))
}
