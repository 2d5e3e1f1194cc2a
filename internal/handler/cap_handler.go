package handler

import (
	"io"
	"net/http"

	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/services"
	"cell-broadcast/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CAPHandler struct {
	ingest *services.IngestService
}

func NewCAPHandler(ingest *services.IngestService) *CAPHandler {
	return &CAPHandler{ingest: ingest}
}

// Ingest accepts a CAP 1.2 XML document. The acting API key arrives in the
// X-Api-Key-Id header, set by the authorizing gateway upstream.
func (h *CAPHandler) Ingest(c *gin.Context) {
	keyID, err := uuid.Parse(c.GetHeader("X-Api-Key-Id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("missing or invalid X-Api-Key-Id", "INVALID_REQUEST"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unreadable body", "INVALID_REQUEST"))
		return
	}
	result, err := h.ingest.Ingest(c.Request.Context(), body, broadcast.APIKeyActor(keyID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}
