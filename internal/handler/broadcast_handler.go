package handler

import (
	"net/http"
	"time"

	"cell-broadcast/internal/services"
	"cell-broadcast/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BroadcastHandler struct {
	messages *services.MessageService
	scanner  *services.ScannerService
}

func NewBroadcastHandler(messages *services.MessageService, scanner *services.ScannerService) *BroadcastHandler {
	return &BroadcastHandler{messages: messages, scanner: scanner}
}

func (h *BroadcastHandler) Create(c *gin.Context) {
	var req httpdto.CreateBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	msg, err := h.messages.CreateDraft(c.Request.Context(), services.CreateDraftInput{
		ServiceID:       req.ServiceID,
		TemplateID:      req.TemplateID,
		TemplateVersion: req.TemplateVersion,
		Personalisation: req.Personalisation,
		Content:         req.Content,
		Reference:       req.Reference,
		Areas:           req.Areas,
		Duration:        time.Duration(req.DurationSeconds) * time.Second,
		StartsAt:        req.StartsAt,
		FinishesAt:      req.FinishesAt,
		CreatedBy:       req.CreatedBy.ToActor(),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

func (h *BroadcastHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid broadcast id", "INVALID_REQUEST"))
		return
	}
	msg, err := h.messages.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *BroadcastHandler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid broadcast id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	msg, err := h.messages.Transition(c.Request.Context(), id, req.Status, req.Actor.ToActor(), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *BroadcastHandler) UpdateContent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid broadcast id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	in := services.UpdateContentInput{
		Content:   req.Content,
		Reference: req.Reference,
		Areas:     req.Areas,
		Reason:    req.Reason,
	}
	if req.DurationSeconds != nil {
		d := time.Duration(*req.DurationSeconds) * time.Second
		in.Duration = &d
	}
	msg, err := h.messages.UpdateContent(c.Request.Context(), id, in, req.Actor.ToActor())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *BroadcastHandler) UpdateSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid broadcast id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	msg, err := h.messages.UpdateSchedule(c.Request.Context(), id, req.StartsAt, req.FinishesAt, req.Actor.ToActor())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *BroadcastHandler) Outstanding(c *gin.Context) {
	messages, err := h.scanner.Outstanding(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"broadcasts": messages}))
}

func (h *BroadcastHandler) Acknowledge(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid broadcast id", "INVALID_REQUEST"))
		return
	}
	if err := h.messages.Acknowledge(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
