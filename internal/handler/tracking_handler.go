package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type TrackingHandler struct {
	trackingService service.TrackingService
}

func NewTrackingHandler(trackingService service.TrackingService) *TrackingHandler {
	return &TrackingHandler{trackingService: trackingService}
}

func (h *TrackingHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/tracking", middleware.RequireDesignation(allRoles...), h.ListTracking)
}

// ListTracking handles GET /api/tracking
// @Summary      Tracking feed
// @Description  Returns recent tracking entries across all purchase requests newest first; pass pr_id to get one request's full trail oldest first
// @Tags         tracking
// @Produce      json
// @Security     BearerAuth
// @Param        pr_id  query     string  false  "Purchase Request ID"
// @Param        limit  query     int     false  "Feed size (default 20)"
// @Success      200    {object}  response.Response{data=[]service.TrackingEntryResponse}
// @Failure      404    {object}  response.Response
// @Router       /api/tracking [get]
func (h *TrackingHandler) ListTracking(c *gin.Context) {
	if prID := c.Query("pr_id"); prID != "" {
		entries, err := h.trackingService.ListForPR(c.Request.Context(), prID)
		if err != nil {
			code := statusForError(err)
			c.JSON(code, response.Error(code, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.trackingService.ListRecent(c.Request.Context(), limit)
	if err != nil {
		code := statusForError(err)
		c.JSON(code, response.Error(code, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}
