package handler

import (
	"errors"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// officerRoles are the designations allowed to act on purchase requests;
// allRoles additionally admits end-user accounts (create and view only).
var (
	officerRoles = designationNames(model.OfficerDesignations)
	allRoles     = append(designationNames(model.OfficerDesignations), string(model.DesignationEndUser))
)

func designationNames(ds []model.Designation) []string {
	names := make([]string, 0, len(ds))
	for _, d := range ds {
		names = append(names, string(d))
	}
	return names
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrPRNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrMissingDestination), errors.Is(err, model.ErrInvalidPRNumber):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDuplicatePRNumber), errors.Is(err, model.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type PurchaseRequestHandler struct {
	lifecycleService service.LifecycleService
	trackingService  service.TrackingService
}

func NewPurchaseRequestHandler(lifecycleService service.LifecycleService, trackingService service.TrackingService) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{
		lifecycleService: lifecycleService,
		trackingService:  trackingService,
	}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *PurchaseRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	prs := router.Group("/api/purchase-requests")
	{
		prs.POST("", middleware.RequireDesignation(allRoles...), h.CreatePurchaseRequest)
		prs.GET("", middleware.RequireDesignation(allRoles...), h.ListPurchaseRequests)
		prs.GET("/:id", middleware.RequireDesignation(allRoles...), h.GetPurchaseRequest)
		prs.GET("/:id/tracking", middleware.RequireDesignation(allRoles...), h.GetTrackingHistory)
		prs.POST("/:id/transitions", middleware.RequireDesignation(officerRoles...), h.ApplyTransition)
	}
}

// CreatePurchaseRequest handles POST /api/purchase-requests
// @Summary      Create a purchase request
// @Description  Creates a purchase request in pending status at the originating office with its initial tracking entry
// @Tags         purchase-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreatePRRequest  true  "Create Purchase Request Payload"
// @Success      201      {object}  response.Response{data=service.PurchaseRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/purchase-requests [post]
func (h *PurchaseRequestHandler) CreatePurchaseRequest(c *gin.Context) {
	var req service.CreatePRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	pr, err := h.lifecycleService.CreatePurchaseRequest(c.Request.Context(), c.GetString("userRole"), req)
	if err != nil {
		code := statusForError(err)
		c.JSON(code, response.Error(code, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, pr))
}

// ListPurchaseRequests handles GET /api/purchase-requests
// @Summary      List purchase requests
// @Description  Retrieves a paginated list, newest first, with optional status/designation/search filters
// @Tags         purchase-requests
// @Produce      json
// @Security     BearerAuth
// @Param        status       query  string  false  "Filter by status"
// @Param        designation  query  string  false  "Filter by current designation"
// @Param        search       query  string  false  "Match against pr_number"
// @Param        page         query  int     false  "Page number (default 1)"
// @Param        limit        query  int     false  "Items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Failure      500  {object}  response.Response
// @Router       /api/purchase-requests [get]
func (h *PurchaseRequestHandler) ListPurchaseRequests(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.PRListFilter{
		Status:      c.Query("status"),
		Designation: c.Query("designation"),
		Search:      c.Query("search"),
		Page:        params.Page,
		Limit:       params.Limit,
	}

	prs, total, err := h.lifecycleService.ListPurchaseRequests(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   prs,
		"total":  total,
		"page":   params.Page,
		"limit":  params.Limit,
	})
}

// GetPurchaseRequest handles GET /api/purchase-requests/:id
// @Summary      Get a purchase request
// @Tags         purchase-requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response{data=service.PurchaseRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/purchase-requests/{id} [get]
func (h *PurchaseRequestHandler) GetPurchaseRequest(c *gin.Context) {
	pr, err := h.lifecycleService.GetPurchaseRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		code := statusForError(err)
		c.JSON(code, response.Error(code, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pr))
}

// ApplyTransition handles POST /api/purchase-requests/:id/transitions
// @Summary      Apply a lifecycle transition
// @Description  Applies an action (receive, approve, disapprove, forward, return, mark_delivered, assess, report_discrepancy) as the authenticated office. Forward and return require a destination.
// @Tags         purchase-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Purchase Request ID"
// @Param        payload  body      service.TransitionRequest  true  "Transition Payload"
// @Success      200      {object}  response.Response{data=service.PurchaseRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/purchase-requests/{id}/transitions [post]
func (h *PurchaseRequestHandler) ApplyTransition(c *gin.Context) {
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	// Acting role comes from the verified token, never the body
	pr, err := h.lifecycleService.ApplyTransition(c.Request.Context(), c.Param("id"), c.GetString("userRole"), req)
	if err != nil {
		code := statusForError(err)
		c.JSON(code, response.Error(code, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pr))
}

// GetTrackingHistory handles GET /api/purchase-requests/:id/tracking
// @Summary      Get the tracking history of a purchase request
// @Description  Returns the append-only trail oldest first
// @Tags         purchase-requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response{data=[]service.TrackingEntryResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/purchase-requests/{id}/tracking [get]
func (h *PurchaseRequestHandler) GetTrackingHistory(c *gin.Context) {
	entries, err := h.trackingService.ListForPR(c.Request.Context(), c.Param("id"))
	if err != nil {
		code := statusForError(err)
		c.JSON(code, response.Error(code, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}
