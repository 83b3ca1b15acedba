package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	"github.com/noah-isme/skillmentorx-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, actor models.Actor, in models.CreateRequestInput) (*models.Request, error)
	ListForStudent(ctx context.Context, actor models.Actor) ([]models.RequestDetail, error)
	ListAll(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]models.RequestDetail, error)
	ListAssigned(ctx context.Context, actor models.Actor) ([]models.RequestDetail, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Request, error)
	Update(ctx context.Context, actor models.Actor, id string, in models.UpdateRequestInput) (*models.Request, error)
	AddReply(ctx context.Context, actor models.Actor, id string, in models.ReplyInput) (*models.Request, error)
	Resolve(ctx context.Context, actor models.Actor, id string) (*models.Request, error)
}

// RequestHandler exposes the mentorship request lifecycle.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(svc requestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// Create godoc
// @Summary Create a mentorship request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateRequestInput true "Category and stack"
// @Success 201 {object} response.Envelope{data=models.Request}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var in models.CreateRequestInput
	if !bindJSON(c, &in, "invalid request payload") {
		return
	}
	req, err := h.service.Create(c.Request.Context(), actor, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "request created", req)
}

// ListMine godoc
// @Summary List the caller's requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.RequestDetail}
// @Router /requests/my [get]
func (h *RequestHandler) ListMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ListForStudent(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "requests retrieved", items)
}

// ListAll godoc
// @Summary List every request
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, accepted or resolved"
// @Success 200 {object} response.Envelope{data=[]models.RequestDetail}
// @Failure 403 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) ListAll(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ListAll(c.Request.Context(), actor, requestFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "requests retrieved", items)
}

// ListAssigned godoc
// @Summary List requests assigned to the calling mentor
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.RequestDetail}
// @Router /requests/assigned [get]
func (h *RequestHandler) ListAssigned(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ListAssigned(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "assigned requests retrieved", items)
}

// Get godoc
// @Summary Get one request
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope{data=models.Request}
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	req, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "request retrieved", req)
}

// Update godoc
// @Summary Update status, mentor or notes
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body models.UpdateRequestInput true "Partial update"
// @Success 200 {object} response.Envelope{data=models.Request}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id} [put]
func (h *RequestHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var in models.UpdateRequestInput
	if !bindJSON(c, &in, "invalid update payload") {
		return
	}
	req, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "request updated", req)
}

// AddReply godoc
// @Summary Reply to an assigned request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body models.ReplyInput true "Reply"
// @Success 201 {object} response.Envelope{data=models.Request}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/replies [post]
func (h *RequestHandler) AddReply(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var in models.ReplyInput
	if !bindJSON(c, &in, "invalid reply payload") {
		return
	}
	req, err := h.service.AddReply(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "reply added", req)
}

// Resolve godoc
// @Summary Mark an assigned request resolved
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope{data=models.Request}
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/resolve [post]
func (h *RequestHandler) Resolve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	req, err := h.service.Resolve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "request resolved", req, nil)
}

func requestFilterFromQuery(c *gin.Context) models.RequestFilter {
	var filter models.RequestFilter
	if raw := c.Query("status"); raw != "" {
		status := models.RequestStatus(raw)
		filter.Status = &status
	}
	return filter
}
