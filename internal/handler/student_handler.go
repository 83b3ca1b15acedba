package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	"github.com/noah-isme/skillmentorx-api/pkg/response"
)

type studentService interface {
	CreateMine(ctx context.Context, actor models.Actor, req models.StudentProfileRequest) (*models.StudentProfile, error)
	GetMine(ctx context.Context, actor models.Actor) (*models.StudentProfile, error)
	UpdateMine(ctx context.Context, actor models.Actor, req models.StudentProfileRequest) (*models.StudentProfile, error)
	Get(ctx context.Context, actor models.Actor, userID string) (*models.StudentProfile, error)
	Stacks(ctx context.Context, actor models.Actor) ([]string, error)
}

// StudentHandler serves student profiles.
type StudentHandler struct {
	service studentService
}

// NewStudentHandler constructs a StudentHandler.
func NewStudentHandler(svc studentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// CreateMine godoc
// @Summary Create own student profile
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.StudentProfileRequest true "Profile"
// @Success 201 {object} response.Envelope{data=models.StudentProfile}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/me [post]
func (h *StudentHandler) CreateMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.StudentProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}
	profile, err := h.service.CreateMine(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "profile created", profile)
}

// GetMine godoc
// @Summary Get own student profile
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.StudentProfile}
// @Failure 404 {object} response.Envelope
// @Router /students/me [get]
func (h *StudentHandler) GetMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	profile, err := h.service.GetMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "profile retrieved", profile)
}

// UpdateMine godoc
// @Summary Update own student profile
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.StudentProfileRequest true "Profile"
// @Success 200 {object} response.Envelope{data=models.StudentProfile}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/me [put]
func (h *StudentHandler) UpdateMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.StudentProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}
	profile, err := h.service.UpdateMine(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "profile updated", profile)
}

// Stacks godoc
// @Summary List own stacks
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]string}
// @Failure 404 {object} response.Envelope
// @Router /students/me/stacks [get]
func (h *StudentHandler) Stacks(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	stacks, err := h.service.Stacks(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "stacks retrieved", stacks)
}

// Get godoc
// @Summary Get a student's profile
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student user ID"
// @Success 200 {object} response.Envelope{data=models.StudentProfile}
// @Failure 404 {object} response.Envelope
// @Router /admin/students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	profile, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "profile retrieved", profile)
}
