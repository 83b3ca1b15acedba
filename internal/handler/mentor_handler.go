package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	"github.com/noah-isme/skillmentorx-api/internal/service"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
	"github.com/noah-isme/skillmentorx-api/pkg/response"
	"github.com/noah-isme/skillmentorx-api/pkg/storage"
)

const sniffLen = 512

type mentorService interface {
	UpsertMine(ctx context.Context, actor models.Actor, req models.UpsertMentorProfileRequest) (*models.MentorProfile, error)
	GetMine(ctx context.Context, actor models.Actor) (*models.MentorProfile, error)
	UploadDocument(ctx context.Context, actor models.Actor, upload service.DocumentUpload) (*models.Document, error)
	OpenDocument(ctx context.Context, token string) (io.ReadCloser, storage.ObjectInfo, error)
	List(ctx context.Context, actor models.Actor, filter models.MentorFilter) ([]models.MentorProfile, error)
	SetVerification(ctx context.Context, actor models.Actor, id string, req models.VerificationRequest) (*models.MentorProfile, error)
}

// MentorHandler serves mentor profiles and their documents.
type MentorHandler struct {
	service        mentorService
	maxUploadBytes int64
}

// NewMentorHandler constructs a MentorHandler. maxUploadBytes caps the multipart body.
func NewMentorHandler(svc mentorService, maxUploadBytes int64) *MentorHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &MentorHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// UpsertMine godoc
// @Summary Create or update own mentor profile
// @Tags Mentors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UpsertMentorProfileRequest true "Profile"
// @Success 200 {object} response.Envelope{data=models.MentorProfile}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /mentors/me [put]
func (h *MentorHandler) UpsertMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UpsertMentorProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}
	profile, err := h.service.UpsertMine(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "profile saved", profile)
}

// GetMine godoc
// @Summary Get own mentor profile
// @Tags Mentors
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.MentorProfile}
// @Failure 404 {object} response.Envelope
// @Router /mentors/me [get]
func (h *MentorHandler) GetMine(c *gin.Context) {
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

// UploadDocument godoc
// @Summary Upload a verification document
// @Tags Mentors
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param kind formData string true "profile_picture, id_proof, qualification_proof or cv"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope{data=models.Document}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mentors/me/documents [post]
func (h *MentorHandler) UploadDocument(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is too large"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable file"))
		return
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable file"))
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if contentType == "application/octet-stream" && header.Header.Get("Content-Type") != "" {
		contentType = header.Header.Get("Content-Type")
	}

	doc, err := h.service.UploadDocument(c.Request.Context(), actor, service.DocumentUpload{
		Kind:        models.DocumentKind(c.PostForm("kind")),
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        io.MultiReader(bytes.NewReader(head), file),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "document uploaded", doc)
}

// Download godoc
// @Summary Download a document through a signed link
// @Tags Mentors
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mentors/documents/download [get]
func (h *MentorHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	rc, info, err := h.service.OpenDocument(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(info.Key)))
	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, nil)
}

// List godoc
// @Summary List mentor profiles
// @Tags Mentors
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} response.Envelope{data=[]models.MentorProfile}
// @Failure 403 {object} response.Envelope
// @Router /mentors [get]
func (h *MentorHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var filter models.MentorFilter
	if raw := c.Query("status"); raw != "" {
		status := models.VerificationStatus(raw)
		filter.Status = &status
	}
	profiles, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "mentors retrieved", profiles, nil, map[string]interface{}{"count": len(profiles)})
}

// SetVerification godoc
// @Summary Review a mentor profile
// @Tags Mentors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Param payload body models.VerificationRequest true "Decision"
// @Success 200 {object} response.Envelope{data=models.MentorProfile}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mentors/{id}/verification [put]
func (h *MentorHandler) SetVerification(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.VerificationRequest
	if !bindJSON(c, &req, "invalid verification payload") {
		return
	}
	profile, err := h.service.SetVerification(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "verification updated", profile)
}
