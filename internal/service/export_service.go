package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
	"github.com/noah-isme/skillmentorx-api/pkg/export"
)

type requestLister interface {
	ListAll(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, error)
}

// ExportResult is a rendered export ready to stream.
type ExportResult struct {
	Filename string
	Format   export.Format
	Payload  []byte
}

// ExportService renders request listings for administrators.
type ExportService struct {
	requests requestLister
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(requests requestLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{requests: requests, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

var requestExportHeaders = []string{"ID", "Student", "Student Email", "Category", "Stack", "Status", "Mentor", "Replies", "Notes", "Requested At", "Updated At"}

// ExportRequests renders every request, optionally filtered by status, in the requested format.
func (s *ExportService) ExportRequests(ctx context.Context, actor models.Actor, rawFormat string, filter models.RequestFilter) (*ExportResult, error) {
	if err := authorizeRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}

	items, err := s.requests.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requests")
	}

	now := s.now()
	dataset := export.Dataset{
		Title:   "Mentorship requests (" + now.Format("2006-01-02 15:04 MST") + ")",
		Headers: requestExportHeaders,
		Rows:    make([]map[string]string, 0, len(items)),
	}
	for _, item := range items {
		dataset.Rows = append(dataset.Rows, requestExportRow(item))
	}

	payload, err := export.NewRenderer(format).Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("requests exported", zap.String("format", string(format)), zap.Int("rows", len(items)), zap.String("actor_id", actor.ID))

	return &ExportResult{
		Filename: fmt.Sprintf("requests_%s.%s", now.Format("20060102_150405"), format),
		Format:   format,
		Payload:  payload,
	}, nil
}

func requestExportRow(item models.RequestDetail) map[string]string {
	row := map[string]string{
		"ID":           item.ID,
		"Category":     item.Category,
		"Stack":        item.Stack,
		"Status":       string(item.Status),
		"Replies":      strconv.Itoa(len(item.Replies)),
		"Notes":        item.Notes,
		"Requested At": item.RequestedAt.Format(time.RFC3339),
		"Updated At":   item.UpdatedAt.Format(time.RFC3339),
	}
	if item.Student != nil {
		row["Student"] = item.Student.Name
		row["Student Email"] = item.Student.Email
	}
	if item.Mentor != nil {
		row["Mentor"] = item.Mentor.Name
	} else if item.AssignedMentorID != nil {
		row["Mentor"] = *item.AssignedMentorID
	}
	return row
}
