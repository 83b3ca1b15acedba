package service

import (
	"context"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
)

type requestCounter interface {
	CountByStatus(ctx context.Context) (models.RequestStats, error)
}

type mentorCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// AdminService aggregates the platform overview.
type AdminService struct {
	requests requestCounter
	mentors  mentorCounter
	metrics  *MetricsService
}

// NewAdminService constructs an AdminService.
func NewAdminService(requests requestCounter, mentors mentorCounter, metrics *MetricsService) *AdminService {
	return &AdminService{requests: requests, mentors: mentors, metrics: metrics}
}

// Stats returns request and mentor counts with a process metrics snapshot.
func (s *AdminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	requests, err := s.requests.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	mentors, err := s.mentors.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count mentors")
	}
	return &models.AdminStats{
		Requests: requests,
		Mentors:  mentors,
		System:   s.metrics.Snapshot(),
	}, nil
}
