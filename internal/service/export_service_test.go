package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
	"github.com/noah-isme/skillmentorx-api/pkg/export"
)

type requestListerStub struct {
	items      []models.RequestDetail
	err        error
	lastFilter models.RequestFilter
}

func (s *requestListerStub) ListAll(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, error) {
	s.lastFilter = filter
	return s.items, s.err
}

func sampleRequestDetails() []models.RequestDetail {
	mentorID := "mentor-1"
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return []models.RequestDetail{{
		Request: models.Request{
			ID:               "req-1",
			StudentID:        "student-1",
			Category:         "Backend",
			Stack:            "=Go",
			Status:           models.RequestStatusAccepted,
			AssignedMentorID: &mentorID,
			Replies:          []models.Reply{{AuthorMentorID: mentorID, Text: "hi", PostedAt: at}},
			RequestedAt:      at,
			UpdatedAt:        at,
		},
		Student: &models.UserSummary{ID: "student-1", Name: "Ada Lovelace", Email: "ada@example.com"},
		Mentor:  &models.MentorSummary{ID: mentorID, Name: "Grace Hopper"},
	}}
}

func TestExportServiceCSV(t *testing.T) {
	svc := NewExportService(&requestListerStub{items: sampleRequestDetails()}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC) }

	res, err := svc.ExportRequests(context.Background(), models.Actor{ID: "admin", Role: models.RoleAdmin}, "csv", models.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, export.FormatCSV, res.Format)
	assert.Equal(t, "requests_20240601_103000.csv", res.Filename)

	records, err := csv.NewReader(bytes.NewReader(res.Payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, requestExportHeaders, records[0])
	assert.Equal(t, "Ada Lovelace", records[1][1])
	assert.Equal(t, "'=Go", records[1][4])
	assert.Equal(t, "Grace Hopper", records[1][6])
	assert.Equal(t, "1", records[1][7])
}

func TestExportServicePDF(t *testing.T) {
	svc := NewExportService(&requestListerStub{items: sampleRequestDetails()}, zap.NewNop())
	res, err := svc.ExportRequests(context.Background(), models.Actor{ID: "admin", Role: models.RoleAdmin}, "PDF", models.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, export.FormatPDF, res.Format)
	assert.True(t, bytes.HasPrefix(res.Payload, []byte("%PDF")))
}

func TestExportServiceRejectsNonAdminAndBadFormat(t *testing.T) {
	svc := NewExportService(&requestListerStub{}, zap.NewNop())

	_, err := svc.ExportRequests(context.Background(), models.Actor{ID: "m", Role: models.RoleMentor}, "csv", models.RequestFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.ExportRequests(context.Background(), models.Actor{ID: "a", Role: models.RoleAdmin}, "xlsx", models.RequestFilter{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServicePassesFilter(t *testing.T) {
	stub := &requestListerStub{}
	svc := NewExportService(stub, zap.NewNop())
	status := models.RequestStatusPending

	_, err := svc.ExportRequests(context.Background(), models.Actor{ID: "a", Role: models.RoleAdmin}, "", models.RequestFilter{Status: &status})
	require.NoError(t, err)
	require.NotNil(t, stub.lastFilter.Status)
	assert.Equal(t, status, *stub.lastFilter.Status)
}

type countStub struct {
	requests models.RequestStats
	err      error
}

func (c countStub) CountByStatus(ctx context.Context) (models.RequestStats, error) {
	return c.requests, c.err
}

type mentorCountStub map[string]int

func (m mentorCountStub) CountByStatus(ctx context.Context) (map[string]int, error) {
	return m, nil
}

func TestAdminServiceStats(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordLifecycleEvent("request.created")
	svc := NewAdminService(countStub{requests: models.RequestStats{Total: 3, Pending: 3}}, mentorCountStub{"approved": 2, "pending": 1, "rejected": 0}, metrics)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Requests.Total)
	assert.Equal(t, 2, stats.Mentors["approved"])
	assert.EqualValues(t, 1, stats.System.LifecycleEvents["request.created"])
}

func TestAdminServiceStatsError(t *testing.T) {
	svc := NewAdminService(countStub{err: errors.New("boom")}, mentorCountStub{}, nil)
	_, err := svc.Stats(context.Background())
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
