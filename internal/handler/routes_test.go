package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillmentorx-api/internal/middleware"
	"github.com/noah-isme/skillmentorx-api/internal/models"
	"github.com/noah-isme/skillmentorx-api/internal/service"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
	"github.com/noah-isme/skillmentorx-api/pkg/export"
	"github.com/noah-isme/skillmentorx-api/pkg/storage"
)

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type authServiceStub struct{ registered int }

func (s *authServiceStub) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	s.registered++
	return &models.LoginResponse{AccessToken: "tok", User: models.UserInfo{Email: req.Email}}, nil
}
func (s *authServiceStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	return nil, appErrors.ErrInvalidCredentials
}
func (s *authServiceStub) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{AccessToken: "tok"}, nil
}
func (s *authServiceStub) Logout(ctx context.Context, actor models.Actor, req models.LogoutRequest) error {
	return nil
}
func (s *authServiceStub) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}
func (s *authServiceStub) SelectRole(ctx context.Context, actor models.Actor, req models.SelectRoleRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{User: models.UserInfo{ID: actor.ID, Role: req.Role}}, nil
}
func (s *authServiceStub) ChangePassword(ctx context.Context, actor models.Actor, req models.ChangePasswordRequest) error {
	return nil
}
func (s *authServiceStub) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	return nil
}
func (s *authServiceStub) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	return nil
}

type mentorServiceStub struct {
	uploaded service.DocumentUpload
	body     []byte
}

func (s *mentorServiceStub) UpsertMine(ctx context.Context, actor models.Actor, req models.UpsertMentorProfileRequest) (*models.MentorProfile, error) {
	return &models.MentorProfile{UserID: actor.ID, FullName: req.FullName}, nil
}
func (s *mentorServiceStub) GetMine(ctx context.Context, actor models.Actor) (*models.MentorProfile, error) {
	return nil, appErrors.ErrNotFound
}
func (s *mentorServiceStub) UploadDocument(ctx context.Context, actor models.Actor, upload service.DocumentUpload) (*models.Document, error) {
	s.uploaded = upload
	s.body, _ = io.ReadAll(upload.Body)
	return &models.Document{Key: "mentors/" + actor.ID + "/cv/x.pdf", FileName: upload.FileName, ContentType: upload.ContentType}, nil
}
func (s *mentorServiceStub) OpenDocument(ctx context.Context, token string) (io.ReadCloser, storage.ObjectInfo, error) {
	if token != "good" {
		return nil, storage.ObjectInfo{}, appErrors.ErrForbidden
	}
	return io.NopCloser(strings.NewReader("%PDF-1.4")), storage.ObjectInfo{Key: "mentors/m1/cv/x.pdf", Size: 8, ContentType: "application/pdf"}, nil
}
func (s *mentorServiceStub) List(ctx context.Context, actor models.Actor, filter models.MentorFilter) ([]models.MentorProfile, error) {
	return []models.MentorProfile{}, nil
}
func (s *mentorServiceStub) SetVerification(ctx context.Context, actor models.Actor, id string, req models.VerificationRequest) (*models.MentorProfile, error) {
	return &models.MentorProfile{ID: id, VerificationStatus: req.Status}, nil
}

type studentServiceStub struct {
	created int
}

func (s *studentServiceStub) CreateMine(ctx context.Context, actor models.Actor, req models.StudentProfileRequest) (*models.StudentProfile, error) {
	s.created++
	if s.created > 1 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "profile already exists")
	}
	return &models.StudentProfile{UserID: actor.ID, FullName: req.FullName, SelectedStack: req.SelectedStack}, nil
}
func (s *studentServiceStub) GetMine(ctx context.Context, actor models.Actor) (*models.StudentProfile, error) {
	return &models.StudentProfile{UserID: actor.ID}, nil
}
func (s *studentServiceStub) UpdateMine(ctx context.Context, actor models.Actor, req models.StudentProfileRequest) (*models.StudentProfile, error) {
	return &models.StudentProfile{UserID: actor.ID, SelectedStack: req.SelectedStack}, nil
}
func (s *studentServiceStub) Get(ctx context.Context, actor models.Actor, userID string) (*models.StudentProfile, error) {
	return &models.StudentProfile{UserID: userID}, nil
}
func (s *studentServiceStub) Stacks(ctx context.Context, actor models.Actor) ([]string, error) {
	return []string{"React", "Go"}, nil
}

type userServiceStub struct{}

func (userServiceStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	return []models.User{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}
func (userServiceStub) Get(ctx context.Context, id string) (*models.User, error) {
	return nil, appErrors.ErrNotFound
}

type exportServiceStub struct{}

func (exportServiceStub) ExportRequests(ctx context.Context, actor models.Actor, rawFormat string, filter models.RequestFilter) (*service.ExportResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported format")
	}
	return &service.ExportResult{Filename: "requests_20240101_000000." + string(format), Format: format, Payload: []byte("id\n")}, nil
}

type statsServiceStub struct{}

func (statsServiceStub) Stats(ctx context.Context) (*models.AdminStats, error) {
	return &models.AdminStats{Requests: models.RequestStats{Total: 3}}, nil
}

type memoryAuditWriter struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (w *memoryAuditWriter) Create(ctx context.Context, log *models.AuditLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logs = append(w.logs, log)
	return nil
}

type memoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (models.RateDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	if m.counts[key] >= limit {
		return models.RateDecision{Remaining: 0, RetryAfter: window, ResetAfter: window}, nil
	}
	m.counts[key]++
	return models.RateDecision{Allowed: true, Remaining: limit - m.counts[key], ResetAfter: window}, nil
}

type testRouter struct {
	engine   *gin.Engine
	requests *requestServiceMock
	mentors  *mentorServiceStub
	audit    *memoryAuditWriter
}

func buildTestRouter(rateLimit int) testRouter {
	gin.SetMode(gin.TestMode)
	requests := &requestServiceMock{resp: &models.Request{ID: "r1"}, list: []models.RequestDetail{}}
	mentors := &mentorServiceStub{}
	audit := &memoryAuditWriter{}

	r := gin.New()
	RegisterRoutes(r, "/api/v1", Routes{
		Auth:     NewAuthHandler(&authServiceStub{}),
		Requests: NewRequestHandler(requests),
		Mentors:  NewMentorHandler(mentors, 1<<20),
		Students: NewStudentHandler(&studentServiceStub{}),
		Admin:    NewAdminHandler(userServiceStub{}, exportServiceStub{}, statsServiceStub{}),
		Metrics: NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
			"postgres": PingFunc(func(context.Context) error { return nil }),
		}),
		Tokens: stubTokens{
			"student": {UserID: "s1", Role: models.RoleStudent},
			"mentor":  {UserID: "m1", Role: models.RoleMentor},
			"admin":   {UserID: "a1", Role: models.RoleAdmin},
			"fresh":   {UserID: "n1", Role: models.RoleNone},
		},
		RateLimiter: &memoryLimiter{},
		RateLimit:   middleware.RateLimitConfig{Requests: rateLimit, Window: time.Minute},
		AuditWriter: audit,
	})
	return testRouter{engine: r, requests: requests, mentors: mentors, audit: audit}
}

func performRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func authed(method, target, token, body string) *http.Request {
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRoutesRequestAccessPolicy(t *testing.T) {
	tr := buildTestRouter(100)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
	}{
		{"create without token", http.MethodPost, "/api/v1/requests", "", `{"category":"a","stack":"b"}`, http.StatusUnauthorized},
		{"create with bad token", http.MethodPost, "/api/v1/requests", "nope", `{"category":"a","stack":"b"}`, http.StatusUnauthorized},
		{"create as mentor", http.MethodPost, "/api/v1/requests", "mentor", `{"category":"a","stack":"b"}`, http.StatusForbidden},
		{"create as student", http.MethodPost, "/api/v1/requests", "student", `{"category":"a","stack":"b"}`, http.StatusCreated},
		{"create as roleless", http.MethodPost, "/api/v1/requests", "fresh", `{"category":"a","stack":"b"}`, http.StatusForbidden},
		{"my as student", http.MethodGet, "/api/v1/requests/my", "student", "", http.StatusOK},
		{"my as admin", http.MethodGet, "/api/v1/requests/my", "admin", "", http.StatusForbidden},
		{"all as student", http.MethodGet, "/api/v1/requests", "student", "", http.StatusForbidden},
		{"all as admin", http.MethodGet, "/api/v1/requests?status=pending", "admin", "", http.StatusOK},
		{"update as mentor", http.MethodPut, "/api/v1/requests/r1", "mentor", `{"notes":"x"}`, http.StatusForbidden},
		{"update as admin", http.MethodPut, "/api/v1/requests/r1", "admin", `{"notes":"x"}`, http.StatusOK},
		{"assigned as mentor", http.MethodGet, "/api/v1/requests/assigned", "mentor", "", http.StatusOK},
		{"assigned as student", http.MethodGet, "/api/v1/requests/assigned", "student", "", http.StatusForbidden},
		{"reply as student", http.MethodPost, "/api/v1/requests/r1/replies", "student", `{"text":"x"}`, http.StatusForbidden},
		{"reply as mentor", http.MethodPost, "/api/v1/requests/r1/replies", "mentor", `{"text":"x"}`, http.StatusCreated},
		{"resolve as admin", http.MethodPost, "/api/v1/requests/r1/resolve", "admin", "", http.StatusForbidden},
		{"resolve as mentor", http.MethodPost, "/api/v1/requests/r1/resolve", "mentor", "", http.StatusOK},
		{"get as student", http.MethodGet, "/api/v1/requests/r1", "student", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performRequest(tr.engine, authed(tc.method, tc.path, tc.token, tc.body))
			assert.Equal(t, tc.status, resp.Code, resp.Body.String())
		})
	}
}

func TestRoutesRejectUnknownFields(t *testing.T) {
	tr := buildTestRouter(100)

	resp := performRequest(tr.engine, authed(http.MethodPost, "/api/v1/requests", "student", `{"category":"a","stack":"b","status":"resolved"}`))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, tr.requests.calls)
}

func TestRoutesRoleSelectionOnlyOnce(t *testing.T) {
	tr := buildTestRouter(100)

	resp := performRequest(tr.engine, authed(http.MethodPut, "/api/v1/auth/role", "fresh", `{"role":"mentor"}`))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = performRequest(tr.engine, authed(http.MethodPut, "/api/v1/auth/role", "student", `{"role":"mentor"}`))
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), appErrors.ErrRoleAlreadySet.Code)
}

func TestRoutesAuthRateLimited(t *testing.T) {
	tr := buildTestRouter(2)

	for i := 0; i < 2; i++ {
		resp := performRequest(tr.engine, authed(http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@b.co","password":"x"}`))
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	}
	resp := performRequest(tr.engine, authed(http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@b.co","password":"x"}`))
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))

	// request endpoints are not limited
	for i := 0; i < 3; i++ {
		resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/requests/my", "student", ""))
		require.Equal(t, http.StatusOK, resp.Code)
	}
}

func TestRoutesAdminExport(t *testing.T) {
	tr := buildTestRouter(100)

	resp := performRequest(tr.engine, authed(http.MethodGet, "/api/v1/admin/requests/export?format=csv", "admin", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, export.FormatCSV.ContentType(), resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "requests_20240101_000000.csv")
	require.Len(t, tr.audit.logs, 1)
	assert.Equal(t, models.AuditActionRequestExport, tr.audit.logs[0].Action)

	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/admin/requests/export?format=xlsx", "admin", ""))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Len(t, tr.audit.logs, 1)

	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/admin/requests/export", "mentor", ""))
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestRoutesAdminUsersAndStats(t *testing.T) {
	tr := buildTestRouter(100)

	resp := performRequest(tr.engine, authed(http.MethodGet, "/api/v1/admin/users?page=2&page_size=5", "admin", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"page":2`)

	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/admin/users/missing", "admin", ""))
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/admin/stats", "admin", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total":3`)
}

func TestRoutesMentorDocumentUploadAndDownload(t *testing.T) {
	tr := buildTestRouter(100)

	var buf bytes.Buffer
	form := multipartBody(t, &buf, "cv", "resume.pdf", []byte("%PDF-1.4 test document"))
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/mentors/me/documents", &buf)
	req.Header.Set("Content-Type", form)
	req.Header.Set("Authorization", "Bearer mentor")
	resp := performRequest(tr.engine, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, models.DocumentCV, tr.mentors.uploaded.Kind)
	assert.Equal(t, "application/pdf", tr.mentors.uploaded.ContentType)
	assert.Equal(t, "%PDF-1.4 test document", string(tr.mentors.body))

	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/mentors/documents/download?token=good", "", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "x.pdf")
	assert.Equal(t, "%PDF-1.4", resp.Body.String())

	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/mentors/documents/download?token=bad", "", ""))
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestRoutesMentorProfileGates(t *testing.T) {
	tr := buildTestRouter(100)

	resp := performRequest(tr.engine, authed(http.MethodPut, "/api/v1/mentors/me", "student", `{"full_name":"x"}`))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/mentors/me", "mentor", ""))
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = performRequest(tr.engine, authed(http.MethodPut, "/api/v1/mentors/p1/verification", "admin", `{"status":"approved"}`))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"verification_status":"approved"`)
}

func TestRoutesStudentProfiles(t *testing.T) {
	tr := buildTestRouter(100)
	body := `{"full_name":"Sam","location":"Jakarta","phone":"+6281234567","education_level":"bachelor","selected_course":"web_development","selected_stack":"React"}`

	resp := performRequest(tr.engine, authed(http.MethodPost, "/api/v1/students/me", "mentor", body))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = performRequest(tr.engine, authed(http.MethodPost, "/api/v1/students/me", "student", body))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"selected_stack":"React"`)

	resp = performRequest(tr.engine, authed(http.MethodPost, "/api/v1/students/me", "student", body))
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = performRequest(tr.engine, authed(http.MethodPut, "/api/v1/students/me", "student", `{"selected_stack":"Vue","user_id":"x"}`))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/students/me/stacks", "student", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `["React","Go"]`)

	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/admin/students/s1", "student", ""))
	require.Equal(t, http.StatusForbidden, resp.Code)
	resp = performRequest(tr.engine, authed(http.MethodGet, "/api/v1/admin/students/s1", "admin", ""))
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRoutesProbes(t *testing.T) {
	tr := buildTestRouter(100)

	resp := performRequest(tr.engine, authed(http.MethodGet, "/health", "", ""))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = performRequest(tr.engine, authed(http.MethodGet, "/ready", "", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"postgres":"ok"`)

	resp = performRequest(tr.engine, authed(http.MethodGet, "/metrics", "", ""))
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestMetricsHandlerReadyReportsFailure(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	c, w := newTestContext(http.MethodGet, "/ready", "", nil)
	handler.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
