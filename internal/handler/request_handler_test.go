package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillmentorx-api/internal/middleware"
	"github.com/noah-isme/skillmentorx-api/internal/models"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
)

type requestServiceMock struct {
	resp       *models.Request
	list       []models.RequestDetail
	err        error
	lastActor  models.Actor
	lastID     string
	lastCreate models.CreateRequestInput
	lastUpdate models.UpdateRequestInput
	lastReply  models.ReplyInput
	lastFilter models.RequestFilter
	calls      []string
}

func (m *requestServiceMock) Create(ctx context.Context, actor models.Actor, in models.CreateRequestInput) (*models.Request, error) {
	m.calls = append(m.calls, "create")
	m.lastActor, m.lastCreate = actor, in
	return m.resp, m.err
}

func (m *requestServiceMock) ListForStudent(ctx context.Context, actor models.Actor) ([]models.RequestDetail, error) {
	m.calls = append(m.calls, "mine")
	m.lastActor = actor
	return m.list, m.err
}

func (m *requestServiceMock) ListAll(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]models.RequestDetail, error) {
	m.calls = append(m.calls, "all")
	m.lastActor, m.lastFilter = actor, filter
	return m.list, m.err
}

func (m *requestServiceMock) ListAssigned(ctx context.Context, actor models.Actor) ([]models.RequestDetail, error) {
	m.calls = append(m.calls, "assigned")
	m.lastActor = actor
	return m.list, m.err
}

func (m *requestServiceMock) Get(ctx context.Context, actor models.Actor, id string) (*models.Request, error) {
	m.calls = append(m.calls, "get")
	m.lastActor, m.lastID = actor, id
	return m.resp, m.err
}

func (m *requestServiceMock) Update(ctx context.Context, actor models.Actor, id string, in models.UpdateRequestInput) (*models.Request, error) {
	m.calls = append(m.calls, "update")
	m.lastActor, m.lastID, m.lastUpdate = actor, id, in
	return m.resp, m.err
}

func (m *requestServiceMock) AddReply(ctx context.Context, actor models.Actor, id string, in models.ReplyInput) (*models.Request, error) {
	m.calls = append(m.calls, "reply")
	m.lastActor, m.lastID, m.lastReply = actor, id, in
	return m.resp, m.err
}

func (m *requestServiceMock) Resolve(ctx context.Context, actor models.Actor, id string) (*models.Request, error) {
	m.calls = append(m.calls, "resolve")
	m.lastActor, m.lastID = actor, id
	return m.resp, m.err
}

func newTestContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "handler-test")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequestHandlerCreate(t *testing.T) {
	mockSvc := &requestServiceMock{resp: &models.Request{ID: "r1", StudentID: "s1", Status: models.RequestStatusPending}}
	handler := NewRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/requests", `{"category":"Backend","stack":"Go"}`,
		&models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "s1", mockSvc.lastActor.ID)
	assert.Equal(t, models.RoleStudent, mockSvc.lastActor.Role)
	assert.Equal(t, "handler-test", mockSvc.lastActor.UserAgent)
	assert.Equal(t, "Go", mockSvc.lastCreate.Stack)

	body := decodeEnvelope(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "r1", data["id"])
	assert.Equal(t, "s1", data["studentId"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRequestHandlerCreateUnauthenticated(t *testing.T) {
	mockSvc := &requestServiceMock{}
	handler := NewRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/requests", `{"category":"Backend","stack":"Go"}`, nil)
	handler.Create(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, mockSvc.calls)
}

func TestRequestHandlerCreateMalformedBody(t *testing.T) {
	mockSvc := &requestServiceMock{}
	handler := NewRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/requests", `{"category":`,
		&models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.calls)
	body := decodeEnvelope(t, w)
	assert.Equal(t, appErrors.ErrValidation.Code, body["error"].(map[string]interface{})["code"])
}

func TestRequestHandlerCreateConflict(t *testing.T) {
	mockSvc := &requestServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "you already have an open request")}
	handler := NewRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/requests", `{"category":"Backend","stack":"Go"}`,
		&models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "you already have an open request", decodeEnvelope(t, w)["message"])
}

func TestRequestHandlerListAllStatusFilter(t *testing.T) {
	mockSvc := &requestServiceMock{list: []models.RequestDetail{}}
	handler := NewRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/requests?status=accepted", "",
		&models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	handler.ListAll(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Status)
	assert.Equal(t, models.RequestStatusAccepted, *mockSvc.lastFilter.Status)
	assert.Equal(t, []interface{}{}, decodeEnvelope(t, w)["data"])
}

func TestRequestHandlerListAllWithoutFilter(t *testing.T) {
	mockSvc := &requestServiceMock{list: []models.RequestDetail{{Request: models.Request{ID: "r1"}}}}
	handler := NewRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/requests", "", &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	handler.ListAll(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mockSvc.lastFilter.Status)
	assert.Len(t, decodeEnvelope(t, w)["data"], 1)
}

func TestRequestHandlerUpdatePassesPath(t *testing.T) {
	mockSvc := &requestServiceMock{resp: &models.Request{ID: "r1", Status: models.RequestStatusAccepted}}
	handler := NewRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodPut, "/requests/r1", `{"status":"accepted","mentorId":"1f8f3b0e-9a39-4c47-9c55-2b1b8f0b7c11"}`,
		&models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r1", mockSvc.lastID)
	require.NotNil(t, mockSvc.lastUpdate.Status)
	assert.Equal(t, models.RequestStatusAccepted, *mockSvc.lastUpdate.Status)
	require.NotNil(t, mockSvc.lastUpdate.MentorID)
	assert.Nil(t, mockSvc.lastUpdate.Notes)
}

func TestRequestHandlerUpdateErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", appErrors.ErrNotFound, http.StatusNotFound},
		{"backwards", appErrors.ErrInvalidTransition, http.StatusConflict},
		{"validation", appErrors.ErrValidation, http.StatusBadRequest},
		{"internal", appErrors.ErrInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRequestHandler(&requestServiceMock{err: tc.err})
			c, w := newTestContext(http.MethodPut, "/requests/r1", `{"notes":"x"}`,
				&models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
			c.Params = gin.Params{{Key: "id", Value: "r1"}}
			handler.Update(c)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequestHandlerAddReply(t *testing.T) {
	mockSvc := &requestServiceMock{resp: &models.Request{ID: "r1", Replies: []models.Reply{{AuthorMentorID: "m1", Text: "hi"}}}}
	handler := NewRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/requests/r1/replies", `{"text":"hi"}`,
		&models.JWTClaims{UserID: "m1", Role: models.RoleMentor})
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.AddReply(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "hi", mockSvc.lastReply.Text)
	assert.Equal(t, "m1", mockSvc.lastActor.ID)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	replies := data["replies"].([]interface{})
	assert.Equal(t, "m1", replies[0].(map[string]interface{})["authorMentorId"])
}

func TestRequestHandlerAddReplyForbidden(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{err: appErrors.ErrForbidden})

	c, w := newTestContext(http.MethodPost, "/requests/r1/replies", `{"text":"hi"}`,
		&models.JWTClaims{UserID: "m2", Role: models.RoleMentor})
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.AddReply(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestHandlerResolve(t *testing.T) {
	mockSvc := &requestServiceMock{resp: &models.Request{ID: "r1", Status: models.RequestStatusResolved}}
	handler := NewRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/requests/r1/resolve", "",
		&models.JWTClaims{UserID: "m1", Role: models.RoleMentor})
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Resolve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"resolve"}, mockSvc.calls)
	assert.Equal(t, "resolved", decodeEnvelope(t, w)["data"].(map[string]interface{})["status"])
}

func TestRequestHandlerGetAndListings(t *testing.T) {
	mockSvc := &requestServiceMock{resp: &models.Request{ID: "r1"}, list: []models.RequestDetail{}}
	handler := NewRequestHandler(mockSvc)
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleMentor}

	c, w := newTestContext(http.MethodGet, "/requests/r1", "", claims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/requests/assigned", "", claims)
	handler.ListAssigned(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/requests/my", "", claims)
	handler.ListMine(c)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"get", "assigned", "mine"}, mockSvc.calls)
}
