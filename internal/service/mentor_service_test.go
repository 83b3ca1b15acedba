package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
	"github.com/noah-isme/skillmentorx-api/pkg/storage"
)

type memoryMentorRepo struct {
	byUser map[string]*models.MentorProfile
}

func newMemoryMentorRepo() *memoryMentorRepo {
	return &memoryMentorRepo{byUser: map[string]*models.MentorProfile{}}
}

func (m *memoryMentorRepo) FindByUserID(ctx context.Context, userID string) (*models.MentorProfile, error) {
	p, ok := m.byUser[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *p
	out.Documents = models.Documents{}
	for k, v := range p.Documents {
		out.Documents[k] = append([]models.Document(nil), v...)
	}
	return &out, nil
}

func (m *memoryMentorRepo) FindByID(ctx context.Context, id string) (*models.MentorProfile, error) {
	for _, p := range m.byUser {
		if p.ID == id {
			out := *p
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryMentorRepo) Upsert(ctx context.Context, profile *models.MentorProfile) error {
	if existing, ok := m.byUser[profile.UserID]; ok {
		profile.ID = existing.ID
		profile.Documents = existing.Documents
		profile.VerificationStatus = existing.VerificationStatus
		profile.CreatedAt = existing.CreatedAt
	} else if profile.VerificationStatus == "" {
		profile.VerificationStatus = models.VerificationPending
	}
	stored := *profile
	m.byUser[profile.UserID] = &stored
	return nil
}

func (m *memoryMentorRepo) UpdateDocuments(ctx context.Context, userID string, docs models.Documents) error {
	p, ok := m.byUser[userID]
	if !ok {
		return sql.ErrNoRows
	}
	p.Documents = docs
	return nil
}

func (m *memoryMentorRepo) UpdateVerification(ctx context.Context, id string, status models.VerificationStatus) error {
	for _, p := range m.byUser {
		if p.ID == id {
			p.VerificationStatus = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryMentorRepo) List(ctx context.Context, filter models.MentorFilter) ([]models.MentorProfile, error) {
	var out []models.MentorProfile
	for _, p := range m.byUser {
		if filter.Status == nil || p.VerificationStatus == *filter.Status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func newTestMentorService(t *testing.T) (*MentorService, *memoryMentorRepo, *storage.LocalStorage) {
	t.Helper()
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	store, err := storage.NewLocalStorage(t.TempDir(), "/api/v1/mentors/documents/download", signer)
	require.NoError(t, err)
	repo := newMemoryMentorRepo()
	svc := NewMentorService(repo, store, nil, &mockAuditRecorder{}, validator.New(), zap.NewNop(), MentorConfig{
		MaxUploadBytes: 1024,
		AllowedMIMEs:   []string{"application/pdf", "image/png"},
	})
	return svc, repo, store
}

func validProfileRequest() models.UpsertMentorProfileRequest {
	return models.UpsertMentorProfileRequest{
		FullName:          "Grace Hopper",
		YearsOfExperience: 12,
		Expertise:         []string{" Go ", "go", "Postgres", ""},
		GitHub:            "https://github.com/grace",
	}
}

func TestMentorServiceUpsertMine(t *testing.T) {
	svc, repo, _ := newTestMentorService(t)
	mentor := models.Actor{ID: uuid.NewString(), Role: models.RoleMentor}

	profile, err := svc.UpsertMine(context.Background(), mentor, validProfileRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Postgres"}, []string(profile.Expertise))
	assert.Equal(t, models.VerificationPending, profile.VerificationStatus)

	repo.byUser[mentor.ID].VerificationStatus = models.VerificationApproved
	req := validProfileRequest()
	req.Headline = "Compiler whisperer"
	updated, err := svc.UpsertMine(context.Background(), mentor, req)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, updated.ID)
	assert.Equal(t, models.VerificationApproved, updated.VerificationStatus)
	assert.Equal(t, "Compiler whisperer", updated.Headline)
}

func TestMentorServiceUpsertValidation(t *testing.T) {
	svc, _, _ := newTestMentorService(t)
	mentor := models.Actor{ID: uuid.NewString(), Role: models.RoleMentor}

	req := validProfileRequest()
	req.Expertise = []string{"  "}
	_, err := svc.UpsertMine(context.Background(), mentor, req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UpsertMine(context.Background(), models.Actor{ID: "s", Role: models.RoleStudent}, validProfileRequest())
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestMentorServiceUploadAndDownload(t *testing.T) {
	svc, repo, _ := newTestMentorService(t)
	mentor := models.Actor{ID: uuid.NewString(), Role: models.RoleMentor}
	_, err := svc.UpsertMine(context.Background(), mentor, validProfileRequest())
	require.NoError(t, err)

	doc, err := svc.UploadDocument(context.Background(), mentor, DocumentUpload{
		Kind:        models.DocumentCV,
		FileName:    "Resume.PDF",
		ContentType: "application/pdf",
		Size:        5,
		Body:        strings.NewReader("%PDF-"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(doc.Key, ".pdf"))
	assert.True(t, strings.HasPrefix(doc.Key, "mentors/"+mentor.ID+"/cv/"))
	require.NotEmpty(t, doc.URL)
	assert.Len(t, repo.byUser[mentor.ID].Documents[models.DocumentCV], 1)

	parsed, err := url.Parse(doc.URL)
	require.NoError(t, err)
	rc, info, err := svc.OpenDocument(context.Background(), parsed.Query().Get("token"))
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(body))
	assert.EqualValues(t, 5, info.Size)

	_, _, err = svc.OpenDocument(context.Background(), "garbage")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestMentorServiceUploadReplacesSingleSlotAndAccumulatesQualifications(t *testing.T) {
	svc, repo, store := newTestMentorService(t)
	mentor := models.Actor{ID: uuid.NewString(), Role: models.RoleMentor}
	_, err := svc.UpsertMine(context.Background(), mentor, validProfileRequest())
	require.NoError(t, err)

	upload := func(kind models.DocumentKind) *models.Document {
		doc, err := svc.UploadDocument(context.Background(), mentor, DocumentUpload{Kind: kind, FileName: "a.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
		require.NoError(t, err)
		return doc
	}

	first := upload(models.DocumentProfilePicture)
	upload(models.DocumentProfilePicture)
	assert.Len(t, repo.byUser[mentor.ID].Documents[models.DocumentProfilePicture], 1)
	_, _, err = store.Open(context.Background(), first.Key)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	upload(models.DocumentQualificationProof)
	upload(models.DocumentQualificationProof)
	assert.Len(t, repo.byUser[mentor.ID].Documents[models.DocumentQualificationProof], 2)
}

func TestMentorServiceUploadRejections(t *testing.T) {
	svc, _, _ := newTestMentorService(t)
	mentor := models.Actor{ID: uuid.NewString(), Role: models.RoleMentor}

	cases := []struct {
		name   string
		upload DocumentUpload
		want   *appErrors.Error
	}{
		{"unknown kind", DocumentUpload{Kind: "selfie", Size: 1, Body: strings.NewReader("x"), ContentType: "image/png"}, appErrors.ErrValidation},
		{"too large", DocumentUpload{Kind: models.DocumentCV, Size: 4096, Body: strings.NewReader("x"), ContentType: "application/pdf"}, appErrors.ErrValidation},
		{"bad mime", DocumentUpload{Kind: models.DocumentCV, Size: 1, Body: strings.NewReader("x"), ContentType: "application/x-msdownload"}, appErrors.ErrValidation},
		{"no profile", DocumentUpload{Kind: models.DocumentCV, Size: 1, Body: strings.NewReader("x"), ContentType: "application/pdf"}, appErrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UploadDocument(context.Background(), mentor, tc.upload)
			require.Error(t, err)
			assert.Equal(t, tc.want.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestMentorServiceVerification(t *testing.T) {
	svc, repo, _ := newTestMentorService(t)
	mentor := models.Actor{ID: uuid.NewString(), Role: models.RoleMentor}
	admin := models.Actor{ID: uuid.NewString(), Role: models.RoleAdmin}
	profile, err := svc.UpsertMine(context.Background(), mentor, validProfileRequest())
	require.NoError(t, err)

	_, err = svc.SetVerification(context.Background(), mentor, profile.ID, models.VerificationRequest{Status: models.VerificationApproved})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	updated, err := svc.SetVerification(context.Background(), admin, profile.ID, models.VerificationRequest{Status: models.VerificationApproved})
	require.NoError(t, err)
	assert.True(t, updated.IsActive())
	assert.True(t, repo.byUser[mentor.ID].IsActive())

	_, err = svc.SetVerification(context.Background(), admin, uuid.NewString(), models.VerificationRequest{Status: models.VerificationRejected})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	approved := models.VerificationApproved
	list, err := svc.List(context.Background(), admin, models.MentorFilter{Status: &approved})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMentorServiceGetMineMissing(t *testing.T) {
	svc, _, _ := newTestMentorService(t)
	_, err := svc.GetMine(context.Background(), models.Actor{ID: uuid.NewString(), Role: models.RoleMentor})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestMentorServiceWritesInvalidateRequestListings(t *testing.T) {
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	store, err := storage.NewLocalStorage(t.TempDir(), "/api/v1/mentors/documents/download", signer)
	require.NoError(t, err)
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	svc := NewMentorService(newMemoryMentorRepo(), store, cache, &mockAuditRecorder{}, validator.New(), zap.NewNop(), MentorConfig{})
	ctx := context.Background()
	mentor := models.Actor{ID: uuid.NewString(), Role: models.RoleMentor}
	admin := models.Actor{ID: uuid.NewString(), Role: models.RoleAdmin}

	cache.Set(ctx, requestCacheAllPrefix+"any", []string{"stale"}, 0)
	cache.Set(ctx, requestCacheMentorKey+mentor.ID, []string{"stale"}, 0)
	profile, err := svc.UpsertMine(ctx, mentor, validProfileRequest())
	require.NoError(t, err)
	assert.Zero(t, cacheRepo.len())
	assert.Equal(t, []string{requestCachePattern}, cacheRepo.deletedPatterns())

	cache.Set(ctx, requestCacheAllPrefix+"any", []string{"stale"}, 0)
	_, err = svc.SetVerification(ctx, admin, profile.ID, models.VerificationRequest{Status: models.VerificationApproved})
	require.NoError(t, err)
	assert.Zero(t, cacheRepo.len())
	assert.Len(t, cacheRepo.deletedPatterns(), 2)
}
