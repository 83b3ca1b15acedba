package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
	"github.com/noah-isme/skillmentorx-api/pkg/storage"
)

type mentorProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.MentorProfile, error)
	FindByID(ctx context.Context, id string) (*models.MentorProfile, error)
	Upsert(ctx context.Context, profile *models.MentorProfile) error
	UpdateDocuments(ctx context.Context, userID string, docs models.Documents) error
	UpdateVerification(ctx context.Context, id string, status models.VerificationStatus) error
	List(ctx context.Context, filter models.MentorFilter) ([]models.MentorProfile, error)
}

// tokenRedeemer is implemented by stores that serve downloads through the API.
type tokenRedeemer interface {
	Redeem(token string) (string, error)
}

// MentorConfig bounds document uploads.
type MentorConfig struct {
	MaxUploadBytes int64
	AllowedMIMEs   []string
}

// DocumentUpload is one file submitted by a mentor.
type DocumentUpload struct {
	Kind        models.DocumentKind
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MentorService manages mentor profiles, documents and verification.
type MentorService struct {
	repo      mentorProfileRepository
	store     storage.ObjectStore
	cache     *CacheService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MentorConfig
	allowed   map[string]bool
	now       func() time.Time
}

// NewMentorService constructs a MentorService. cache may be nil.
func NewMentorService(repo mentorProfileRepository, store storage.ObjectStore, cache *CacheService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, cfg MentorConfig) *MentorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	allowed := make(map[string]bool, len(cfg.AllowedMIMEs))
	for _, mime := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(mime)] = true
	}
	return &MentorService{
		repo:      repo,
		store:     store,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		allowed:   allowed,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UpsertMine creates or updates the caller's profile. Verification and documents are left untouched.
func (s *MentorService) UpsertMine(ctx context.Context, actor models.Actor, req models.UpsertMentorProfileRequest) (*models.MentorProfile, error) {
	if err := authorizeRole(actor, models.RoleMentor); err != nil {
		return nil, err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Expertise = normalizeTags(req.Expertise)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor profile")
	}

	now := s.now()
	profile := &models.MentorProfile{
		ID:                uuid.NewString(),
		UserID:            actor.ID,
		FullName:          req.FullName,
		Headline:          strings.TrimSpace(req.Headline),
		Bio:               strings.TrimSpace(req.Bio),
		CurrentRole:       strings.TrimSpace(req.CurrentRole),
		Company:           strings.TrimSpace(req.Company),
		YearsOfExperience: req.YearsOfExperience,
		Expertise:         pq.StringArray(req.Expertise),
		LinkedIn:          req.LinkedIn,
		GitHub:            req.GitHub,
		Portfolio:         req.Portfolio,
		PhoneNumber:       strings.TrimSpace(req.PhoneNumber),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Upsert(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mentor profile")
	}
	// Request listings embed the mentor's name and expertise.
	s.cache.Invalidate(ctx, requestCachePattern)
	s.decorate(ctx, profile)
	return profile, nil
}

// GetMine returns the caller's profile with fresh document links.
func (s *MentorService) GetMine(ctx context.Context, actor models.Actor) (*models.MentorProfile, error) {
	if err := authorizeRole(actor, models.RoleMentor); err != nil {
		return nil, err
	}
	profile, err := s.repo.FindByUserID(ctx, actor.ID)
	if err != nil {
		return nil, mentorLookupError(err)
	}
	s.decorate(ctx, profile)
	return profile, nil
}

// UploadDocument stores a file and records it on the caller's profile.
func (s *MentorService) UploadDocument(ctx context.Context, actor models.Actor, upload DocumentUpload) (*models.Document, error) {
	if err := authorizeRole(actor, models.RoleMentor); err != nil {
		return nil, err
	}
	if !upload.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be profile_picture, id_proof, qualification_proof or cv")
	}
	if upload.Size <= 0 || upload.Body == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is too large")
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(upload.ContentType, ";", 2)[0]))
	if len(s.allowed) > 0 && !s.allowed[contentType] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type "+contentType+" is not allowed")
	}

	profile, err := s.repo.FindByUserID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "create your mentor profile before uploading documents")
		}
		return nil, mentorLookupError(err)
	}

	key := path.Join("mentors", actor.ID, string(upload.Kind), uuid.NewString()+strings.ToLower(path.Ext(upload.FileName)))
	if err := s.store.Put(ctx, key, upload.Body, upload.Size, contentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	doc := models.Document{
		Key:         key,
		FileName:    path.Base(strings.ReplaceAll(upload.FileName, "\\", "/")),
		ContentType: contentType,
		Size:        upload.Size,
		UploadedAt:  s.now(),
	}

	docs := profile.Documents
	if docs == nil {
		docs = models.Documents{}
	}
	var replaced []models.Document
	if upload.Kind.Multiple() {
		docs[upload.Kind] = append(docs[upload.Kind], doc)
	} else {
		replaced = docs[upload.Kind]
		docs[upload.Kind] = []models.Document{doc}
	}

	if err := s.repo.UpdateDocuments(ctx, actor.ID, docs); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned document", zap.String("key", key), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}
	for _, old := range replaced {
		if err := s.store.Delete(ctx, old.Key); err != nil {
			s.logger.Warn("failed to remove replaced document", zap.String("key", old.Key), zap.Error(err))
		}
	}

	if link, _, err := s.store.URL(ctx, key); err == nil {
		doc.URL = link
	}
	return &doc, nil
}

// OpenDocument redeems a signed download token issued by the local store.
func (s *MentorService) OpenDocument(ctx context.Context, token string) (io.ReadCloser, storage.ObjectInfo, error) {
	redeemer, ok := s.store.(tokenRedeemer)
	if !ok {
		return nil, storage.ObjectInfo{}, appErrors.Clone(appErrors.ErrNotFound, "downloads are served by the object store")
	}
	key, err := redeemer.Redeem(token)
	if err != nil {
		return nil, storage.ObjectInfo{}, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "download link is invalid or expired")
	}
	rc, info, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, storage.ObjectInfo{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return rc, info, nil
}

// List returns mentor profiles for administrators.
func (s *MentorService) List(ctx context.Context, actor models.Actor, filter models.MentorFilter) ([]models.MentorProfile, error) {
	if err := authorizeRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if filter.Status != nil && !validVerification(*filter.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown verification status")
	}
	profiles, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentors")
	}
	if profiles == nil {
		profiles = []models.MentorProfile{}
	}
	for i := range profiles {
		s.decorate(ctx, &profiles[i])
	}
	return profiles, nil
}

// SetVerification records an administrator's review of a profile.
func (s *MentorService) SetVerification(ctx context.Context, actor models.Actor, id string, req models.VerificationRequest) (*models.MentorProfile, error) {
	if err := authorizeRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be pending, approved or rejected")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor profile not found")
	}

	before, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mentorLookupError(err)
	}
	if err := s.repo.UpdateVerification(ctx, id, req.Status); err != nil {
		return nil, mentorLookupError(err)
	}
	s.cache.Invalidate(ctx, requestCachePattern)
	after := *before
	after.VerificationStatus = req.Status
	after.UpdatedAt = s.now()

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionMentorVerify, models.AuditResourceMentor, id,
		map[string]string{"verification_status": string(before.VerificationStatus)},
		map[string]string{"verification_status": string(req.Status)})
	s.decorate(ctx, &after)
	return &after, nil
}

func (s *MentorService) decorate(ctx context.Context, profile *models.MentorProfile) {
	if profile.Documents == nil {
		profile.Documents = models.Documents{}
	}
	if profile.Expertise == nil {
		profile.Expertise = pq.StringArray{}
	}
	for kind, docs := range profile.Documents {
		for i := range docs {
			link, _, err := s.store.URL(ctx, docs[i].Key)
			if err != nil {
				s.logger.Warn("failed to sign document url", zap.String("key", docs[i].Key), zap.Error(err))
				continue
			}
			docs[i].URL = link
		}
		profile.Documents[kind] = docs
	}
}

func mentorLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "mentor profile not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor profile")
}

func validVerification(status models.VerificationStatus) bool {
	switch status {
	case models.VerificationPending, models.VerificationApproved, models.VerificationRejected:
		return true
	}
	return false
}

// normalizeTags trims, drops empties and de-duplicates case-insensitively, keeping first spelling.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}
