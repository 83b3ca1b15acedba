package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	"github.com/noah-isme/skillmentorx-api/internal/repository"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
)

type studentProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	Create(ctx context.Context, profile *models.StudentProfile) error
	Update(ctx context.Context, profile *models.StudentProfile) error
	RequestedStacks(ctx context.Context, studentID string) ([]string, error)
}

// StudentService manages student profiles.
type StudentService struct {
	repo      studentProfileRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentProfileRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateMine creates the caller's profile. A student has at most one.
func (s *StudentService) CreateMine(ctx context.Context, actor models.Actor, req models.StudentProfileRequest) (*models.StudentProfile, error) {
	if err := authorizeRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	profile := &models.StudentProfile{ID: uuid.NewString(), UserID: actor.ID, CreatedAt: now}
	applyStudentProfile(profile, req, now)

	if err := s.repo.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "profile already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save student profile")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionStudentProfileCreate, models.AuditResourceStudent, profile.ID, nil, req)
	return s.reload(ctx, profile)
}

// GetMine returns the caller's profile.
func (s *StudentService) GetMine(ctx context.Context, actor models.Actor) (*models.StudentProfile, error) {
	if err := authorizeRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	return s.find(ctx, actor.ID)
}

// Get returns any student's profile for an administrator.
func (s *StudentService) Get(ctx context.Context, actor models.Actor, userID string) (*models.StudentProfile, error) {
	if err := authorizeRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
	}
	return s.find(ctx, userID)
}

// UpdateMine replaces the descriptive fields of the caller's existing profile.
func (s *StudentService) UpdateMine(ctx context.Context, actor models.Actor, req models.StudentProfileRequest) (*models.StudentProfile, error) {
	if err := authorizeRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	before, err := s.find(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	profile := *before
	applyStudentProfile(&profile, req, s.now())
	if err := s.repo.Update(ctx, &profile); err != nil {
		return nil, studentLookupError(err)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionStudentProfileUpdate, models.AuditResourceStudent, profile.ID, before, profile)
	return &profile, nil
}

// Stacks lists the caller's chosen stack followed by any other stacks they have requested help with.
func (s *StudentService) Stacks(ctx context.Context, actor models.Actor) ([]string, error) {
	if err := authorizeRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	profile, err := s.find(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	requested, err := s.repo.RequestedStacks(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stacks")
	}

	stacks := []string{profile.SelectedStack}
	seen := map[string]bool{strings.ToLower(profile.SelectedStack): true}
	for _, stack := range requested {
		key := strings.ToLower(strings.TrimSpace(stack))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		stacks = append(stacks, stack)
	}
	return stacks, nil
}

func (s *StudentService) normalize(req models.StudentProfileRequest) (models.StudentProfileRequest, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Location = strings.TrimSpace(req.Location)
	req.Phone = strings.TrimSpace(req.Phone)
	req.AvatarURL = strings.TrimSpace(req.AvatarURL)
	req.SelectedStack = strings.TrimSpace(req.SelectedStack)
	if err := s.validator.Struct(req); err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student profile")
	}
	return req, nil
}

func (s *StudentService) find(ctx context.Context, userID string) (*models.StudentProfile, error) {
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, studentLookupError(err)
	}
	return profile, nil
}

// reload picks up the joined account email after a write, falling back to what was written.
func (s *StudentService) reload(ctx context.Context, profile *models.StudentProfile) (*models.StudentProfile, error) {
	stored, err := s.repo.FindByUserID(ctx, profile.UserID)
	if err != nil {
		s.logger.Warn("reload student profile", zap.String("user_id", profile.UserID), zap.Error(err))
		return profile, nil
	}
	return stored, nil
}

func applyStudentProfile(profile *models.StudentProfile, req models.StudentProfileRequest, now time.Time) {
	profile.FullName = req.FullName
	profile.Location = req.Location
	profile.Phone = req.Phone
	profile.AvatarURL = req.AvatarURL
	profile.EducationLevel = req.EducationLevel
	profile.SelectedCourse = req.SelectedCourse
	profile.SelectedStack = req.SelectedStack
	profile.UpdatedAt = now
}

func studentLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
}
