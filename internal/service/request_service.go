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
	"github.com/noah-isme/skillmentorx-api/pkg/events"
)

const (
	requestCachePattern   = "requests:*"
	requestCacheAllPrefix = "requests:all:"
	requestCacheMentorKey = "requests:mentor:"
)

type requestStore interface {
	Create(ctx context.Context, req *models.Request, exclusive bool) error
	FindByID(ctx context.Context, id string) (*models.Request, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.RequestDetail, error)
	ListByMentor(ctx context.Context, mentorID string) ([]models.RequestDetail, error)
	ListAll(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, error)
	Update(ctx context.Context, req *models.Request, prev models.Request) error
	MarkResolved(ctx context.Context, id, mentorID string, at time.Time) error
	AppendReply(ctx context.Context, requestID string, reply models.Reply) error
	CountByStatus(ctx context.Context) (models.RequestStats, error)
}

type requestNotifier interface {
	NotifyRequestEvent(ctx context.Context, evt events.Event, req models.Request, text string)
}

// RequestServiceConfig tunes lifecycle rules.
type RequestServiceConfig struct {
	SingleActive bool
	CacheTTL     time.Duration
}

// RequestService owns the mentorship request lifecycle.
type RequestService struct {
	repo      requestStore
	resolver  *AssignmentResolver
	cache     *CacheService
	audit     auditRecorder
	notifier  requestNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RequestServiceConfig
	now       func() time.Time
}

// NewRequestService wires the lifecycle dependencies. cache, audit, notifier and metrics may be nil.
func NewRequestService(repo requestStore, resolver *AssignmentResolver, cache *CacheService, audit auditRecorder, notifier requestNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg RequestServiceConfig) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		repo:      repo,
		resolver:  resolver,
		cache:     cache,
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create files a new pending request for the calling student.
func (s *RequestService) Create(ctx context.Context, actor models.Actor, in models.CreateRequestInput) (*models.Request, error) {
	if err := authorizeRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	in.Category = strings.TrimSpace(in.Category)
	in.Stack = strings.TrimSpace(in.Stack)
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "category and stack are required")
	}

	now := s.now()
	req := &models.Request{
		ID:          uuid.NewString(),
		StudentID:   actor.ID,
		Category:    in.Category,
		Stack:       in.Stack,
		Status:      models.RequestStatusPending,
		Replies:     []models.Reply{},
		RequestedAt: now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, req, s.cfg.SingleActive); err != nil {
		if errors.Is(err, repository.ErrActiveRequestExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you already have an open request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.afterWrite(ctx, actor, *req, events.RequestCreated, models.AuditActionRequestCreate, nil, req, "")
	return req, nil
}

// ListForStudent returns the caller's own requests, newest first.
func (s *RequestService) ListForStudent(ctx context.Context, actor models.Actor) ([]models.RequestDetail, error) {
	if err := authorizeRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByStudent(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return nonNilDetails(items), nil
}

// ListAll returns every request for administrators, optionally filtered by status.
func (s *RequestService) ListAll(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]models.RequestDetail, error) {
	if err := authorizeRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}

	key := requestCacheAllPrefix + "any"
	if filter.Status != nil {
		key = requestCacheAllPrefix + string(*filter.Status)
	}
	var cached []models.RequestDetail
	if s.cache.Get(ctx, key, &cached) {
		return nonNilDetails(cached), nil
	}

	items, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	items = nonNilDetails(items)
	s.cache.Set(ctx, key, items, s.cfg.CacheTTL)
	return items, nil
}

// ListAssigned returns the requests currently assigned to the calling mentor.
func (s *RequestService) ListAssigned(ctx context.Context, actor models.Actor) ([]models.RequestDetail, error) {
	if err := authorizeRole(actor, models.RoleMentor); err != nil {
		return nil, err
	}

	key := requestCacheMentorKey + actor.ID
	var cached []models.RequestDetail
	if s.cache.Get(ctx, key, &cached) {
		return nonNilDetails(cached), nil
	}

	items, err := s.repo.ListByMentor(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assigned requests")
	}
	items = nonNilDetails(items)
	s.cache.Set(ctx, key, items, s.cfg.CacheTTL)
	return items, nil
}

// Get returns one request to a party allowed to see it.
func (s *RequestService) Get(ctx context.Context, actor models.Actor, id string) (*models.Request, error) {
	if err := authorizeRole(actor, models.RoleStudent, models.RoleMentor, models.RoleAdmin); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleStudent:
		if req.StudentID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
		}
	case models.RoleMentor:
		if err := authorizeAssignedMentor(actor, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Update applies an administrator's partial update: status, mentor assignment and notes.
func (s *RequestService) Update(ctx context.Context, actor models.Actor, id string, in models.UpdateRequestInput) (*models.Request, error) {
	if err := authorizeRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if in.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide status, mentorId or notes")
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request update")
	}

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *req
	prevMentor := derefString(req.AssignedMentorID)

	if in.MentorID != nil {
		if err := s.resolver.AssignMentor(ctx, req, *in.MentorID); err != nil {
			return nil, err
		}
	}
	if in.Status != nil && *in.Status != req.Status {
		if !req.Status.CanTransitionTo(*in.Status) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move a request from "+string(req.Status)+" to "+string(*in.Status))
		}
		if *in.Status != models.RequestStatusPending && req.AssignedMentorID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assign a mentor before marking the request "+string(*in.Status))
		}
		req.Status = *in.Status
	}
	if in.Notes != nil {
		req.Notes = strings.TrimSpace(*in.Notes)
	}
	req.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, req, before); err != nil {
		if errors.Is(err, repository.ErrStaleRequest) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request changed while updating, reload and try again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}

	event := events.RequestUpdated
	switch {
	case req.Status == models.RequestStatusResolved && before.Status != models.RequestStatusResolved:
		event = events.RequestResolved
	case derefString(req.AssignedMentorID) != prevMentor:
		event = events.RequestAssigned
	}
	s.afterWrite(ctx, actor, *req, event, models.AuditActionRequestUpdate, before, req, "")
	return req, nil
}

// AddReply appends a reply from the assigned mentor.
func (s *RequestService) AddReply(ctx context.Context, actor models.Actor, id string, in models.ReplyInput) (*models.Request, error) {
	if err := authorizeRole(actor, models.RoleMentor); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAssignedMentor(actor, req); err != nil {
		return nil, err
	}
	in.Text = strings.TrimSpace(in.Text)
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "reply text is required")
	}
	if req.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrRequestResolved, "resolved requests do not accept replies")
	}

	now := s.now()
	reply := models.Reply{AuthorMentorID: actor.ID, Text: in.Text, PostedAt: now}
	if err := s.repo.AppendReply(ctx, req.ID, reply); err != nil {
		if errors.Is(err, repository.ErrReplyRejected) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request changed while replying, reload and try again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add reply")
	}
	req.Replies = append(req.Replies, reply)
	req.UpdatedAt = now

	s.afterWrite(ctx, actor, *req, events.RequestReplied, models.AuditActionRequestReply, nil, reply, reply.Text)
	return req, nil
}

// Resolve marks the request resolved on behalf of its assigned mentor. Resolving twice is a no-op.
func (s *RequestService) Resolve(ctx context.Context, actor models.Actor, id string) (*models.Request, error) {
	if err := authorizeRole(actor, models.RoleMentor); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAssignedMentor(actor, req); err != nil {
		return nil, err
	}
	if req.Status == models.RequestStatusResolved {
		return req, nil
	}

	before := *req
	req.Status = models.RequestStatusResolved
	req.UpdatedAt = s.now()
	if err := s.repo.MarkResolved(ctx, req.ID, actor.ID, req.UpdatedAt); err != nil {
		if errors.Is(err, repository.ErrStaleRequest) {
			return s.resolvedByRace(ctx, actor, id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve request")
	}

	s.afterWrite(ctx, actor, *req, events.RequestResolved, models.AuditActionRequestResolve, before, req, "")
	return req, nil
}

// resolvedByRace settles a lost MarkResolved. A concurrent resolve by the same
// mentor keeps Resolve idempotent; anything else is a conflict.
func (s *RequestService) resolvedByRace(ctx context.Context, actor models.Actor, id string) (*models.Request, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.RequestStatusResolved && current.IsAssignedTo(actor.ID) {
		return current, nil
	}
	return nil, appErrors.Clone(appErrors.ErrConflict, "request changed while resolving, reload and try again")
}

// Stats counts requests per status.
func (s *RequestService) Stats(ctx context.Context) (models.RequestStats, error) {
	stats, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return models.RequestStats{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	return stats, nil
}

func (s *RequestService) load(ctx context.Context, id string) (*models.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if req.Replies == nil {
		req.Replies = []models.Reply{}
	}
	return req, nil
}

// afterWrite runs the side effects of a committed change. None of them can fail the operation.
func (s *RequestService) afterWrite(ctx context.Context, actor models.Actor, req models.Request, event, auditAction string, oldValues, newValues interface{}, text string) {
	s.cache.Invalidate(ctx, requestCachePattern)
	s.metrics.RecordLifecycleEvent(event)
	recordAudit(ctx, s.audit, s.logger, actor, auditAction, models.AuditResourceRequest, req.ID, oldValues, newValues)

	s.logger.Info("request lifecycle",
		zap.String("event", event),
		zap.String("request_id", req.ID),
		zap.String("actor_id", actor.ID),
		zap.String("status", string(req.Status)),
	)

	if s.notifier == nil {
		return
	}
	var mentorID *string
	if req.AssignedMentorID != nil {
		id := *req.AssignedMentorID
		mentorID = &id
	}
	s.notifier.NotifyRequestEvent(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       event,
		RequestID:  req.ID,
		ActorID:    actor.ID,
		Status:     string(req.Status),
		MentorID:   mentorID,
		StudentID:  req.StudentID,
		OccurredAt: req.UpdatedAt,
	}, req, text)
}

func nonNilDetails(items []models.RequestDetail) []models.RequestDetail {
	if items == nil {
		return []models.RequestDetail{}
	}
	for i := range items {
		if items[i].Replies == nil {
			items[i].Replies = []models.Reply{}
		}
	}
	return items
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
