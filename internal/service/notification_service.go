package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	"github.com/noah-isme/skillmentorx-api/pkg/events"
	"github.com/noah-isme/skillmentorx-api/pkg/jobs"
	"github.com/noah-isme/skillmentorx-api/pkg/mailer"
)

const (
	jobTypeRequestEvent = "request_event"
	jobTypeRequestMail  = "request_mail"
	jobTypeEmail        = "email"
)

type notificationUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// NotificationConfig configures delivery.
type NotificationConfig struct {
	FrontendURL string
	Workers     int
	MaxRetries  int
	RetryDelay  time.Duration
}

// requestEventPayload carries the event plus the request fields emails need.
type requestEventPayload struct {
	Event    events.Event
	Category string
	Stack    string
	Text     string
}

// NotificationService relays lifecycle events and emails through a background queue.
type NotificationService struct {
	queue     *jobs.Queue
	publisher events.Publisher
	mailer    mailer.Mailer
	users     notificationUserLookup
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       NotificationConfig
}

// NewNotificationService wires the queue handler; call Start before enqueueing.
func NewNotificationService(publisher events.Publisher, m mailer.Mailer, users notificationUserLookup, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if m == nil {
		m = mailer.NewLogMailer(logger)
	}
	s := &NotificationService{
		publisher: publisher,
		mailer:    m,
		users:     users,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending deliveries until ctx expires.
func (s *NotificationService) Stop(ctx context.Context) {
	s.queue.Stop(ctx)
}

// NotifyRequestEvent schedules event publication and the matching email as
// independent jobs. It never blocks or fails the caller.
func (s *NotificationService) NotifyRequestEvent(_ context.Context, evt events.Event, req models.Request, text string) {
	if s == nil {
		return
	}
	payload := requestEventPayload{Event: evt, Category: req.Category, Stack: req.Stack, Text: text}
	if err := s.queue.Enqueue(jobs.Job{ID: evt.ID, Type: jobTypeRequestEvent, Payload: payload}); err != nil {
		s.metrics.RecordNotification("queue", false)
		s.logger.Warn("drop request notification", zap.String("event", evt.Type), zap.String("request_id", evt.RequestID), zap.Error(err))
	}
	if recipientID, _ := s.recipientFor(evt); recipientID == "" {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: evt.ID + ":mail", Type: jobTypeRequestMail, Payload: payload}); err != nil {
		s.metrics.RecordNotification("queue", false)
		s.logger.Warn("drop request email", zap.String("event", evt.Type), zap.String("request_id", evt.RequestID), zap.Error(err))
	}
}

// SendWelcome emails a newly registered user.
func (s *NotificationService) SendWelcome(user models.User) {
	s.enqueueTemplate(user, "welcome", welcomeTemplate, map[string]string{
		"Name": user.FirstName,
		"Link": s.cfg.FrontendURL + "/login",
	})
}

// SendPasswordReset emails the reset link carrying the raw token.
func (s *NotificationService) SendPasswordReset(user models.User, token string, expiry time.Duration) {
	s.enqueueTemplate(user, "password_reset", passwordResetTemplate, map[string]string{
		"Name":   user.FirstName,
		"Link":   s.cfg.FrontendURL + "/reset-password?token=" + token,
		"Expiry": expiry.String(),
	})
}

func (s *NotificationService) enqueueTemplate(user models.User, category string, tpl *mailer.Template, data interface{}) {
	if s == nil {
		return
	}
	msg, err := s.render(user, category, tpl, data)
	if err != nil {
		s.logger.Error("render email", zap.String("category", category), zap.Error(err))
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: jobTypeEmail, Payload: msg}); err != nil {
		s.metrics.RecordNotification("queue", false)
		s.logger.Warn("drop email", zap.String("category", category), zap.Error(err))
	}
}

func (s *NotificationService) render(user models.User, category string, tpl *mailer.Template, data interface{}) (mailer.Message, error) {
	text, html, err := tpl.Render(data)
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{
		To:       mail.Address{Name: user.FullName(), Address: user.Email},
		Subject:  tpl.Subject,
		Text:     text,
		HTML:     html,
		Category: category,
	}, nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobTypeRequestEvent:
		payload, ok := job.Payload.(requestEventPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", job.Payload)
		}
		return s.publishRequestEvent(ctx, payload)
	case jobTypeRequestMail:
		payload, ok := job.Payload.(requestEventPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", job.Payload)
		}
		return s.mailRequestEvent(ctx, payload)
	case jobTypeEmail:
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			return fmt.Errorf("unexpected payload %T", job.Payload)
		}
		err := s.mailer.Send(ctx, msg)
		s.metrics.RecordNotification("email", err == nil)
		return err
	default:
		s.logger.Warn("unknown notification job", zap.String("type", job.Type))
		return nil
	}
}

func (s *NotificationService) publishRequestEvent(ctx context.Context, payload requestEventPayload) error {
	if err := s.publisher.Publish(ctx, payload.Event); err != nil {
		s.metrics.RecordNotification("event", false)
		return fmt.Errorf("publish %s: %w", payload.Event.Type, err)
	}
	s.metrics.RecordNotification("event", true)
	return nil
}

// mailRequestEvent emails the party the event concerns. Only a failed send is retried.
func (s *NotificationService) mailRequestEvent(ctx context.Context, payload requestEventPayload) error {
	recipientID, tpl := s.recipientFor(payload.Event)
	if recipientID == "" || s.users == nil {
		return nil
	}
	user, err := s.users.FindByID(ctx, recipientID)
	if err != nil {
		s.logger.Warn("notification recipient lookup failed", zap.String("user_id", recipientID), zap.Error(err))
		return nil
	}
	msg, err := s.render(*user, payload.Event.Type, tpl, map[string]string{
		"Name":     user.FirstName,
		"Category": payload.Category,
		"Stack":    payload.Stack,
		"Status":   payload.Event.Status,
		"Text":     payload.Text,
		"Link":     s.cfg.FrontendURL + "/requests/" + payload.Event.RequestID,
	})
	if err != nil {
		s.logger.Error("render email", zap.String("category", payload.Event.Type), zap.Error(err))
		return nil
	}
	err = s.mailer.Send(ctx, msg)
	s.metrics.RecordNotification("email", err == nil)
	return err
}

func (s *NotificationService) recipientFor(evt events.Event) (string, *mailer.Template) {
	switch evt.Type {
	case events.RequestAssigned:
		if evt.MentorID != nil {
			return *evt.MentorID, requestAssignedTemplate
		}
	case events.RequestReplied:
		return evt.StudentID, requestRepliedTemplate
	case events.RequestResolved:
		return evt.StudentID, requestResolvedTemplate
	}
	return "", nil
}
