package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/skillmentorx-api/api/swagger"
	"github.com/noah-isme/skillmentorx-api/internal/handler"
	internalmiddleware "github.com/noah-isme/skillmentorx-api/internal/middleware"
	"github.com/noah-isme/skillmentorx-api/internal/repository"
	"github.com/noah-isme/skillmentorx-api/internal/service"
	"github.com/noah-isme/skillmentorx-api/migrations"
	"github.com/noah-isme/skillmentorx-api/pkg/cache"
	"github.com/noah-isme/skillmentorx-api/pkg/config"
	"github.com/noah-isme/skillmentorx-api/pkg/database"
	"github.com/noah-isme/skillmentorx-api/pkg/events"
	"github.com/noah-isme/skillmentorx-api/pkg/logger"
	"github.com/noah-isme/skillmentorx-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/skillmentorx-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/skillmentorx-api/pkg/middleware/requestid"
	"github.com/noah-isme/skillmentorx-api/pkg/storage"
)

// @title SkillMentorX API
// @version 1.0.0
// @description Mentorship requests between students, mentors and administrators
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Migrations.AutoMigrate {
		if err := database.Migrate(db, migrations.FS, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	store, err := newObjectStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to init document storage", zap.Error(err))
	}

	publisher := newPublisher(cfg, logr)
	defer publisher.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Requests.ListCacheTTL, logr, cfg.Requests.CacheEnabled)

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	mentorRepo := repository.NewMentorRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	notifications := service.NewNotificationService(publisher, newMailer(cfg, logr), userRepo, metricsSvc, logr, service.NotificationConfig{
		FrontendURL: cfg.Mail.FrontendURL,
		Workers:     cfg.Notifications.Workers,
		MaxRetries:  cfg.Notifications.MaxRetries,
		RetryDelay:  cfg.Notifications.RetryDelay,
	})
	notifications.Start(ctx)

	authSvc := service.NewAuthService(userRepo, auditRepo, notifications, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.JWT.ResetExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	requestSvc := service.NewRequestService(requestRepo, service.NewAssignmentResolver(mentorRepo), cacheSvc, auditRepo,
		notifications, metricsSvc, validate, logr, service.RequestServiceConfig{
			SingleActive: cfg.Requests.SingleActive,
			CacheTTL:     cfg.Requests.ListCacheTTL,
		})
	mentorSvc := service.NewMentorService(mentorRepo, store, cacheSvc, auditRepo, validate, logr, service.MentorConfig{
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		AllowedMIMEs:   cfg.Storage.AllowedMIMEs,
	})
	studentSvc := service.NewStudentService(studentRepo, auditRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, logr)
	exportSvc := service.NewExportService(requestRepo, logr)
	adminSvc := service.NewAdminService(requestRepo, mentorRepo, metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	rateLimit := internalmiddleware.RateLimitConfig{Prefix: "ratelimit:auth"}
	if cfg.RateLimit.Enabled {
		rateLimit.Requests = cfg.RateLimit.Requests
		rateLimit.Window = cfg.RateLimit.Window
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Routes{
		Auth:     handler.NewAuthHandler(authSvc),
		Requests: handler.NewRequestHandler(requestSvc),
		Mentors:  handler.NewMentorHandler(mentorSvc, cfg.Storage.MaxUploadBytes),
		Students: handler.NewStudentHandler(studentSvc),
		Admin:    handler.NewAdminHandler(userSvc, exportSvc, adminSvc),
		Metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
			"postgres": handler.PingFunc(db.PingContext),
			"redis":    cacheRepo,
		}),
		Tokens:      authSvc,
		RateLimiter: repository.NewRateLimiter(redisClient),
		RateLimit:   rateLimit,
		AuditWriter: auditRepo,
		Logger:      logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown", zap.Error(err))
	}
	notifications.Stop(shutdownCtx)
}

func newObjectStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (storage.ObjectStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMinio:
		return storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			Region:    cfg.Storage.MinioRegion,
			UseSSL:    cfg.Storage.MinioUseSSL,
			URLTTL:    cfg.Storage.SignedURLTTL,
		}, logr)
	case "", config.StorageDriverLocal:
		signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
		return storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.APIPrefix+"/mentors/documents/download", signer)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newMailer(cfg *config.Config, logr *zap.Logger) mailer.Mailer {
	if cfg.Mail.Driver == config.MailDriverSendGrid && cfg.Mail.SendGridAPIKey != "" {
		from := mail.Address{Name: cfg.Mail.FromName, Address: cfg.Mail.FromAddress}
		return mailer.NewSendGridMailer(cfg.Mail.SendGridAPIKey, from, cfg.Mail.FromName)
	}
	if cfg.Mail.Driver == config.MailDriverSendGrid {
		logr.Warn("SENDGRID_API_KEY is empty, emails will only be logged")
	}
	return mailer.NewLogMailer(logr)
}

func newPublisher(cfg *config.Config, logr *zap.Logger) events.Publisher {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}
	}
	publisher, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logr)
	if err != nil {
		logr.Warn("event broker unavailable, lifecycle events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	return publisher
}
