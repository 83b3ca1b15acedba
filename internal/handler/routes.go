package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/noah-isme/skillmentorx-api/internal/middleware"
	"github.com/noah-isme/skillmentorx-api/internal/models"
)

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
}

// Routes bundles everything RegisterRoutes mounts.
type Routes struct {
	Auth     *AuthHandler
	Requests *RequestHandler
	Mentors  *MentorHandler
	Students *StudentHandler
	Admin    *AdminHandler
	Metrics  *MetricsHandler

	Tokens      middleware.TokenValidator
	RateLimiter middleware.RateLimiter
	RateLimit   middleware.RateLimitConfig
	AuditWriter middleware.AuditWriter
	Logger      *zap.Logger
}

// RegisterRoutes mounts the system probes on r and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, rt Routes) {
	if rt.Metrics != nil {
		r.GET("/health", rt.Metrics.Health)
		r.GET("/ready", rt.Metrics.Ready)
		r.GET("/metrics", rt.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	authn := middleware.JWT(rt.Tokens)
	student := middleware.RequireRoles(models.RoleStudent)
	mentor := middleware.RequireRoles(models.RoleMentor)
	admin := middleware.RequireRoles(models.RoleAdmin)

	auth := api.Group("/auth")
	if rt.RateLimiter != nil && rt.RateLimit.Requests > 0 {
		limit := rt.RateLimit
		if limit.Prefix == "" {
			limit.Prefix = "auth"
		}
		auth.Use(middleware.RateLimit(rt.RateLimiter, limit, rt.Logger))
	}
	auth.POST("/register", rt.Auth.Register)
	auth.POST("/login", rt.Auth.Login)
	auth.POST("/refresh", rt.Auth.Refresh)
	auth.POST("/forgot-password", rt.Auth.ForgotPassword)
	auth.POST("/reset-password", rt.Auth.ResetPassword)
	auth.POST("/logout", authn, rt.Auth.Logout)
	auth.GET("/me", authn, rt.Auth.Me)
	auth.PUT("/role", authn, middleware.RequireNoRole(), rt.Auth.SelectRole)
	auth.POST("/change-password", authn, rt.Auth.ChangePassword)

	requests := api.Group("/requests", authn)
	requests.POST("", student, rt.Requests.Create)
	requests.GET("/my", student, rt.Requests.ListMine)
	requests.GET("", admin, rt.Requests.ListAll)
	requests.GET("/assigned", mentor, rt.Requests.ListAssigned)
	requests.GET("/:id", rt.Requests.Get)
	requests.PUT("/:id", admin, rt.Requests.Update)
	requests.POST("/:id/replies", mentor, rt.Requests.AddReply)
	requests.POST("/:id/resolve", mentor, rt.Requests.Resolve)

	mentors := api.Group("/mentors")
	mentors.GET("/documents/download", rt.Mentors.Download)
	mentors.PUT("/me", authn, mentor, rt.Mentors.UpsertMine)
	mentors.GET("/me", authn, mentor, rt.Mentors.GetMine)
	mentors.POST("/me/documents", authn, mentor, rt.Mentors.UploadDocument)
	mentors.GET("", authn, admin, rt.Mentors.List)
	mentors.PUT("/:id/verification", authn, admin, rt.Mentors.SetVerification)

	students := api.Group("/students/me", authn, student)
	students.POST("", rt.Students.CreateMine)
	students.GET("", rt.Students.GetMine)
	students.PUT("", rt.Students.UpdateMine)
	students.GET("/stacks", rt.Students.Stacks)

	adminGroup := api.Group("/admin", authn, admin)
	adminGroup.GET("/users", rt.Admin.ListUsers)
	adminGroup.GET("/users/:id", rt.Admin.GetUser)
	adminGroup.GET("/students/:id", rt.Students.Get)
	adminGroup.GET("/requests/export",
		middleware.Audit(rt.AuditWriter, rt.Logger, models.AuditActionRequestExport, models.AuditResourceRequest),
		rt.Admin.ExportRequests)
	adminGroup.GET("/stats", rt.Admin.Stats)
}
