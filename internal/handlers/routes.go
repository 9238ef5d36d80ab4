package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/harentsoaR/diagnosia-api/internal/config"
	"github.com/harentsoaR/diagnosia-api/internal/metrics"
	"github.com/harentsoaR/diagnosia-api/internal/middleware"
	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
	"github.com/harentsoaR/diagnosia-api/internal/utils"
)

const APIPrefix = "/api/v1"

// RouterDeps are the collaborators of the HTTP middleware chain.
type RouterDeps struct {
	Tokens         *utils.TokenService
	Users          repository.UserRepository
	Metrics        *metrics.Metrics
	RateLimit      config.RateLimitConfig
	Redis          *redis.Client
	AllowedOrigins []string
	// TrustedProxies lists the peers whose X-Forwarded-For is honoured. Empty trusts none.
	TrustedProxies []string
}

func NewRouter(h *Handler, deps RouterDeps) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		h.logger.Warn("invalid trusted proxies, trusting none", "proxies", deps.TrustedProxies, "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	// --- Middleware ---
	r.Use(middleware.RequestLogger(h.logger, deps.Metrics))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.logger.Error("panic recovered", "request_id", middleware.RequestID(c), "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{Success: false, Error: genericError})
	}))
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Success: false, Error: "Ruta no encontrada"})
	})

	r.GET("/health", func(c *gin.Context) {
		respond(c, http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	protect := middleware.Authenticate(deps.Tokens, deps.Users, h.logger)
	limit := middleware.RateLimit(deps.RateLimit, deps.Redis, h.logger)
	api := r.Group(APIPrefix)

	// --- Auth ---
	auth := api.Group("/auth")
	{
		auth.POST("/register", limit, h.Register)
		auth.POST("/login", limit, h.Login)
		auth.POST("/verify-code", limit, h.VerifyCode)
		auth.POST("/reset-password", limit, h.RequestPasswordReset)
		auth.POST("/reset-password-confirm", limit, h.ConfirmPasswordReset)
		auth.GET("/me", protect, h.Me)
		auth.PUT("/me", protect, h.UpdateMe)
	}

	// --- Patients ---
	patients := api.Group("/patients", protect, middleware.RequireRole(models.RolePatient))
	{
		patients.GET("/medical-history", h.GetMedicalHistory)
		patients.POST("/medical-history/documents", h.AddDocument)
		patients.GET("/medical-history/documents", h.ListDocuments)
		patients.POST("/appointments", h.CreateAppointment)
		patients.GET("/appointments", h.GetPatientAppointments)
		patients.GET("/payments", h.GetPaymentHistory)
	}

	// --- Doctors ---
	doctors := api.Group("/doctors", protect)
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/specialty/:specialty", h.ListDoctorsBySpecialty)

		own := doctors.Group("", middleware.RequireRole(models.RoleDoctor))
		own.GET("/appointments/today", h.TodaysAppointments)
		own.GET("/income", h.Income)
		own.GET("/patients/:id/medical-history", h.PatientMedicalHistory)
		own.POST("/patients/:id/consultation-notes", h.AddConsultationNote)
	}

	// --- Appointments ---
	appointments := api.Group("/appointments", protect)
	{
		appointments.GET("", h.GetAppointments)
		appointments.POST("", h.CreateAppointment)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.PUT("/:id/cancel", h.CancelAppointment)
	}

	// --- Payments ---
	payments := api.Group("/payments", protect)
	{
		payments.POST("/process", h.ProcessPayment)
		payments.POST("/generate-qr", h.GeneratePaymentQR)
		payments.PUT("/:appointmentId/confirm-cash", middleware.RequireRole(models.RoleDoctor), h.ConfirmPayment)
		payments.PUT("/:appointmentId/confirm", middleware.RequireRole(models.RoleDoctor), h.ConfirmPayment)
	}

	// --- AI ---
	ai := api.Group("/ai", protect)
	{
		ai.POST("/analyze-text", h.AnalyzeText)
		ai.POST("/analyze-symptoms", h.AnalyzeSymptoms)
		ai.POST("/analyze-image", h.AnalyzeImage)
		ai.POST("/analyze-document", h.AnalyzeDocument)
		ai.POST("/chat", h.Chat)
	}

	// --- Admin ---
	admin := api.Group("/admin", protect, middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/users", h.ListUsers)
	}

	return r
}
