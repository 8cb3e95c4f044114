package api

import (
	"context"
	"net/http"

	"healthtracker-doctors/internal/complaints"
	"healthtracker-doctors/internal/config"
	"healthtracker-doctors/internal/doctors"
	"healthtracker-doctors/internal/logger"
	"healthtracker-doctors/internal/messaging"
	"healthtracker-doctors/internal/patients"
	"healthtracker-doctors/internal/repository"
	"healthtracker-doctors/internal/session"
	"healthtracker-doctors/internal/supabase"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services behind the routes. In demo mode only Gateway and
// Sessions are set and the remaining groups are not mounted.
type Deps struct {
	Gateway    *messaging.Gateway
	Sessions   *session.Registry
	Doctors    *doctors.Service
	Patients   *patients.Service
	Complaints *complaints.Service
	Auth       *supabase.Client
	Ping       func(ctx context.Context) error
}

func SetupRoutes(router *gin.Engine, deps Deps, cfg *config.Config) {
	chatHandler := NewChatHandler(deps.Gateway, deps.Sessions)

	router.Use(logger.Middleware())
	router.Use(CORS(cfg.GetCORSOrigins()))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		err := deps.Gateway.Ready()
		if err == nil && deps.Ping != nil {
			err = deps.Ping(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "healthtracker-doctors",
			"demo":    cfg.DemoMode,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := AuthMiddleware(cfg.Supabase.JWTSecret)
	if cfg.DemoMode && cfg.Supabase.JWTSecret == "" {
		authMiddleware = DemoAuth(repository.DemoDoctorUserID)
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		if deps.Auth != nil {
			v1.POST("/auth/login", NewServer(nil, nil, nil, deps.Auth).Login)
		}

		protected := v1.Group("/")
		protected.Use(authMiddleware, RequireDoctor(deps.Gateway))
		{
			protected.GET("/me", GetProfile)

			messages := protected.Group("/messages")
			{
				messages.GET("/types", chatHandler.GetMessageTypes)
				messages.GET("/conversations/:otherUserId", chatHandler.GetConversation)
				messages.GET("/newer", chatHandler.GetNewer)
			}

			dashboard := protected.Group("/dashboard")
			{
				dashboard.GET("/patients", chatHandler.GetDashboardPatients)
				dashboard.GET("/unread", chatHandler.GetUnread)
				dashboard.GET("/new-messages", chatHandler.GetNewMessages)
			}

			chat := protected.Group("/chat")
			{
				chat.POST("/open", chatHandler.OpenConversation)
				chat.GET("/active", chatHandler.GetActive)
				chat.DELETE("/active", chatHandler.CloseActive)
				chat.POST("/active/messages", RateLimit(cfg.RateLimit.SendRPS, cfg.RateLimit.SendBurst), chatHandler.SendMessage)
				chat.POST("/active/focus", chatHandler.Focus)
				chat.DELETE("/active/error", chatHandler.ClearError)
			}

			if deps.Doctors == nil || deps.Patients == nil || deps.Complaints == nil {
				return
			}
			server := NewServer(deps.Doctors, deps.Patients, deps.Complaints, deps.Auth)

			protected.PUT("/me", server.UpdateProfile)
			protected.GET("/specializations", server.GetSpecializations)

			patientRoutes := protected.Group("/patients")
			{
				patientRoutes.GET("", server.GetPatients)
				patientRoutes.POST("", server.CreatePatient)
				patientRoutes.GET("/:id", server.GetPatient)
				patientRoutes.GET("/:id/measurements/:typeId", server.GetMeasurementHistory)
				patientRoutes.GET("/:id/complaints", server.GetPatientComplaints)
			}
			protected.GET("/measurements/:id", server.GetMeasurement)

			complaintRoutes := protected.Group("/complaints")
			{
				complaintRoutes.GET("", server.GetComplaints)
				complaintRoutes.POST("", server.CreateComplaint)
				complaintRoutes.PUT("/:id", server.UpdateComplaint)
				complaintRoutes.POST("/:id/end", server.EndComplaint)
			}
			protected.GET("/complaint-categories", server.GetComplaintCategories)
			protected.GET("/complaint-subcategories", server.GetComplaintSubcategories)
		}
	}
}
