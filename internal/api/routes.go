package api

import (
	"net/http"

	"notifyhub/internal/middleware"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with every route
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.RequestLogger(),
		middleware.Metrics(h.metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(h.cfg.CORSAllowedOrigins),
		middleware.ActivityLog(h.activity, h.users.FindByWebhookKey, h.cfg.ActivityLogExclude),
	)

	SetupRoutes(r, h)
	return r
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, h *Handler) {
	authRequired := middleware.AuthRequired(h.auth)

	api := r.Group("/api")
	{
		// Session routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimitByIP(h.loginLimiter), h.Login)
			auth.POST("/logout", h.Logout)
			auth.POST("/refresh", h.Refresh)
			auth.GET("/me", authRequired, h.Me)
			auth.PUT("/password", authRequired, h.ChangePassword)
		}

		// Public routes (LINE platform and self-registration)
		api.POST("/webhook", h.Webhook)
		api.POST("/user-applications", h.SubmitApplication)

		protected := api.Group("")
		protected.Use(authRequired)
		{
			templates := protected.Group("/templates")
			{
				templates.GET("", h.ListTemplates)
				templates.POST("", h.CreateTemplate)
				templates.GET("/:id", h.GetTemplate)
				templates.PUT("/:id", h.UpdateTemplate)
				templates.DELETE("/:id", h.DeleteTemplate)
				templates.GET("/:id/variables", h.TemplateVariables)
			}

			customers := protected.Group("/customers")
			{
				customers.GET("", h.ListCustomers)
				customers.POST("", h.SaveCustomer)
				customers.PUT("/:id", h.UpdateCustomer)
				customers.DELETE("/:id", h.DeleteCustomer)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.POST("/send", h.SendNotification)
				notifications.POST("/import-preview", h.ImportPreview)
			}

			protected.GET("/messages", h.ListMessages)
			protected.GET("/stats", h.Stats)

			settings := protected.Group("/settings")
			{
				settings.GET("", h.GetSettings)
				settings.PUT("", h.UpdateSettings)
				settings.POST("/webhook-key", h.RotateWebhookKey)
				settings.GET("/global", middleware.AdminRequired(), h.GetGlobalSettings)
				settings.PUT("/global", middleware.AdminRequired(), h.UpdateGlobalSettings)
			}

			users := protected.Group("/users")
			users.Use(middleware.UserManagerRequired())
			{
				users.GET("", h.ListUsers)
				users.POST("", h.CreateUser)
				users.GET("/:id", h.GetUser)
				users.PUT("/:id", h.UpdateUser)
				users.DELETE("/:id", h.DeleteUser)
			}

			admin := protected.Group("")
			admin.Use(middleware.AdminRequired())
			{
				admin.GET("/user-applications", h.ListApplications)
				admin.POST("/user-applications/:id/approve", h.ApproveApplication)
				admin.POST("/user-applications/:id/reject", h.RejectApplication)
				admin.GET("/activity-logs", h.ListActivityLogs)
			}
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "notifyhub",
		})
	})

	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}
