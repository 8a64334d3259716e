package main

import (
	"github.com/gin-gonic/gin"
	"github.com/innovasus/innovasus/internal/config"
	"github.com/innovasus/innovasus/internal/middleware"
	"github.com/innovasus/innovasus/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for credential endpoints
	authLimiter := middleware.NewRateLimiter(cfg.Server.AuthRateRPS, cfg.Server.AuthRateBurst)

	// Health check
	r.GET("/health", svc.healthHandler.CheckHealth)

	// Stored files, served locally unless S3 is the storage backend. The
	// gate is re-checked here so withheld URLs cannot be guessed.
	if svc.localFiles {
		r.GET("/files/*key", middleware.OptionalAuth(), svc.fileHandler.Serve)
	}

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.GET("/verify-email", svc.authHandler.VerifyEmail)
			auth.POST("/resend-verification", svc.authHandler.ResendVerification)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
		}

		// Public content routes. Identity is optional: the gate treats an
		// absent token as an anonymous viewer.
		public := api.Group("")
		public.Use(middleware.OptionalAuth())
		{
			public.GET("/articles", svc.articleHandler.List)
			public.GET("/articles/:id", svc.articleHandler.Get)
			public.GET("/media", svc.mediaHandler.List)
			public.GET("/media/:id", svc.mediaHandler.Get)
			public.GET("/media/:id/files/:file_id/url", svc.mediaHandler.FileURL)
			public.GET("/access/check", svc.accessHandler.Check)
			public.GET("/users", svc.userHandler.Search)
			public.GET("/users/:id", svc.userHandler.GetProfile)
			public.GET("/users/:id/followers", svc.userHandler.Followers)
			public.GET("/users/:id/following", svc.userHandler.Following)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.Me)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Profile
			protected.PUT("/users/me", svc.userHandler.UpdateProfile)
			protected.POST("/users/me/avatar", svc.userHandler.UploadAvatar)
			protected.POST("/users/:id/follow", svc.userHandler.Follow)
			protected.DELETE("/users/:id/follow", svc.userHandler.Unfollow)

			// Publishing
			protected.POST("/articles", svc.articleHandler.Create)
			protected.DELETE("/articles/:id", svc.articleHandler.Delete)
			protected.POST("/media", svc.mediaHandler.Create)
			protected.DELETE("/media/:id", svc.mediaHandler.Delete)

			// Access requests
			protected.POST("/access/requests", svc.accessHandler.Submit)
			protected.GET("/access/requests/pending", svc.accessHandler.PendingForOwner)

			// Engagement
			protected.POST("/media/:id/like", svc.mediaHandler.ToggleLike)
			protected.GET("/media/:id/comments", svc.mediaHandler.Comments)
			protected.POST("/media/:id/comments", svc.mediaHandler.AddComment)

			// Communities
			protected.POST("/communities", svc.communityHandler.Create)
			protected.GET("/communities", svc.communityHandler.List)
			protected.GET("/communities/:id", svc.communityHandler.Get)
			protected.POST("/communities/:id/invite", svc.communityHandler.Invite)
			protected.GET("/communities/:id/messages", svc.communityHandler.Messages)
			protected.POST("/communities/:id/messages", svc.communityHandler.PostMessage)

			// Messaging
			protected.POST("/messages", svc.messageHandler.Send)
			protected.GET("/messages/conversations", svc.messageHandler.Conversations)
			protected.GET("/messages/thread/:partner_id", svc.messageHandler.Thread)
			protected.GET("/messages/unread", svc.messageHandler.UnreadCount)
		}

		// Admin only routes
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			admin.GET("/access/requests", svc.accessHandler.AdminListPending)
			admin.POST("/access/requests/:id/approve", svc.accessHandler.AdminApprove)

			admin.GET("/logs", svc.systemLogHandler.List)
			admin.GET("/logs/modules", svc.systemLogHandler.GetModules)
			admin.GET("/logs/retention", svc.systemLogHandler.GetRetention)
			admin.PUT("/logs/retention", svc.systemLogHandler.SetRetention)
			admin.POST("/logs/cleanup", svc.systemLogHandler.Cleanup)
		}
	}
}
