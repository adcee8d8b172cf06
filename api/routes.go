package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailgram/mailgram/api/handlers"
	"github.com/mailgram/mailgram/api/middleware"
	"github.com/mailgram/mailgram/internal/tracing"
	"github.com/mailgram/mailgram/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, apiKey string) {
	if s == nil {
		panic("Services cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-API-KEY",
		ValidAPIKey: apiKey,
	})

	users := r.Group("/users")
	users.Use(apiKeyMiddleware)
	{
		users.POST("", handlers.CreateUser(s.UserService))
		users.GET("/:telegram_id/exists", handlers.UserExists(s.UserService))

		users.POST("/:telegram_id/boxes", handlers.CreateBox(s.BoxService))
		users.GET("/:telegram_id/boxes", handlers.GetUserBoxes(s.BoxService))
		users.GET("/:telegram_id/boxes/:box_id", handlers.GetBox(s.BoxService))
		users.DELETE("/:telegram_id/boxes/:box_id", handlers.DeleteBox(s.BoxService))
		users.GET("/:telegram_id/boxes/:box_id/filters", handlers.GetBoxFilters(s.BoxService))
		users.GET("/:telegram_id/boxes/:box_id/pause", handlers.PauseBox(s.BoxService))
		users.GET("/:telegram_id/boxes/:box_id/resume", handlers.ResumeBox(s.BoxService))
	}

	emailServices := r.Group("/services")
	emailServices.Use(apiKeyMiddleware)
	{
		emailServices.GET("", handlers.GetServices(s.EmailServiceService))
	}
}
