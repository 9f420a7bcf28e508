package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nmtran/snapfeed-be/internal/api/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DBClient != nil {
			if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "snapfeed-api-service",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "snapfeed-api-service",
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	postHandler := handler.NewPostHandler(deps)
	composeHandler := handler.NewComposeHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		posts := v1.Group("/posts")
		{
			// POST /api/v1/posts - Create a post (cooldown gated)
			posts.POST("", postHandler.CreatePost)

			// GET /api/v1/posts - List posts with filtering and pagination
			posts.GET("", postHandler.ListPosts)

			// GET /api/v1/posts/:post_id - Get post details
			posts.GET("/:post_id", postHandler.GetPost)

			// POST /api/v1/posts/:post_id/like - Toggle the caller's like
			posts.POST("/:post_id/like", postHandler.ToggleLike)

			// POST /api/v1/posts/:post_id/comments - Add a comment
			posts.POST("/:post_id/comments", postHandler.CreateComment)

			// GET /api/v1/posts/:post_id/comments - List comments
			posts.GET("/:post_id/comments", postHandler.ListComments)
		}

		users := v1.Group("/users")
		{
			// GET /api/v1/users/:username/timer - Post cooldown status
			users.GET("/:username/timer", postHandler.Timer)
		}

		compose := v1.Group("/compose")
		{
			// POST /api/v1/compose/generate - Generate post text (blocking)
			compose.POST("/generate", composeHandler.Generate)

			// POST /api/v1/compose/translate - Translate text (blocking)
			compose.POST("/translate", composeHandler.Translate)
		}
	}

	return r
}
