package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/blog-comb/app/cfg"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/blogs/:id/feed", handler.GetBlogFeed)

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.GET("/blogs", handler.APIListBlogs)
			api.POST("/blogs", handler.APICollectBlog)
			api.GET("/blogs/:id", handler.APIGetBlogDetails)
			api.GET("/blogs/:id/posts", handler.APIListPosts)
			api.POST("/blogs/:id/update", handler.APIUpdateBlog)
			api.POST("/blogs/:id/refilter", handler.APIRefilterBlog)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"feed":   "/blogs/<id>/feed",
			"health": "/health",
			"stats":  "/stats",
		}

		if apiAccessKey != "" {
			endpoints["blogs"] = "/api/blogs (GET to list, POST to collect; requires X-API-Key header)"
			endpoints["details"] = "/api/blogs/<id> (requires X-API-Key header)"
			endpoints["posts"] = "/api/blogs/<id>/posts (requires X-API-Key header)"
			endpoints["update"] = "/api/blogs/<id>/update (POST, requires X-API-Key header)"
			endpoints["refilter"] = "/api/blogs/<id>/refilter (POST, requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Blog Comb",
			"version":     cfg.GetVersion(),
			"description": "Collects complete blog archives from feeds and crawled pages",
			"endpoints":   endpoints,
			"api_status": gin.H{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware accepts the key from X-API-Key or an Authorization bearer token.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}

		if providedKey != apiAccessKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			return
		}

		c.Next()
	}
}
