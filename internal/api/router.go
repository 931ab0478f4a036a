package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blog-comment-widget/internal/config"
	"github.com/blog-comment-widget/internal/identity"
	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/repository"
	"github.com/blog-comment-widget/internal/store"
	"github.com/blog-comment-widget/internal/widget"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionStore is a comment store scoped to one visitor session
type SessionStore interface {
	store.Store
	Snapshot(ctx context.Context, contentKey string, order models.Order) (models.Snapshot, error)
	Session() *models.Session
}

// StoreFactory returns a store that resumes the session identified by token,
// or starts a new one on first append when token is empty or unknown
type StoreFactory func(token string) SessionStore

// Deps holds what the router needs
type Deps struct {
	Stores        StoreFactory
	Identity      identity.Authenticator
	Comments      repository.CommentRepository
	Subscriptions interface{ Active() int }
	Health        func(ctx context.Context) error
	PoolStats     func() sql.DBStats
	Renderer      *widget.Renderer
	Config        *config.Config
}

// AdapterFactory adapts a store.Adapter to a StoreFactory
func AdapterFactory(a *store.Adapter) StoreFactory {
	return func(token string) SessionStore {
		return a.WithSessionToken(token)
	}
}

// NewRouter creates and configures the Gin router
func NewRouter(deps Deps, log zerolog.Logger) (*gin.Engine, error) {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	if deps.Renderer == nil {
		r, err := widget.NewRenderer()
		if err != nil {
			return nil, err
		}
		deps.Renderer = r
	}
	format, err := widget.NewFormatter(deps.Config.Widget)
	if err != nil {
		return nil, fmt.Errorf("invalid widget configuration: %w", err)
	}

	router := gin.New()
	// Content keys may contain slashes; clients send them as %2F and the
	// route params come back decoded.
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.SetHTMLTemplate(deps.Renderer.Template())

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Handlers
	commentHandler := NewCommentHandler(deps, format, log)
	sessionHandler := NewSessionHandler(deps, log)
	widgetHandler := NewWidgetHandler(deps, log)

	// Health check
	router.GET("/health", healthCheck(deps.Health))
	router.GET("/metrics", metricsHandler(deps))

	// Rendered comment section
	router.GET("/comments/:slug", commentHandler.Page)
	router.GET("/widget/giscus", widgetHandler.Giscus)

	// API v1
	v1 := router.Group("/v1")
	{
		comments := v1.Group("/comments")
		{
			comments.GET("/:slug", commentHandler.GetSnapshot)
			comments.GET("/:slug/stream", commentHandler.Stream)
			comments.POST("/:slug", commentHandler.Submit)
		}

		v1.POST("/sessions/anonymous", sessionHandler.SignInAnonymously)
	}

	return router, nil
}

// healthCheck returns the health status
func healthCheck(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := contextWithTimeout(c, 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "unhealthy",
					"error":     err.Error(),
					"timestamp": time.Now().Format(time.RFC3339),
					"service":   "blog-comment-widget",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "blog-comment-widget",
		})
	}
}

// metricsHandler returns comment and live subscription counts
func metricsHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		commentsCount := 0
		if deps.Comments != nil {
			commentsCount, _ = deps.Comments.Count(ctx)
		}
		active := 0
		if deps.Subscriptions != nil {
			active = deps.Subscriptions.Active()
		}
		var pool sql.DBStats
		if deps.PoolStats != nil {
			pool = deps.PoolStats()
		}

		c.JSON(http.StatusOK, gin.H{
			"database": gin.H{
				"comments":         commentsCount,
				"open_connections": pool.OpenConnections,
				"in_use":           pool.InUse,
				"idle":             pool.Idle,
				"wait_count":       pool.WaitCount,
			},
			"realtime": gin.H{
				"active_subscriptions": active,
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).
					Str("path", c.Request.URL.Path).
					Str("content_key", c.Param("slug")).
					Msg("Panic recovered")
				// Embedded sections get text so the host page keeps its layout
				if strings.HasPrefix(c.Request.URL.Path, "/v1/") {
					c.JSON(http.StatusInternalServerError, gin.H{
						"error": "Internal server error",
					})
				} else {
					c.String(http.StatusInternalServerError, "Comments are unavailable right now.")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP())
		if slug := c.Param("slug"); slug != "" {
			event = event.Str("content_key", slug)
		}
		event.Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// contextWithTimeout creates a context with timeout for handlers
func contextWithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), timeout)
}
