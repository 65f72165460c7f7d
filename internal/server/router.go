// Package server wires the HTTP surface of the relay.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eternisai/chat-relay/internal/chat"
	"github.com/eternisai/chat-relay/internal/conversation"
	"github.com/eternisai/chat-relay/internal/logger"
	"github.com/eternisai/chat-relay/internal/metrics"
	"github.com/eternisai/chat-relay/internal/upload"
)

type Handlers struct {
	Chat          *chat.Handler
	Conversations *conversation.Handler
	Upload        *upload.Handler
}

type Options struct {
	Logger         *logger.Logger
	Metrics        *metrics.Metrics // nil disables /metrics
	AllowedOrigins string
	// MaxUploadBytes is the largest accepted upload. Multipart bodies up to
	// that size are parsed in memory.
	MaxUploadBytes int64
}

// NewRouter mounts every route under /api plus the liveness banner and the
// metrics endpoint.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORS(opts.AllowedOrigins))
	router.Use(logger.RequestLoggingMiddleware(opts.Logger))

	if opts.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = opts.MaxUploadBytes + upload.FormOverhead
	}

	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is alive")
	})

	api := router.Group("/api")
	{
		api.GET("/ping", ping)
		api.POST("/chat", h.Chat.Chat)
		api.POST("/upload", h.Upload.Upload)

		// gin allows one wildcard name per segment, so :id is the user id on
		// the list route and the conversation id everywhere else.
		conversations := api.Group("/conversations")
		{
			conversations.POST("", h.Conversations.Create)
			conversations.GET("/:id", h.Conversations.List)
			conversations.GET("/:id/messages", h.Conversations.Get)
			conversations.PUT("/:id/title", h.Conversations.UpdateTitle)
			conversations.DELETE("/:id", h.Conversations.Delete)
		}
	}

	return router
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "alive",
		"timestamp":   time.Now().UTC(),
		"instance_id": logger.GetInstanceID(),
	})
}
