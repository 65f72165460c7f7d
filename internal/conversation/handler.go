package conversation

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "github.com/eternisai/chat-relay/internal/errors"
	"github.com/eternisai/chat-relay/internal/logger"
)

type CreateRequest struct {
	UserID string `json:"userId"`
}

type UpdateTitleRequest struct {
	Title string `json:"title"`
}

// Handler serves conversation CRUD under /api/conversations.
type Handler struct {
	store        Store
	defaultModel string
	logger       *logger.Logger
}

func NewHandler(store Store, defaultModel string, logger *logger.Logger) *Handler {
	return &Handler{
		store:        store,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// Create handles POST /api/conversations.
func (h *Handler) Create(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("conversations-handler")

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		apierrors.AbortWithBadRequest(c, ErrUserRequired.Error(), nil)
		return
	}

	conv := New(req.UserID, h.defaultModel, "")
	if err := h.store.Create(c.Request.Context(), conv); err != nil {
		log.Error("failed to create conversation",
			slog.String("error", err.Error()),
			slog.String("user_id", req.UserID))
		apierrors.AbortWithInternal(c, "Failed to create conversation", nil)
		return
	}

	log.Info("conversation created",
		slog.String("conversation_id", conv.ID),
		slog.String("user_id", req.UserID))

	c.JSON(http.StatusOK, gin.H{
		"conversationId": conv.ID,
		"title":          conv.Title,
	})
}

// List handles GET /api/conversations/:id where id is the owner's user id.
func (h *Handler) List(c *gin.Context) {
	userID := c.Param("id")

	conversations, err := h.store.FindByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Error("failed to fetch conversations",
			slog.String("error", err.Error()),
			slog.String("user_id", userID))
		apierrors.AbortWithInternal(c, "Failed to fetch conversations", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// Get handles GET /api/conversations/:id/messages.
func (h *Handler) Get(c *gin.Context) {
	id := c.Param("id")

	conv, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		h.abort(c, err, "Failed to fetch conversation", id)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// UpdateTitle handles PUT /api/conversations/:id/title.
func (h *Handler) UpdateTitle(c *gin.Context) {
	id := c.Param("id")

	var req UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		apierrors.AbortWithBadRequest(c, ErrTitleRequired.Error(), nil)
		return
	}

	conv, err := h.store.UpdateTitle(c.Request.Context(), id, req.Title)
	if err != nil {
		h.abort(c, err, "Failed to update title", id)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// Delete handles DELETE /api/conversations/:id.
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.abort(c, err, "Failed to delete conversation", id)
		return
	}

	h.logger.WithContext(c.Request.Context()).Info("conversation deleted", slog.String("conversation_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted successfully"})
}

func (h *Handler) abort(c *gin.Context, err error, internalMessage, id string) {
	switch {
	case errors.Is(err, ErrNotFound):
		apierrors.AbortWithNotFound(c, "Conversation not found", nil)
	case errors.Is(err, ErrValidation):
		apierrors.AbortWithBadRequest(c, err.Error(), nil)
	default:
		h.logger.WithComponent("conversations-handler").LogError(c.Request.Context(), err, "conversation store call failed",
			slog.String("conversation_id", id))
		apierrors.AbortWithInternal(c, internalMessage, nil)
	}
}
