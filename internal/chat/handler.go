package chat

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eternisai/chat-relay/internal/conversation"
	apierrors "github.com/eternisai/chat-relay/internal/errors"
	"github.com/eternisai/chat-relay/internal/logger"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	UserID         string `json:"userId"`
	Message        string `json:"message"`
	Model          string `json:"model"`
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
	ImageURL       string `json:"imageUrl"`
}

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("chat-handler")

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("failed to bind request", slog.String("error", err.Error()))
		apierrors.AbortWithBadRequest(c, "invalid request body", map[string]any{"reason": err.Error()})
		return
	}

	resp, err := h.service.Chat(c.Request.Context(), Request{
		UserID:         req.UserID,
		Message:        req.Message,
		ImageURL:       req.ImageURL,
		Model:          req.Model,
		ConversationID: req.ConversationID,
		Title:          req.Title,
	})
	if err != nil {
		var inputErr *conversation.InputError
		switch {
		case errors.As(err, &inputErr):
			apierrors.AbortWithBadRequest(c, inputErr.Reason, nil)
		case errors.Is(err, conversation.ErrValidation):
			log.Warn("chat turn rejected", slog.String("error", err.Error()))
			apierrors.AbortWithBadRequest(c, err.Error(), nil)
		case errors.Is(err, conversation.ErrNotFound):
			apierrors.AbortWithNotFound(c, "Conversation not found", nil)
		case errors.Is(err, conversation.ErrConflict):
			log.Warn("concurrent update on conversation", slog.String("conversation_id", req.ConversationID))
			apierrors.AbortWithConflict(c, "Conversation was updated concurrently, retry the message", nil)
		default:
			h.logger.WithComponent("chat-handler").LogError(c.Request.Context(), err, "chat turn failed",
				slog.String("model", req.Model))
			apierrors.AbortWithInternal(c, "Something went wrong", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
