package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/eternisai/chat-relay/internal/config"
	"github.com/eternisai/chat-relay/internal/conversation"
	"github.com/eternisai/chat-relay/internal/logger"
	"github.com/eternisai/chat-relay/internal/metrics"
)

// Request is one chat turn as sent by the client.
type Request struct {
	UserID         string
	Message        string
	ImageURL       string
	Model          string
	ConversationID string
	Title          string
}

type Response struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
}

// Service runs chat turns: it loads or starts a conversation, asks the
// upstream model for a reply and persists both sides of the exchange.
type Service struct {
	store        conversation.Store
	completer    Completer
	assembler    Assembler
	defaultModel string
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewService(store conversation.Store, completer Completer, models *config.ModelsConfig, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		completer: completer,
		assembler: Assembler{
			VisionModel:         models.Vision,
			VisionRequiredReply: models.VisionRequiredReply,
		},
		defaultModel: models.Default,
		logger:       logger.WithComponent("chat"),
		metrics:      m,
	}
}

// Chat executes one turn. It returns conversation.ErrInvalidInput,
// ErrNotFound, ErrValidation and ErrConflict as is; every other failure is an
// *UpstreamError. Nothing is persisted unless the whole turn succeeds.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.defaultModel
	}

	resp, outcome, err := s.chat(ctx, req, model)
	if err != nil {
		outcome = metrics.OutcomeError
	}
	s.metrics.ObserveChatTurn(model, outcome)
	return resp, err
}

func (s *Service) chat(ctx context.Context, req Request, model string) (*Response, string, error) {
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.ImageURL) == "" {
		return nil, "", conversation.ErrMessageRequired
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, "", conversation.ErrUserRequired
	}

	ctx = logger.WithUserID(ctx, req.UserID)

	conv, isNew, err := s.resolve(ctx, req, model)
	if err != nil {
		return nil, "", err
	}
	ctx = logger.WithConversationID(ctx, conv.ID)
	log := s.logger.WithContext(ctx)

	assembly, err := s.assembler.Assemble(req.Message, req.ImageURL, model)
	if err != nil {
		return nil, "", err
	}

	// Both messages of the turn must fit before anything is sent upstream.
	if err := conv.CheckAppend(2); err != nil {
		return nil, "", err
	}

	outcome := metrics.OutcomeShortCircuit
	reply := assembly.Reply
	if assembly.ShortCircuit {
		log.Info("image-only turn for non-vision model answered locally", slog.String("model", model))
	} else {
		outcome = metrics.OutcomeOK
		start := time.Now()
		err = s.logger.LogOperation(ctx, "chat_completion", func() error {
			var cerr error
			reply, cerr = s.completer.Complete(ctx, model, assembly.Payload)
			return cerr
		})
		s.metrics.ObserveUpstream(model, time.Since(start), err)
		if err != nil {
			return nil, "", &UpstreamError{Op: "chat completion", Err: err}
		}
	}

	if err := conv.Append(assembly.UserMessage, conversation.NewMessage(conversation.RoleAssistant, reply, "")); err != nil {
		return nil, "", err
	}

	// An image-only turn answered locally keeps whatever title the
	// conversation already has.
	if !assembly.ShortCircuit && len(conv.Messages) == 2 && strings.TrimSpace(req.Title) == "" && !conv.TitleLocked {
		conv.Title = conversation.DeriveTitle(req.Message, req.ImageURL)
	}

	if isNew {
		err = s.store.Create(ctx, conv)
	} else {
		err = s.store.Save(ctx, conv)
	}
	if err != nil {
		if errors.Is(err, conversation.ErrConflict) || errors.Is(err, conversation.ErrValidation) {
			return nil, "", err
		}
		return nil, "", &UpstreamError{Op: "persist conversation", Err: err}
	}

	log.Info("chat turn completed",
		slog.String("model", model),
		slog.Bool("new_conversation", isNew),
		slog.Int("messages", len(conv.Messages)))

	return &Response{
		Reply:          reply,
		ConversationID: conv.ID,
		Title:          conv.Title,
	}, outcome, nil
}

// resolve loads the referenced conversation or starts a new, unsaved one.
func (s *Service) resolve(ctx context.Context, req Request, model string) (*conversation.Conversation, bool, error) {
	if id := strings.TrimSpace(req.ConversationID); id != "" {
		conv, err := s.store.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, conversation.ErrNotFound) {
				return nil, false, err
			}
			return nil, false, &UpstreamError{Op: "load conversation", Err: err}
		}
		return conv, false, nil
	}

	conv := conversation.New(req.UserID, model, req.Title)
	if !conv.TitleLocked {
		conv.Title = conversation.DeriveTitle(req.Message, req.ImageURL)
	}
	return conv, true, nil
}
