package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/fallback"
	"github.com/ekaya-inc/ekaya-insights/pkg/llm"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// ChatRequest is one user turn in a conversation.
type ChatRequest struct {
	UserID         string
	ConversationID uuid.UUID
	Query          string
	DataSourceID   *uuid.UUID
}

// ChatResponse pairs the stored assistant message with the full result.
type ChatResponse struct {
	Message *models.Message
	Result  *ProcessResult
}

// AssistantContent is the JSON document stored as an assistant message.
type AssistantContent struct {
	Summary         string                `json:"summary"`
	KeyInsights     []string              `json:"keyInsights"`
	Recommendations []string              `json:"recommendations"`
	Visualization   *models.Visualization `json:"visualization,omitempty"`
	QueryID         string                `json:"queryId"`
}

// ConversationService manages chat sessions and runs questions asked in them.
// Conversations owned by another user are reported as apperrors.ErrNotFound.
type ConversationService interface {
	// Create starts a conversation. An empty title is replaced by the
	// default and rewritten from the first message.
	Create(ctx context.Context, userID, title string) (*models.Conversation, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.Conversation, error)
	List(ctx context.Context, userID string) ([]*models.Conversation, error)
	Messages(ctx context.Context, userID string, id uuid.UUID) ([]*models.Message, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error

	// Chat stores the user message, answers it and stores the reply. When
	// processing fails the user message stays stored.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type conversationService struct {
	store   Storage
	queries QueryService
	ai      llm.Collaborator
	logger  *zap.Logger
}

// NewConversationService creates a conversation service. ai may be nil.
func NewConversationService(store Storage, queries QueryService, ai llm.Collaborator, logger *zap.Logger) ConversationService {
	return &conversationService{
		store:   store,
		queries: queries,
		ai:      ai,
		logger:  logger.Named("conversations"),
	}
}

var _ ConversationService = (*conversationService)(nil)

func (s *conversationService) Create(ctx context.Context, userID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = fallback.DefaultTitle
	}
	conv := &models.Conversation{UserID: userID, Title: title}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *conversationService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return conv, nil
}

func (s *conversationService) List(ctx context.Context, userID string) ([]*models.Conversation, error) {
	return s.store.GetConversationsByUserID(ctx, userID)
}

func (s *conversationService) Messages(ctx context.Context, userID string, id uuid.UUID) ([]*models.Message, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.store.GetMessages(ctx, id)
}

func (s *conversationService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteConversation(ctx, id)
}

func (s *conversationService) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	conv, err := s.Get(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.GetMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	userMsg := &models.Message{ConversationID: conv.ID, Role: models.RoleUser, Content: req.Query}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	if len(history) == 0 && conv.Title == fallback.DefaultTitle {
		s.retitle(ctx, conv.ID, req.Query)
	}

	result, err := s.queries.Process(ctx, ProcessRequest{
		UserID:         req.UserID,
		ConversationID: conv.ID.String(),
		Query:          req.Query,
		DataSourceID:   req.DataSourceID,
	})
	if err != nil {
		return nil, err
	}

	content, err := json.Marshal(AssistantContent{
		Summary:         result.Insights.Summary,
		KeyInsights:     result.Insights.KeyInsights,
		Recommendations: result.Insights.Recommendations,
		Visualization:   result.Visualization,
		QueryID:         result.QueryID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode reply: %w", err)
	}
	reply := &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        string(content),
		Metadata: map[string]any{
			"queryId":          result.QueryID,
			"hasVisualization": result.Visualization != nil,
		},
	}
	if err := s.store.CreateMessage(ctx, reply); err != nil {
		// the answer is still good; only the transcript misses it
		s.logger.Warn("failed to store assistant message",
			zap.String("conversation_id", conv.ID.String()),
			zap.Error(err),
		)
	}
	return &ChatResponse{Message: reply, Result: result}, nil
}

// retitle names the conversation after its first message. Failures keep the
// default title.
func (s *conversationService) retitle(ctx context.Context, id uuid.UUID, firstMessage string) {
	title := ""
	if s.ai != nil {
		generated, err := s.ai.GenerateTitle(ctx, firstMessage)
		if err != nil {
			s.logger.Debug("AI title unavailable, using fallback", zap.Error(err))
		}
		title = generated
	}
	if title == "" {
		title = fallback.Title(firstMessage)
	}
	if err := s.store.UpdateConversationTitle(ctx, id, title); err != nil {
		s.logger.Warn("failed to update conversation title", zap.String("conversation_id", id.String()), zap.Error(err))
	}
}
