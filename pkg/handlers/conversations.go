package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/middleware"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

// CreateConversationRequest for POST /api/conversations. Title is optional.
type CreateConversationRequest struct {
	Title string `json:"title" validate:"max=255"`
}

// ChatQueryRequest is a question asked in a conversation.
type ChatQueryRequest struct {
	Query          string `json:"query" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required,uuid"`
	DataSourceID   string `json:"dataSourceId" validate:"omitempty,uuid"`
}

// ChatQueryResult is the part of a processed query the chat view renders.
type ChatQueryResult struct {
	Insights      models.Insights       `json:"insights"`
	Visualization *models.Visualization `json:"visualization"`
	QueryID       string                `json:"queryId"`
}

// ChatQueryResponse is returned by POST /api/chat/query.
type ChatQueryResponse struct {
	Message string          `json:"message"`
	Result  ChatQueryResult `json:"result"`
}

// ConversationsHandler handles conversations and the chat endpoint.
type ConversationsHandler struct {
	conversationService services.ConversationService
	logger              *zap.Logger
}

// NewConversationsHandler creates a new conversations handler.
func NewConversationsHandler(conversationService services.ConversationService, logger *zap.Logger) *ConversationsHandler {
	return &ConversationsHandler{
		conversationService: conversationService,
		logger:              logger,
	}
}

// RegisterRoutes registers the conversation and chat routes on the given mux.
func (h *ConversationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", middleware.RequireUser(h.List))
	mux.HandleFunc("POST /api/conversations", middleware.RequireUser(h.Create))
	mux.HandleFunc("GET /api/conversations/{id}", middleware.RequireUser(h.Get))
	mux.HandleFunc("DELETE /api/conversations/{id}", middleware.RequireUser(h.Delete))
	mux.HandleFunc("GET /api/conversations/{id}/messages", middleware.RequireUser(h.Messages))
	mux.HandleFunc("POST /api/chat/query", middleware.RequireUser(h.Query))
}

// List handles GET /api/conversations, most recently active first.
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.conversationService.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch conversations")
		return
	}
	if err := WriteJSON(w, http.StatusOK, convs); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/conversations
func (h *ConversationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if r.ContentLength != 0 && !decodeRequest(w, r, &req, h.logger) {
		return
	}

	conv, err := h.conversationService.Create(r.Context(), middleware.GetUserID(r.Context()), req.Title)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create conversation")
		return
	}
	if err := WriteJSON(w, http.StatusCreated, conv); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/conversations/{id}
func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConversationID(w, r, h.logger)
	if !ok {
		return
	}

	conv, err := h.conversationService.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch conversation")
		return
	}
	if err := WriteJSON(w, http.StatusOK, conv); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/conversations/{id}
func (h *ConversationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConversationID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.conversationService.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete conversation")
		return
	}
	response := ApiResponse{Success: true, Message: "Conversation deleted successfully"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Messages handles GET /api/conversations/{id}/messages
func (h *ConversationsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConversationID(w, r, h.logger)
	if !ok {
		return
	}

	msgs, err := h.conversationService.Messages(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch messages")
		return
	}
	if err := WriteJSON(w, http.StatusOK, msgs); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Query handles POST /api/chat/query
func (h *ConversationsHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req ChatQueryRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	chat := services.ChatRequest{
		UserID:         middleware.GetUserID(r.Context()),
		ConversationID: uuid.MustParse(req.ConversationID),
		Query:          req.Query,
	}
	if req.DataSourceID != "" {
		dsID := uuid.MustParse(req.DataSourceID)
		chat.DataSourceID = &dsID
	}

	resp, err := h.conversationService.Chat(r.Context(), chat)
	if err != nil {
		writeServiceError(w, h.logger, err, "Query processing failed")
		return
	}

	response := ChatQueryResponse{
		Message: "Query processed successfully",
		Result: ChatQueryResult{
			Insights:      resp.Result.Insights,
			Visualization: resp.Result.Visualization,
			QueryID:       resp.Result.QueryID,
		},
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
