package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/wanderlyst/tripmatch/internal/models"
	"github.com/wanderlyst/tripmatch/internal/services"
)

type ConversationServiceInterface interface {
	Create(ctx context.Context, creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (*models.Conversation, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	GetConversation(ctx context.Context, callerID, conversationID uuid.UUID) (*models.Conversation, error)
	UpdateMembers(ctx context.Context, callerID, conversationID uuid.UUID, memberIDs []uuid.UUID) (*models.Conversation, error)
	UpdateName(ctx context.Context, callerID, conversationID uuid.UUID, name string) error
	Leave(ctx context.Context, callerID, conversationID uuid.UUID) error
	SendMessage(ctx context.Context, senderID, conversationID uuid.UUID, text string) (*models.Message, error)
	ListMessages(ctx context.Context, callerID, conversationID uuid.UUID, limit int) ([]models.Message, error)
}

// AssistantTrigger fires the travel assistant when a message mentions it.
// The real implementation responds asynchronously.
type AssistantTrigger interface {
	HandleMessage(ctx context.Context, conversationID uuid.UUID, text string)
}

type ConversationHandler struct {
	conversationService ConversationServiceInterface
	assistant           AssistantTrigger
}

func NewConversationHandler(conversationService ConversationServiceInterface, assistant AssistantTrigger) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		assistant:           assistant,
	}
}

type ConversationCreateRequest struct {
	Name      string      `json:"name"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

type ConversationMembersRequest struct {
	MemberIDs []uuid.UUID `json:"member_ids"`
}

type ConversationRenameRequest struct {
	Name string `json:"name"`
}

type MessageCreateRequest struct {
	Text string `json:"text"`
}

type ConversationListResponse struct {
	Conversations []models.Conversation `json:"conversations"`
}

type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ConversationCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conversation, err := h.conversationService.Create(r.Context(), user.ID, req.Name, req.MemberIDs)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTooFewMembers):
			writeError(w, http.StatusBadRequest, "Conversation needs at least one other member")
		case errors.Is(err, services.ErrMemberNotFriend):
			writeError(w, http.StatusBadRequest, "All members must be your friends")
		case errors.Is(err, services.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		default:
			log.Printf("Error creating conversation: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, conversation)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversations, err := h.conversationService.List(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing conversations: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ConversationListResponse{Conversations: conversations})
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	conversation, err := h.conversationService.GetConversation(r.Context(), user.ID, conversationID)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("Error fetching conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, conversation)
}

func (h *ConversationHandler) UpdateMembers(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req ConversationMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conversation, err := h.conversationService.UpdateMembers(r.Context(), user.ID, conversationID, req.MemberIDs)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "Conversation not found")
		case errors.Is(err, services.ErrNotAMember):
			writeError(w, http.StatusNotFound, "Conversation not found")
		case errors.Is(err, services.ErrTooFewMembers):
			writeError(w, http.StatusBadRequest, "Conversation needs at least one other member")
		case errors.Is(err, services.ErrMemberNotFriend):
			writeError(w, http.StatusBadRequest, "All members must be your friends")
		default:
			log.Printf("Error updating conversation members: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, conversation)
}

func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req ConversationRenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.conversationService.UpdateName(r.Context(), user.ID, conversationID, req.Name); err != nil {
		if errors.Is(err, services.ErrConversationNotFound) || errors.Is(err, services.ErrNotAMember) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("Error renaming conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Conversation renamed"})
}

func (h *ConversationHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if err := h.conversationService.Leave(r.Context(), user.ID, conversationID); err != nil {
		if errors.Is(err, services.ErrNotAMember) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("Error leaving conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Left conversation"})
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	messages, err := h.conversationService.ListMessages(r.Context(), user.ID, conversationID, limit)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("Error listing messages: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req MessageCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	message, err := h.conversationService.SendMessage(r.Context(), user.ID, conversationID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "Message text is required")
		case errors.Is(err, services.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "Conversation not found")
		default:
			log.Printf("Error sending message: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.assistant.HandleMessage(r.Context(), conversationID, message.Text)

	writeJSON(w, http.StatusCreated, message)
}
