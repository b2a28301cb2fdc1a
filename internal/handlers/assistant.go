package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wanderlyst/tripmatch/internal/services/ai"
)

type AssistantService interface {
	Ask(ctx context.Context, req ai.AskRequest) (string, error)
}

// AssistantHandler exposes the travel assistant directly, taking the chat
// history and notepad snapshot from the client instead of a stored
// conversation. Stateless by design so the swipe deck and trip planner can
// ask one-off questions.
type AssistantHandler struct {
	assistant AssistantService
}

func NewAssistantHandler(assistant AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

type AskRequest struct {
	Question       string            `json:"question"`
	ChatHistory    []ai.ChatMessage  `json:"chatHistory"`
	NotepadEntries []ai.NotepadEntry `json:"notepadEntries"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Missing question")
		return
	}

	if len(req.ChatHistory) > 100 {
		writeError(w, http.StatusBadRequest, "Chat history is too long (max 100 messages)")
		return
	}
	if len(req.NotepadEntries) > 100 {
		writeError(w, http.StatusBadRequest, "Notepad is too long (max 100 entries)")
		return
	}

	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	answer, err := h.assistant.Ask(r.Context(), ai.AskRequest{
		Question:       req.Question,
		ChatHistory:    req.ChatHistory,
		NotepadEntries: req.NotepadEntries,
	})
	if err != nil {
		status := http.StatusInternalServerError
		msg := "Failed to get response from Gemini"

		switch {
		case errors.Is(err, ai.ErrInvalidInput):
			status = http.StatusBadRequest
			msg = "Missing question"
		case errors.Is(err, ai.ErrSafetyViolation):
			status = http.StatusBadRequest
			msg = "We couldn't answer that question. Please try rephrasing."
		case errors.Is(err, ai.ErrRateLimitExceeded):
			status = http.StatusTooManyRequests
			msg = "AI provider rate limit exceeded."
		case errors.Is(err, ai.ErrAIProviderUnavailable), errors.Is(err, ai.ErrAINotConfigured):
			status = http.StatusServiceUnavailable
			msg = "The assistant is currently down. Please try again later."
		}

		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{Answer: answer})
}
