package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/wanderlyst/tripmatch/internal/models"
	"github.com/wanderlyst/tripmatch/internal/services"
)

type NoteServiceInterface interface {
	List(ctx context.Context, callerID, conversationID uuid.UUID) ([]models.Note, error)
	Create(ctx context.Context, callerID, conversationID uuid.UUID, title, content string) (*models.Note, error)
	Update(ctx context.Context, callerID, conversationID, noteID uuid.UUID, patch models.NotePatch) (*models.Note, error)
	TogglePin(ctx context.Context, callerID, conversationID, noteID uuid.UUID) (*models.Note, error)
	Delete(ctx context.Context, callerID, conversationID, noteID uuid.UUID) error
}

type NoteHandler struct {
	noteService NoteServiceInterface
}

func NewNoteHandler(noteService NoteServiceInterface) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

type NoteCreateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type NoteListResponse struct {
	Notes []models.Note `json:"notes"`
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
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

	notes, err := h.noteService.List(r.Context(), user.ID, conversationID)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("Error listing notes: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes})
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req NoteCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := h.noteService.Create(r.Context(), user.ID, conversationID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		if errors.Is(err, services.ErrEmptyNote) {
			writeError(w, http.StatusBadRequest, "Note needs a title or content")
			return
		}
		log.Printf("Error creating note: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, conversationID, noteID, ok := h.noteRequest(w, r)
	if !ok {
		return
	}

	var patch models.NotePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := h.noteService.Update(r.Context(), user.ID, conversationID, noteID, patch)
	if err != nil {
		h.writeNoteError(w, err, "Error updating note")
		return
	}

	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) TogglePin(w http.ResponseWriter, r *http.Request) {
	user, conversationID, noteID, ok := h.noteRequest(w, r)
	if !ok {
		return
	}

	note, err := h.noteService.TogglePin(r.Context(), user.ID, conversationID, noteID)
	if err != nil {
		h.writeNoteError(w, err, "Error toggling note pin")
		return
	}

	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, conversationID, noteID, ok := h.noteRequest(w, r)
	if !ok {
		return
	}

	if err := h.noteService.Delete(r.Context(), user.ID, conversationID, noteID); err != nil {
		h.writeNoteError(w, err, "Error deleting note")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Note deleted"})
}

func (h *NoteHandler) noteRequest(w http.ResponseWriter, r *http.Request) (*models.User, uuid.UUID, uuid.UUID, bool) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return nil, uuid.Nil, uuid.Nil, false
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return nil, uuid.Nil, uuid.Nil, false
	}

	noteID, err := uuid.Parse(r.PathValue("noteID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid note ID")
		return nil, uuid.Nil, uuid.Nil, false
	}

	return user, conversationID, noteID, true
}

func (h *NoteHandler) writeNoteError(w http.ResponseWriter, err error, logPrefix string) {
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, services.ErrNoteNotFound):
		writeError(w, http.StatusNotFound, "Note not found")
	default:
		log.Printf("%s: %v", logPrefix, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
