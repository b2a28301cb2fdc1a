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

type SwipeServiceInterface interface {
	ListDestinations(ctx context.Context) ([]models.Destination, error)
	SaveSwipe(ctx context.Context, userID, destinationID uuid.UUID, direction models.SwipeDirection) (*models.Swipe, error)
	RemoveSwipe(ctx context.Context, userID, destinationID uuid.UUID) error
	ListSwipes(ctx context.Context, userID uuid.UUID) ([]models.Swipe, error)
	Queue(ctx context.Context, userID uuid.UUID) (*models.SwipeQueue, error)
}

type MatchServiceInterface interface {
	DetectForSwipe(ctx context.Context, userID, destinationID uuid.UUID) error
	ListMatches(ctx context.Context, userID uuid.UUID) ([]models.TripMatch, error)
}

type SwipeHandler struct {
	swipeService SwipeServiceInterface
	matchService MatchServiceInterface
}

func NewSwipeHandler(swipeService SwipeServiceInterface, matchService MatchServiceInterface) *SwipeHandler {
	return &SwipeHandler{
		swipeService: swipeService,
		matchService: matchService,
	}
}

type SwipeCreateRequest struct {
	DestinationID uuid.UUID             `json:"destination_id"`
	Direction     models.SwipeDirection `json:"direction"`
}

type DestinationListResponse struct {
	Destinations []models.Destination `json:"destinations"`
}

type SwipeListResponse struct {
	Swipes []models.Swipe `json:"swipes"`
}

type MatchListResponse struct {
	Matches []models.TripMatch `json:"matches"`
}

func (h *SwipeHandler) ListDestinations(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	destinations, err := h.swipeService.ListDestinations(r.Context())
	if err != nil {
		log.Printf("Error listing destinations: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, DestinationListResponse{Destinations: destinations})
}

func (h *SwipeHandler) Queue(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	queue, err := h.swipeService.Queue(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error building swipe queue: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, queue)
}

func (h *SwipeHandler) Save(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SwipeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DestinationID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "destination_id is required")
		return
	}

	swipe, err := h.swipeService.SaveSwipe(r.Context(), user.ID, req.DestinationID, req.Direction)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDirection):
			writeError(w, http.StatusBadRequest, "Direction must be left or right")
		case errors.Is(err, services.ErrDestinationNotFound):
			writeError(w, http.StatusNotFound, "Destination not found")
		default:
			log.Printf("Error saving swipe: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	// Match detection failures should not fail the swipe itself; the
	// periodic sweep will catch anything missed here.
	if swipe.Direction == models.SwipeRight {
		if err := h.matchService.DetectForSwipe(r.Context(), user.ID, req.DestinationID); err != nil {
			log.Printf("Error detecting trip matches: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, swipe)
}

func (h *SwipeHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	destinationID, err := uuid.Parse(r.PathValue("destinationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid destination ID")
		return
	}

	if err := h.swipeService.RemoveSwipe(r.Context(), user.ID, destinationID); err != nil {
		log.Printf("Error removing swipe: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Swipe removed"})
}

func (h *SwipeHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	swipes, err := h.swipeService.ListSwipes(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing swipes: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, SwipeListResponse{Swipes: swipes})
}

func (h *SwipeHandler) Matches(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	matches, err := h.matchService.ListMatches(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing trip matches: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MatchListResponse{Matches: matches})
}
