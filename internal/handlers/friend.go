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

type FriendServiceInterface interface {
	SendRequest(ctx context.Context, fromUserID, toUserID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, userID, requestID uuid.UUID) error
	DenyRequest(ctx context.Context, userID, requestID uuid.UUID) error
	CancelRequest(ctx context.Context, userID, requestID uuid.UUID) error
	RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error)
	ListIncomingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	ListOutgoingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	Suggestions(ctx context.Context, userID uuid.UUID, limit int) ([]models.FriendSuggestion, error)
	IsFriend(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
}

type FriendSwipeService interface {
	FriendRightSwipes(ctx context.Context, friendID uuid.UUID) ([]models.Destination, error)
}

type FriendHandler struct {
	friendService FriendServiceInterface
	swipeService  FriendSwipeService
}

func NewFriendHandler(friendService FriendServiceInterface, swipeService FriendSwipeService) *FriendHandler {
	return &FriendHandler{
		friendService: friendService,
		swipeService:  swipeService,
	}
}

type FriendRequestCreateRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type FriendListResponse struct {
	Friends []models.UserSummary `json:"friends"`
}

type FriendRequestListResponse struct {
	Requests []models.FriendRequestWithUser `json:"requests"`
}

type FriendSuggestionsResponse struct {
	Suggestions []models.FriendSuggestion `json:"suggestions"`
}

type FriendSwipesResponse struct {
	Destinations []models.Destination `json:"destinations"`
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing friends: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendListResponse{Friends: friends})
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req FriendRequestCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	request, err := h.friendService.SendRequest(r.Context(), user.ID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCannotFriendSelf):
			writeError(w, http.StatusBadRequest, "Cannot send a friend request to yourself")
		case errors.Is(err, services.ErrCannotFriendAssist):
			writeError(w, http.StatusBadRequest, "Cannot send a friend request to the assistant")
		case errors.Is(err, services.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, services.ErrFriendshipExists):
			writeError(w, http.StatusConflict, "Already friends")
		case errors.Is(err, services.ErrRequestPending):
			writeError(w, http.StatusConflict, "Friend request already pending")
		default:
			log.Printf("Error sending friend request: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, request)
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.friendService.AcceptRequest, "Friend request accepted")
}

func (h *FriendHandler) DenyRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.friendService.DenyRequest, "Friend request denied")
}

func (h *FriendHandler) resolveRequest(w http.ResponseWriter, r *http.Request, resolve func(context.Context, uuid.UUID, uuid.UUID) error, message string) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	if err := resolve(r.Context(), user.ID, requestID); err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, "Friend request not found")
		case errors.Is(err, services.ErrRequestNotPending):
			writeError(w, http.StatusConflict, "Friend request already resolved")
		default:
			log.Printf("Error resolving friend request: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	if err := h.friendService.CancelRequest(r.Context(), user.ID, requestID); err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "Friend request not found")
			return
		}
		log.Printf("Error cancelling friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend request cancelled"})
}

func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friendID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.friendService.RemoveFriend(r.Context(), user.ID, friendID); err != nil {
		log.Printf("Error removing friend: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend removed"})
}

func (h *FriendHandler) IncomingRequests(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, h.friendService.ListIncomingRequests)
}

func (h *FriendHandler) OutgoingRequests(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, h.friendService.ListOutgoingRequests)
}

func (h *FriendHandler) listRequests(w http.ResponseWriter, r *http.Request, list func(context.Context, uuid.UUID) ([]models.FriendRequestWithUser, error)) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requests, err := list(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing friend requests: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestListResponse{Requests: requests})
}

func (h *FriendHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 25 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	suggestions, err := h.friendService.Suggestions(r.Context(), user.ID, limit)
	if err != nil {
		log.Printf("Error listing friend suggestions: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendSuggestionsResponse{Suggestions: suggestions})
}

// Swipes returns the destinations a friend has right-swiped, the shared
// wishlist view. Non-friends get a 404 rather than an empty list.
func (h *FriendHandler) Swipes(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friendID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	isFriend, err := h.friendService.IsFriend(r.Context(), user.ID, friendID)
	if err != nil {
		log.Printf("Error checking friendship: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !isFriend {
		writeError(w, http.StatusNotFound, "Friend not found")
		return
	}

	destinations, err := h.swipeService.FriendRightSwipes(r.Context(), friendID)
	if err != nil {
		log.Printf("Error listing friend swipes: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendSwipesResponse{Destinations: destinations})
}
