package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "pending"
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
	FriendRequestStatusDenied   FriendRequestStatus = "denied"
)

type FriendRequest struct {
	ID          uuid.UUID           `json:"id"`
	FromUserID  uuid.UUID           `json:"from_user_id"`
	ToUserID    uuid.UUID           `json:"to_user_id"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
}

// FriendRequestWithUser carries the counterpart's profile for list views:
// the sender for incoming requests, the recipient for outgoing ones.
type FriendRequestWithUser struct {
	FriendRequest
	UserName      string `json:"user_name"`
	UserEmail     string `json:"user_email"`
	UserAvatarURL string `json:"user_avatar_url"`
}
