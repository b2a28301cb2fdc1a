package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeTripMatch  NotificationType = "trip_match"
	NotificationTypeGroupAdded NotificationType = "group_added"
)

type Notification struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Type            NotificationType `json:"type"`
	ActorUserID     *uuid.UUID       `json:"actor_user_id,omitempty"`
	ActorName       *string          `json:"actor_name,omitempty"`
	DestinationID   *uuid.UUID       `json:"destination_id,omitempty"`
	DestinationName *string          `json:"destination_name,omitempty"`
	ConversationID  *uuid.UUID       `json:"conversation_id,omitempty"`
	GroupName       *string          `json:"group_name,omitempty"`
	DismissedAt     *time.Time       `json:"dismissed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}
