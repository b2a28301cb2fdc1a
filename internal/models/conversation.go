package models

import (
	"time"

	"github.com/google/uuid"
)

type ConversationType string

const (
	ConversationTypeDM    ConversationType = "dm"
	ConversationTypeGroup ConversationType = "group"
)

type Conversation struct {
	ID   uuid.UUID        `json:"id"`
	Name string           `json:"name"`
	Type ConversationType `json:"type"`
	// DisplayName is what the viewer should render: the other member's
	// name for a DM, the stored name for a group.
	DisplayName       string      `json:"display_name"`
	CreatedBy         uuid.UUID   `json:"created_by"`
	MemberIDs         []uuid.UUID `json:"member_ids"`
	LastMessageText   *string     `json:"last_message_text,omitempty"`
	LastMessageSender *uuid.UUID  `json:"last_message_sender,omitempty"`
	LastMessageAt     *time.Time  `json:"last_message_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}
