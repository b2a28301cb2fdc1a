package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is a trip notepad entry scoped to a group conversation. User notes
// carry the author; assistant-generated notes have a nil AuthorID.
type Note struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Pinned         bool       `json:"pinned"`
	AuthorID       *uuid.UUID `json:"author_id,omitempty"`
	IsUserNote     bool       `json:"is_user_note"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type NotePatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
}
