package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash *string    `json:"-"`
	Name         string     `json:"name"`
	AvatarURL    string     `json:"avatar_url"`
	Bio          string     `json:"bio"`
	IsAssistant  bool       `json:"is_assistant"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FirstName is the short display label used in chat bubbles and prompts.
func (u *User) FirstName() string {
	for i := 0; i < len(u.Name); i++ {
		if u.Name[i] == ' ' {
			return u.Name[:i]
		}
	}
	return u.Name
}

type CreateUserParams struct {
	Email        string
	PasswordHash *string
	Name         string
	AvatarURL    string
	Bio          string
}

type UserProfilePatch struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Bio       *string `json:"bio,omitempty"`
}

type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
}

type FriendSuggestion struct {
	UserSummary
	MutualCount int `json:"mutual_count"`
}
