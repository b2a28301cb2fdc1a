package models

import (
	"time"

	"github.com/google/uuid"
)

type SwipeDirection string

const (
	SwipeLeft  SwipeDirection = "left"
	SwipeRight SwipeDirection = "right"
)

func (d SwipeDirection) Valid() bool {
	return d == SwipeLeft || d == SwipeRight
}

type Swipe struct {
	UserID        uuid.UUID      `json:"user_id"`
	DestinationID uuid.UUID      `json:"destination_id"`
	Direction     SwipeDirection `json:"direction"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// SwipeQueue is the recomputed deck state for a user. Next is nil when the
// forward queue is exhausted and no left-swiped destination remains to
// recycle. Recycled marks that Next came from the previously-passed pool.
type SwipeQueue struct {
	Next     *Destination `json:"next,omitempty"`
	Index    int          `json:"index"`
	Total    int          `json:"total"`
	Recycled bool         `json:"recycled"`
}

// TripMatch records that a friend pair both right-swiped a destination, as
// observed from one side. The row doubles as the already-notified ledger.
type TripMatch struct {
	UserID        uuid.UUID `json:"user_id"`
	FriendID      uuid.UUID `json:"friend_id"`
	DestinationID uuid.UUID `json:"destination_id"`
	CreatedAt     time.Time `json:"created_at"`
}
