package models

import "github.com/google/uuid"

// Destination is one card in the fixed, globally shared swipe deck.
// Position defines the deck order and is unique across all destinations.
type Destination struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Tags        []string  `json:"tags"`
	Rating      float64   `json:"rating"`
	Price       string    `json:"price"`
	Duration    string    `json:"duration"`
	Position    int       `json:"position"`
}
