package model

import (
	"time"

	"github.com/google/uuid"
)

type InteractionID string

// NewInteractionID generates a new unique InteractionID
func NewInteractionID() InteractionID {
	return InteractionID(uuid.New().String())
}

// Interaction records one answered question
type Interaction struct {
	ID        InteractionID
	Question  string
	Answer    string
	Agent     string
	CreatedAt time.Time
}
