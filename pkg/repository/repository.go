package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/model"
)

var (
	ErrInvalidTable        = goerr.New("invalid table name")
	ErrInteractionNotFound = goerr.New("interaction not found")
)

// PassageStore is the text store populated by the crawler. The assistant only
// reads it; Insert and EnsureTable are the crawler-side write interface.
type PassageStore interface {
	// Search returns passages whose title or body contains pattern, at most limit rows
	Search(ctx context.Context, table, pattern string, limit int) ([]*model.Passage, error)

	// FindFirst returns the first passage whose body contains any of patterns, or nil
	FindFirst(ctx context.Context, table string, patterns []string) (*model.Passage, error)

	// Insert stores a passage. A body that already exists is skipped and reported as false.
	Insert(ctx context.Context, table string, passage *model.Passage) (bool, error)

	// Count returns the number of passages in table
	Count(ctx context.Context, table string) (int, error)

	// EnsureTable creates the passage table if it does not exist
	EnsureTable(ctx context.Context, table string) error
}

// InteractionLog records answered questions
type InteractionLog interface {
	// PutInteraction saves an interaction
	PutInteraction(ctx context.Context, interaction *model.Interaction) error

	// GetInteraction retrieves an interaction by ID
	GetInteraction(ctx context.Context, id model.InteractionID) (*model.Interaction, error)

	// ListInteractions returns the most recent interactions first
	ListInteractions(ctx context.Context, limit int) ([]*model.Interaction, error)
}
