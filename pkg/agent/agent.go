package agent

import (
	"context"

	"github.com/m-mizutani/lumia/pkg/model"
)

// Agent answers questions about one topic. An agent that has nothing to
// contribute returns model.NotApplicable so the caller can keep routing.
type Agent interface {
	Name() string
	Answer(ctx context.Context, question string) model.Outcome
}

// Matcher finds the single passage that best matches a question
type Matcher interface {
	BestMatch(ctx context.Context, question, table string) (string, bool, error)
}

// Generator phrases an answer from a question and its context passages
type Generator interface {
	Generate(ctx context.Context, question string, passages []string) string
	Model() string
}
